package handlers

import (
	"errors"

	"structify/internal/web/models"
	"structify/internal/web/service"

	"github.com/gofiber/fiber/v3"
)

// ============================================================
// Processing Stage
// ============================================================

const (
	pollInterval   = 1
	failureBackoff = 2
)

type phaseView struct {
	models.Phase
	State string
}

type processingView struct {
	Phases []phaseView
	Status models.JobStatus
}

func phaseViews(status models.JobStatus) []phaseView {
	out := make([]phaseView, 0, len(models.Phases))
	for _, p := range models.Phases {
		state := "pending"
		switch {
		case status.State == models.JobSucceeded || p.Index < status.Phase:
			state = "done"
		case p.Index == status.Phase:
			state = "current"
		}
		out = append(out, phaseView{Phase: p, State: state})
	}
	return out
}

// ProcessingPage GET /processing. Без изображения возвращает на загрузку.
func (h *Handler) ProcessingPage(c fiber.Ctx) error {
	sid := sessionID(c)
	job, err := h.pipeline.EnsureJob(c.Context(), sid)
	if errors.Is(err, service.ErrNoImage) {
		return redirect(c, "/")
	}
	if err != nil {
		return err
	}

	status := job.Status()
	p := page{
		Title: "Processing",
		Data:  processingView{Phases: phaseViews(status), Status: status},
	}

	switch status.State {
	case models.JobSucceeded:
		h.pipeline.DismissJob(sid, job)
		return redirect(c, "/results")
	case models.JobFailed:
		h.pipeline.DismissJob(sid, job)
		p.Notices = h.popNotices(c)
		p.Refresh = &refresh{Seconds: failureBackoff, URL: "/"}
	default:
		p.Refresh = &refresh{Seconds: pollInterval, URL: "/processing"}
	}

	return h.pages.Render(c, fiber.StatusOK, "processing", p)
}

// ProcessingStatus GET /processing/status
func (h *Handler) ProcessingStatus(c fiber.Ctx) error {
	job, ok := h.pipeline.Job(sessionID(c))
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "no processing job"})
	}
	return c.JSON(job.Status())
}
