package handlers

import (
	"errors"
	"html/template"

	"structify/internal/web/archive"
	"structify/internal/web/geometry"
	"structify/internal/web/models"
	"structify/internal/web/service"

	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"
)

// ============================================================
// Results Stage
// ============================================================

// ArchiveFilename имя файла для "Download All".
const ArchiveFilename = "structify_output.zip"

var noticeInvalidThreshold = models.Notice{
	Title:       "Invalid Threshold",
	Description: "Threshold values must be numbers between 0 and 1.",
	Variant:     models.NoticeDestructive,
}

type artifactView struct {
	archive.Entry
	Key     string
	Present bool
}

type geometryView struct {
	Features int
	Classes  []geometry.ClassCount
	Preview  template.HTML
}

type resultsView struct {
	Thresholds   []models.ThresholdField
	Segmentation []artifactView
	Vector       []artifactView
	Model        []artifactView
	Geometry     *geometryView
}

func artifactViews(set *archive.Set, entries []archive.Entry) []artifactView {
	out := make([]artifactView, 0, len(entries))
	for _, e := range entries {
		_, ok := set.Get(e.Key())
		out = append(out, artifactView{Entry: e, Key: e.Key(), Present: ok})
	}
	return out
}

// geometryPreview сводка и SVG по вектору; ошибка разбора только убирает превью.
func (h *Handler) geometryPreview(set *archive.Set) *geometryView {
	for _, e := range archive.VectorEntries {
		a, ok := set.Get(e.Key())
		if !ok {
			continue
		}
		summary, err := geometry.Summarize(a.Data)
		if err != nil {
			h.log.Debug("geometry summary unavailable", zap.String("entry", e.Name), zap.Error(err))
			return nil
		}
		view := &geometryView{Features: summary.Features, Classes: summary.Classes}
		if svg, err := geometry.RenderSVG(a.Data); err == nil {
			view.Preview = template.HTML(svg)
		}
		return view
	}
	return nil
}

// ResultsPage GET /results. Без архива возвращает на загрузку.
func (h *Handler) ResultsPage(c fiber.Ctx) error {
	sess, set, err := h.pipeline.Results(c.Context(), sessionID(c))
	switch {
	case errors.Is(err, service.ErrNoArchive):
		return redirect(c, "/")
	case errors.Is(err, service.ErrExtraction):
		return h.pages.Render(c, fiber.StatusInternalServerError, "error", page{
			Title:   "Error",
			Notices: h.popNotices(c),
			Data:    errorView{Title: "Failed to load results", Message: "The result archive could not be read."},
		})
	case err != nil:
		return err
	}

	return h.pages.Render(c, fiber.StatusOK, "results", page{
		Title:   "Results",
		Notices: h.popNotices(c),
		Data: resultsView{
			Thresholds:   sess.Thresholds.Fields(),
			Segmentation: artifactViews(set, archive.SegmentationEntries),
			Vector:       artifactViews(set, archive.VectorEntries),
			Model:        artifactViews(set, archive.ModelEntries),
			Geometry:     h.geometryPreview(set),
		},
	})
}

// ApplyThresholds POST /results/thresholds. Итог сообщается уведомлением.
func (h *Handler) ApplyThresholds(c fiber.Ctx) error {
	sid := sessionID(c)
	sess, err := h.pipeline.Session(c.Context(), sid)
	if err != nil {
		return err
	}
	if !sess.HasArchive() {
		return redirect(c, "/")
	}

	thresholds, err := sess.Thresholds.Apply(func(key string) string { return c.FormValue(key) })
	if err != nil {
		h.notify(c, noticeInvalidThreshold)
		return redirect(c, "/results")
	}

	if err := h.pipeline.ApplyThresholds(c.Context(), sid, thresholds); err != nil {
		h.log.Warn("apply thresholds", zap.String("session", sid), zap.Error(err))
	}
	return redirect(c, "/results")
}

// Artifact GET /results/artifacts/:key, ?download=1 отдает вложением.
func (h *Handler) Artifact(c fiber.Ctx) error {
	a, err := h.pipeline.Artifact(c.Context(), sessionID(c), c.Params("key"))
	if errors.Is(err, service.ErrNoArchive) || errors.Is(err, service.ErrNoArtifact) {
		return fiber.NewError(fiber.StatusNotFound, "artifact not found")
	}
	if err != nil {
		return err
	}

	if c.Query("download") != "" {
		c.Attachment(a.Name)
	}
	c.Set(fiber.HeaderContentType, a.ContentType())
	return c.Send(a.Data)
}

// DownloadAll GET /results/download
func (h *Handler) DownloadAll(c fiber.Ctx) error {
	data, err := h.pipeline.Archive(c.Context(), sessionID(c))
	if errors.Is(err, service.ErrNoArchive) {
		return fiber.NewError(fiber.StatusNotFound, "no results")
	}
	if err != nil {
		return err
	}

	c.Attachment(ArchiveFilename)
	c.Set(fiber.HeaderContentType, archive.ContentType(ArchiveFilename))
	return c.Send(data)
}

// NewAnalysis POST /new
func (h *Handler) NewAnalysis(c fiber.Ctx) error {
	if err := h.pipeline.NewAnalysis(c.Context(), sessionID(c)); err != nil {
		return err
	}
	return redirect(c, "/")
}
