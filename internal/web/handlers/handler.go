package handlers

import (
	"errors"
	"strings"

	"structify/internal/web/models"
	"structify/internal/web/repository"
	"structify/internal/web/service"

	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"
)

// ============================================================
// Page Handler
// ============================================================

type Handler struct {
	pipeline     *service.Pipeline
	store        repository.Store
	pages        *Renderer
	log          *zap.Logger
	cookieSecure bool
}

type Options struct {
	CookieSecure bool
}

func New(pipeline *service.Pipeline, store repository.Store, pages *Renderer, opts Options, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		pipeline:     pipeline,
		store:        store,
		pages:        pages,
		log:          log.With(zap.String("component", "handlers")),
		cookieSecure: opts.CookieSecure,
	}
}

// popNotices забирает уведомления для показа; ошибка хранилища не мешает странице.
func (h *Handler) popNotices(c fiber.Ctx) []models.Notice {
	notices, err := h.pipeline.PopNotices(c.Context(), sessionID(c))
	if err != nil {
		h.log.Warn("failed to pop notices", zap.Error(err))
		return nil
	}
	return notices
}

func (h *Handler) notify(c fiber.Ctx, n models.Notice) {
	if err := h.pipeline.Notify(c.Context(), sessionID(c), n); err != nil {
		h.log.Warn("failed to queue notice", zap.Error(err))
	}
}

func redirect(c fiber.Ctx, to string) error {
	return c.Redirect().Status(fiber.StatusSeeOther).To(to)
}

type errorView struct {
	Title   string
	Message string
}

// ErrorHandler JSON для /api, страница ошибки для остальных путей.
func (h *Handler) ErrorHandler(c fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Something went wrong"

	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		message = fe.Message
	} else {
		h.log.Error("unhandled error", zap.String("path", c.Path()), zap.Error(err))
	}

	if strings.HasPrefix(c.Path(), "/api/") || strings.HasPrefix(c.Path(), "/health/") {
		return c.Status(code).JSON(fiber.Map{"error": message})
	}
	return h.pages.Render(c, code, "error", page{
		Title: "Error",
		Data:  errorView{Title: "Error", Message: message},
	})
}
