package handlers

import (
	"errors"
	"io"

	"structify/internal/web/backend"
	"structify/internal/web/models"
	"structify/internal/web/service"

	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"
)

// ============================================================
// API Handler
// ============================================================

// API программный доступ к обработке без сессии.
type API struct {
	processor service.Processor
	log       *zap.Logger
}

func NewAPI(processor service.Processor, log *zap.Logger) *API {
	if log == nil {
		log = zap.NewNop()
	}
	return &API{processor: processor, log: log.With(zap.String("component", "api"))}
}

// Index GET /api/v1/
func (a *API) Index(c fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"message": "Structify API v1",
		"status":  "ok",
	})
}

// Thresholds GET /api/v1/thresholds
func (a *API) Thresholds(c fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"categories": models.ThresholdCategories,
		"defaults":   models.DefaultThresholds(),
	})
}

// Process POST /api/v1/process: multipart image (+ пороги) -> архив результатов.
// Пороги отправляются, только если передана хотя бы одна категория; значение вне [0,1] дает 400.
func (a *API) Process(c fiber.Ctx) error {
	fileHeader, err := c.FormFile(backend.ImageField)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "image field required"})
	}

	contentType := fileHeader.Header.Get(fiber.HeaderContentType)
	if !models.IsAllowedImageType(contentType) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "unsupported image type"})
	}

	file, err := fileHeader.Open()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid multipart data"})
	}
	data, err := io.ReadAll(file)
	file.Close()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid multipart data"})
	}

	var thresholds models.Thresholds
	if hasThresholdFields(c) {
		thresholds, err = models.DefaultThresholds().ApplyStrict(func(key string) string { return c.FormValue(key) })
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}
	}

	out, err := a.processor.Process(c.Context(), backend.Image{
		Name:        fileHeader.Filename,
		ContentType: contentType,
		Data:        data,
	}, thresholds)
	if err != nil {
		a.log.Warn("process failed", zap.Error(err))
		status := fiber.StatusBadGateway
		if !errors.Is(err, backend.ErrProcessingFailed) {
			status = fiber.StatusInternalServerError
		}
		return c.Status(status).JSON(fiber.Map{"error": "failed to reach processing backend"})
	}

	c.Attachment(ArchiveFilename)
	c.Set(fiber.HeaderContentType, "application/zip")
	return c.Send(out)
}

func hasThresholdFields(c fiber.Ctx) bool {
	for _, cat := range models.ThresholdCategories {
		if c.FormValue(cat.Key) != "" {
			return true
		}
	}
	return false
}
