package handlers

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"structify/internal/web/models"
	"structify/internal/web/service"

	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"
)

// ============================================================
// Upload Stage
// ============================================================

type uploadView struct {
	Image        *models.SelectedImage
	Accept       string
	AllowedTypes []string
}

// UploadPage GET /
func (h *Handler) UploadPage(c fiber.Ctx) error {
	sess, err := h.pipeline.Session(c.Context(), sessionID(c))
	if err != nil {
		return err
	}

	return h.pages.Render(c, fiber.StatusOK, "upload", page{
		Title:   "Upload",
		Notices: h.popNotices(c),
		Data: uploadView{
			Image:        sess.Image,
			Accept:       strings.Join(models.AllowedImageTypes, ","),
			AllowedTypes: models.AllowedImageTypes,
		},
	})
}

// Upload POST /upload. Неподдерживаемый drag-and-drop молча игнорируется.
func (h *Handler) Upload(c fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return redirect(c, "/")
	}

	file, err := fileHeader.Open()
	if err != nil {
		return fmt.Errorf("open upload: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return fmt.Errorf("read upload: %w", err)
	}

	source := service.SourcePicker
	if c.FormValue("source") == string(service.SourceDrop) {
		source = service.SourceDrop
	}
	lastModified, _ := strconv.ParseInt(c.FormValue("last_modified"), 10, 64)

	_, err = h.pipeline.SelectImage(c.Context(), sessionID(c), service.Upload{
		Name:         fileHeader.Filename,
		ContentType:  fileHeader.Header.Get(fiber.HeaderContentType),
		LastModified: lastModified,
		Data:         data,
		Source:       source,
	})
	if err != nil {
		return err
	}
	return redirect(c, "/")
}

// ClearUpload POST /upload/clear
func (h *Handler) ClearUpload(c fiber.Ctx) error {
	if err := h.pipeline.ClearImage(c.Context(), sessionID(c)); err != nil {
		return err
	}
	return redirect(c, "/")
}

// StartProcessing POST /upload/start
func (h *Handler) StartProcessing(c fiber.Ctx) error {
	_, err := h.pipeline.StartProcessing(c.Context(), sessionID(c))
	if errors.Is(err, service.ErrNoImage) {
		return redirect(c, "/")
	}
	if err != nil {
		return err
	}
	return redirect(c, "/processing")
}

// Preview GET /upload/preview
func (h *Handler) Preview(c fiber.Ctx) error {
	img, data, err := h.pipeline.Image(c.Context(), sessionID(c))
	if errors.Is(err, service.ErrNoImage) {
		return fiber.NewError(fiber.StatusNotFound, "no image selected")
	}
	if err != nil {
		h.log.Warn("preview failed", zap.Error(err))
		return err
	}

	c.Set(fiber.HeaderContentType, img.Type)
	c.Set(fiber.HeaderCacheControl, "no-store")
	return c.Send(data)
}
