package handlers

import (
	"structify/internal/common/middleware"

	"github.com/gofiber/fiber/v3"
)

// ============================================================
// Routes
// ============================================================

// Register подключает страницы, API, health и документацию.
func Register(app *fiber.App, h *Handler, api *API, health *Health, specPath string) {
	// Health Check Routes
	app.Get("/health/live", health.LivenessProbe)
	app.Get("/health/ready", health.ReadinessProbe)
	app.Get("/health/startup", health.StartupProbe)

	// Docs
	app.Get("/docs", SwaggerUI)
	app.Get("/docs/openapi.yaml", SwaggerSpec(specPath))

	// API Routes
	v1 := app.Group("/api/v1", middleware.CORS())
	v1.Get("/", api.Index)
	v1.Get("/thresholds", api.Thresholds)
	v1.Post("/process", api.Process)

	// Pages
	app.Get("/", h.Session, h.UploadPage)
	app.Post("/upload", h.Session, h.Upload)
	app.Post("/upload/clear", h.Session, h.ClearUpload)
	app.Post("/upload/start", h.Session, h.StartProcessing)
	app.Get("/upload/preview", h.Session, h.Preview)

	app.Get("/processing", h.Session, h.ProcessingPage)
	app.Get("/processing/status", h.Session, h.ProcessingStatus)

	app.Get("/results", h.Session, h.ResultsPage)
	app.Post("/results/thresholds", h.Session, h.ApplyThresholds)
	app.Get("/results/artifacts/:key", h.Session, h.Artifact)
	app.Get("/results/download", h.Session, h.DownloadAll)

	app.Post("/new", h.Session, h.NewAnalysis)
}
