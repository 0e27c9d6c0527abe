package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"structify/internal/common/config"
	"structify/internal/common/logger"
	"structify/internal/common/middleware"
	"structify/internal/web/backend"
	"structify/internal/web/handlers"
	"structify/internal/web/repository"
	"structify/internal/web/service"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"go.uber.org/zap"
)

// ============================================================
// Structify Web
// ============================================================

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	zlog, err := logger.New(cfg.Environment)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	store, err := openStore(cfg)
	if err != nil {
		zlog.Fatal("failed to open session store", zap.Error(err))
	}
	defer store.Close()

	storage := service.NewFileStorage(cfg.StorageDir)
	client := backend.NewClient(cfg.BackendURL, time.Duration(cfg.BackendTimeout)*time.Second, zlog)
	pipeline := service.New(store, storage, client, service.Options{
		PhaseDwell:   cfg.PhaseDwell,
		PhaseMode:    service.PhaseMode(cfg.PhaseMode),
		ArtifactTTL:  cfg.ArtifactTTL,
		JobRetention: cfg.JobRetention,
	}, zlog)

	janitorCtx, stopJanitor := context.WithCancel(context.Background())
	defer stopJanitor()
	go pipeline.RunJanitor(janitorCtx, cfg.SweepInterval)

	pages, err := handlers.NewRenderer()
	if err != nil {
		zlog.Fatal("failed to parse templates", zap.Error(err))
	}
	h := handlers.New(pipeline, store, pages, handlers.Options{CookieSecure: cfg.CookieSecure}, zlog)

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeout) * time.Second,
		BodyLimit:    cfg.BodyLimit,
		ErrorHandler: h.ErrorHandler,
		AppName:      "Structify",
	})

	// ============================================================
	// Global Middleware
	// ============================================================

	app.Use(recover.New())
	app.Use(middleware.Logger(zlog))

	handlers.Register(app, h, handlers.NewAPI(client, zlog), handlers.NewHealth(store), "docs/structify.openapi.yaml")

	// ============================================================
	// Server Start
	// ============================================================

	addr := fmt.Sprintf(":%s", cfg.Port)
	zlog.Info("starting structify",
		zap.String("addr", addr),
		zap.String("env", cfg.Environment),
		zap.String("backend", client.Endpoint()),
		zap.String("session_store", cfg.SessionStore),
		zap.String("phase_mode", cfg.PhaseMode))

	if err := app.Listen(addr); err != nil {
		zlog.Fatal("failed to start server", zap.Error(err))
	}
}

func openStore(cfg *config.Config) (repository.Store, error) {
	if cfg.SessionStore != config.SessionStoreSQLite {
		return repository.NewMemoryStore(), nil
	}

	db, err := repository.OpenSQLite(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	store := repository.NewSQLiteStore(db)
	if err := store.Init(context.Background()); err != nil {
		store.Close()
		return nil, fmt.Errorf("init db: %w", err)
	}
	return store, nil
}
