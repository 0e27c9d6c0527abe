package repository

import (
	"context"
	"errors"

	"structify/internal/web/models"
)

// ============================================================
// Session Store
// ============================================================

var ErrNotFound = errors.New("session not found")

// Store хранит состояние сессий между стадиями.
// Update выполняет fn атомарно относительно других Update той же сессии.
type Store interface {
	Create(ctx context.Context) (*models.Session, error)
	Get(ctx context.Context, id string) (*models.Session, error)
	Update(ctx context.Context, id string, fn func(*models.Session) error) (*models.Session, error)
	Delete(ctx context.Context, id string) error
	Ping(ctx context.Context) error
	Close() error
}
