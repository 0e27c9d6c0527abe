package handlers

import (
	"errors"
	"time"

	"structify/internal/web/repository"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ============================================================
// Session Middleware
// ============================================================

const (
	SessionCookie = "structify_session"
	sessionKey    = "session_id"
	sessionMaxAge = 7 * 24 * time.Hour
)

// Session находит сессию по cookie или создает новую.
func (h *Handler) Session(c fiber.Ctx) error {
	ctx := c.Context()

	if id := c.Cookies(SessionCookie); id != "" {
		if _, err := uuid.Parse(id); err == nil {
			_, err := h.store.Get(ctx, id)
			if err == nil {
				c.Locals(sessionKey, id)
				return c.Next()
			}
			if !errors.Is(err, repository.ErrNotFound) {
				h.log.Error("failed to load session", zap.Error(err))
				return fiber.NewError(fiber.StatusInternalServerError, "session unavailable")
			}
		}
	}

	sess, err := h.store.Create(ctx)
	if err != nil {
		h.log.Error("failed to create session", zap.Error(err))
		return fiber.NewError(fiber.StatusInternalServerError, "session unavailable")
	}

	c.Cookie(&fiber.Cookie{
		Name:     SessionCookie,
		Value:    sess.ID,
		Path:     "/",
		MaxAge:   int(sessionMaxAge.Seconds()),
		HTTPOnly: true,
		Secure:   h.cookieSecure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	c.Locals(sessionKey, sess.ID)
	h.log.Debug("session created", zap.String("session", sess.ID))
	return c.Next()
}

func sessionID(c fiber.Ctx) string {
	id, _ := c.Locals(sessionKey).(string)
	return id
}
