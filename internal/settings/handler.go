// Package settings handles per-event display settings updates.
package settings

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/aura-stage/backend/internal/models"
	"github.com/aura-stage/backend/internal/ratelimit"
	"github.com/aura-stage/backend/internal/rooms"
	"github.com/aura-stage/backend/internal/store"
	"github.com/aura-stage/backend/internal/validation"
)

// UpdateRequest is the `settings:update` payload. Settings holds any subset of the
// display setting keys.
type UpdateRequest struct {
	Settings json.RawMessage `json:"settings"`
}

// Handler handles settings socket events.
type Handler struct {
	store   *store.Store
	router  *rooms.Router
	limiter *ratelimit.Limiter
	logger  *zap.Logger
}

// NewHandler creates a settings handler.
func NewHandler(st *store.Store, router *rooms.Router, limiter *ratelimit.Limiter, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: st, router: router, limiter: limiter, logger: logger}
}

// Update handles `settings:update`. The patch applies entirely or not at all.
func (h *Handler) Update(ctx context.Context, c models.Connection, data json.RawMessage) error {
	var req UpdateRequest
	if err := validation.Decode(data, &req); err != nil {
		return err
	}
	patch, err := validation.DecodeSettings(req.Settings)
	if err != nil {
		return err
	}
	if err := h.limiter.Allow(c.ActorID, ratelimit.SettingsUpdate); err != nil {
		return err
	}
	return h.store.Update(c.EventID, func(ev *store.Event) error {
		ev.Settings = patch.Apply(ev.Settings)
		h.logger.Debug("settings updated", zap.String("event_id", ev.ID), zap.Int("keys", patch.Len()))
		h.router.SettingsChanged(ev)
		return nil
	})
}
