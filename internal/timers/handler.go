package timers

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/aura-stage/backend/internal/models"
	"github.com/aura-stage/backend/internal/rooms"
	"github.com/aura-stage/backend/internal/store"
	"github.com/aura-stage/backend/internal/validation"
)

// TimerRequest identifies a timer.
type TimerRequest struct {
	TimerID string `json:"timerId" binding:"required,max=100"`
}

// UpdateSettingsRequest is the `timer:update-settings` payload.
type UpdateSettingsRequest struct {
	TimerID  string  `json:"timerId" binding:"required,max=100"`
	Name     *string `json:"name" binding:"omitempty,min=1,max=100"`
	Duration *int64  `json:"duration" binding:"omitempty,gt=0,lte=86400000"`
	Position string  `json:"position" binding:"omitempty,screen_position"`
	Size     string  `json:"size" binding:"omitempty,element_size"`
	Style    string  `json:"style" binding:"omitempty,timer_style"`
	Color    string  `json:"color" binding:"omitempty,timer_color"`
}

// DisplayTextRequest is the `timer:update-display-text` payload.
type DisplayTextRequest struct {
	TimerID     string `json:"timerId" binding:"required,max=100"`
	DisplayText string `json:"displayText" binding:"max=100"`
}

// Handler handles timer socket events.
type Handler struct {
	store  *store.Store
	router *rooms.Router
	logger *zap.Logger
}

// NewHandler creates a timers handler.
func NewHandler(st *store.Store, router *rooms.Router, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: st, router: router, logger: logger}
}

func decodeTimer(data json.RawMessage) (string, error) {
	var req TimerRequest
	if err := validation.Bind(data, &req); err != nil {
		return "", err
	}
	return req.TimerID, nil
}

// apply runs a transition on one timer and broadcasts the result. Displays are updated
// when the timer was or is shown.
func (h *Handler) apply(c models.Connection, timerID string, fn func(ev *store.Event) (*models.Timer, error)) error {
	return h.store.Update(c.EventID, func(ev *store.Event) error {
		wasShown := false
		if t, ok := ev.Timers[timerID]; ok {
			wasShown = t.ShowOnDisplay
		}
		t, err := fn(ev)
		if err != nil {
			return err
		}
		h.router.TimersChanged(ev, h.store.Now(), wasShown || t.ShowOnDisplay)
		return nil
	})
}

// Create handles `timer:create`.
func (h *Handler) Create(ctx context.Context, c models.Connection, data json.RawMessage) error {
	var req validation.CreateTimerRequest
	if err := validation.Decode(data, &req); err != nil {
		return err
	}
	return h.store.Update(c.EventID, func(ev *store.Event) error {
		d, err := validation.Timer(req, ev.Settings)
		if err != nil {
			return err
		}
		t := Create(ev, d, h.store.Now())
		h.logger.Info("timer created", zap.String("event_id", ev.ID), zap.String("timer_id", t.ID), zap.String("type", string(t.Type)))
		h.router.TimersChanged(ev, h.store.Now(), false)
		return nil
	})
}

// Start handles `timer:start`.
func (h *Handler) Start(ctx context.Context, c models.Connection, data json.RawMessage) error {
	id, err := decodeTimer(data)
	if err != nil {
		return err
	}
	return h.apply(c, id, func(ev *store.Event) (*models.Timer, error) {
		return Start(ev, id, h.store.Now())
	})
}

// Pause handles `timer:pause`.
func (h *Handler) Pause(ctx context.Context, c models.Connection, data json.RawMessage) error {
	id, err := decodeTimer(data)
	if err != nil {
		return err
	}
	return h.apply(c, id, func(ev *store.Event) (*models.Timer, error) {
		return Pause(ev, id, h.store.Now())
	})
}

// Resume handles `timer:resume`.
func (h *Handler) Resume(ctx context.Context, c models.Connection, data json.RawMessage) error {
	id, err := decodeTimer(data)
	if err != nil {
		return err
	}
	return h.apply(c, id, func(ev *store.Event) (*models.Timer, error) {
		return Resume(ev, id, h.store.Now())
	})
}

// Reset handles `timer:reset`.
func (h *Handler) Reset(ctx context.Context, c models.Connection, data json.RawMessage) error {
	id, err := decodeTimer(data)
	if err != nil {
		return err
	}
	return h.apply(c, id, func(ev *store.Event) (*models.Timer, error) {
		return Reset(ev, id)
	})
}

// Delete handles `timer:delete`.
func (h *Handler) Delete(ctx context.Context, c models.Connection, data json.RawMessage) error {
	id, err := decodeTimer(data)
	if err != nil {
		return err
	}
	return h.apply(c, id, func(ev *store.Event) (*models.Timer, error) {
		return Delete(ev, id)
	})
}

// SendToDisplay handles `timer:send-to-display`.
func (h *Handler) SendToDisplay(ctx context.Context, c models.Connection, data json.RawMessage) error {
	id, err := decodeTimer(data)
	if err != nil {
		return err
	}
	return h.apply(c, id, func(ev *store.Event) (*models.Timer, error) {
		return SetDisplayed(ev, id, true)
	})
}

// Hide handles `timer:hide`.
func (h *Handler) Hide(ctx context.Context, c models.Connection, data json.RawMessage) error {
	id, err := decodeTimer(data)
	if err != nil {
		return err
	}
	return h.apply(c, id, func(ev *store.Event) (*models.Timer, error) {
		return SetDisplayed(ev, id, false)
	})
}

// UpdateSettings handles `timer:update-settings`.
func (h *Handler) UpdateSettings(ctx context.Context, c models.Connection, data json.RawMessage) error {
	var req UpdateSettingsRequest
	if err := validation.Bind(data, &req); err != nil {
		return err
	}
	id := req.TimerID
	patch := SettingsPatch{
		Name:       req.Name,
		Duration:   req.Duration,
		Appearance: validation.TimerAppearance{Position: req.Position, Size: req.Size, Style: req.Style, Color: req.Color},
	}
	return h.apply(c, id, func(ev *store.Event) (*models.Timer, error) {
		return UpdateSettings(ev, id, patch)
	})
}

// UpdateDisplayText handles `timer:update-display-text`.
func (h *Handler) UpdateDisplayText(ctx context.Context, c models.Connection, data json.RawMessage) error {
	var req DisplayTextRequest
	if err := validation.Bind(data, &req); err != nil {
		return err
	}
	id, text := req.TimerID, req.DisplayText
	return h.apply(c, id, func(ev *store.Event) (*models.Timer, error) {
		return UpdateDisplayText(ev, id, text)
	})
}
