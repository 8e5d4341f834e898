// Package reactions queues audience emoji reactions and releases them to displays.
package reactions

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-stage/backend/internal/apperror"
	"github.com/aura-stage/backend/internal/models"
	"github.com/aura-stage/backend/internal/ratelimit"
	"github.com/aura-stage/backend/internal/rooms"
	"github.com/aura-stage/backend/internal/store"
	"github.com/aura-stage/backend/internal/validation"
)

// MaxQueue bounds the pending reactions of one event; the oldest are dropped first.
const MaxQueue = 1000

// DefaultTestEmoji is used when a test reaction names none.
const DefaultTestEmoji = "🎉"

// SendRequest is the `reaction:send` payload.
type SendRequest struct {
	Emoji string `json:"emoji" binding:"required,reaction_emoji"`
}

// TestRequest is the `reaction:test` payload. A missing emoji uses DefaultTestEmoji.
type TestRequest struct {
	Emoji string `json:"emoji" binding:"omitempty,reaction_emoji"`
}

// SurgeRequest is the `reaction:test-surge` payload.
type SurgeRequest struct {
	Emoji string `json:"emoji" binding:"omitempty,reaction_emoji"`
	Count int    `json:"count" binding:"omitempty,min=1,max=50"`
}

// Handler handles reaction socket events.
type Handler struct {
	store   *store.Store
	router  *rooms.Router
	limiter *ratelimit.Limiter
	logger  *zap.Logger

	mu        sync.Mutex
	cooldowns map[string]time.Time
}

// NewHandler creates a reactions handler.
func NewHandler(st *store.Store, router *rooms.Router, limiter *ratelimit.Limiter, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		store:     st,
		router:    router,
		limiter:   limiter,
		logger:    logger,
		cooldowns: make(map[string]time.Time),
	}
}

func newReaction(emoji string, surge bool, now time.Time) models.Reaction {
	return models.Reaction{ID: uuid.New().String(), Emoji: emoji, Surge: surge, CreatedAt: now}
}

// Enqueue appends a reaction to the event queue and counts it.
func Enqueue(ev *store.Event, r models.Reaction) {
	ev.Reactions = append(ev.Reactions, r)
	if over := len(ev.Reactions) - MaxQueue; over > 0 {
		ev.Reactions = append([]models.Reaction(nil), ev.Reactions[over:]...)
	}
	ev.TotalReactions++
}

// Drain removes up to maxOnScreen reactions from the queue. Nothing leaves the queue
// while emojis are disabled.
func Drain(ev *store.Event) []models.Reaction {
	if !ev.Settings.EmojisEnabled || len(ev.Reactions) == 0 {
		return nil
	}
	n := ev.Settings.MaxOnScreen
	if n <= 0 || n > len(ev.Reactions) {
		n = len(ev.Reactions)
	}
	batch := append([]models.Reaction(nil), ev.Reactions[:n]...)
	ev.Reactions = append(ev.Reactions[:0:0], ev.Reactions[n:]...)
	return batch
}

// Send handles `reaction:send` from the audience. Spam is dropped; the sender hears
// one `reaction:cooldown` per window.
func (h *Handler) Send(ctx context.Context, c models.Connection, data json.RawMessage) error {
	var req SendRequest
	if err := validation.Bind(data, &req); err != nil {
		return err
	}
	emoji := req.Emoji
	if err := h.limiter.Allow(c.ActorID, ratelimit.ReactionSend); err != nil {
		var appErr *apperror.Error
		if errors.As(err, &appErr) && h.startCooldown(c.ActorID, appErr.RetryAfterSeconds) {
			h.router.SendTo(c.ID, rooms.EventReactionCooldown, rooms.ReactionCooldown{RetryAfterSeconds: appErr.RetryAfterSeconds})
		}
		return nil
	}
	return h.store.Update(c.EventID, func(ev *store.Event) error {
		Enqueue(ev, newReaction(emoji, false, h.store.Now()))
		h.router.StatsChanged(ev)
		return nil
	})
}

// startCooldown reports whether the actor should be told about a new cooldown.
func (h *Handler) startCooldown(actorID string, retryAfterSeconds int) bool {
	now := h.store.Now()
	h.mu.Lock()
	defer h.mu.Unlock()
	if until, ok := h.cooldowns[actorID]; ok && now.Before(until) {
		return false
	}
	if len(h.cooldowns) > 1024 {
		for id, until := range h.cooldowns {
			if !now.Before(until) {
				delete(h.cooldowns, id)
			}
		}
	}
	h.cooldowns[actorID] = now.Add(time.Duration(retryAfterSeconds) * time.Second)
	return true
}

func testEmoji(e string) string {
	if e == "" {
		return DefaultTestEmoji
	}
	return e
}

// Test handles `reaction:test`: one reaction straight to displays.
func (h *Handler) Test(ctx context.Context, c models.Connection, data json.RawMessage) error {
	var req TestRequest
	if err := validation.Bind(data, &req); err != nil {
		return err
	}
	emoji := testEmoji(req.Emoji)
	return h.store.Update(c.EventID, func(ev *store.Event) error {
		h.router.Reactions(ev, []models.Reaction{newReaction(emoji, false, h.store.Now())})
		return nil
	})
}

// TestSurge handles `reaction:test-surge`: a burst straight to displays, bypassing the
// queue and the emojisEnabled switch.
func (h *Handler) TestSurge(ctx context.Context, c models.Connection, data json.RawMessage) error {
	var req SurgeRequest
	if err := validation.Bind(data, &req); err != nil {
		return err
	}
	emoji, count := testEmoji(req.Emoji), req.Count
	if count == 0 {
		count = validation.DefaultSurgeCount
	}
	return h.store.Update(c.EventID, func(ev *store.Event) error {
		now := h.store.Now()
		batch := make([]models.Reaction, count)
		for i := range batch {
			batch[i] = newReaction(emoji, true, now)
		}
		h.router.Reactions(ev, batch)
		return nil
	})
}

// ClearQueue handles `queue:clear`.
func (h *Handler) ClearQueue(ctx context.Context, c models.Connection, _ json.RawMessage) error {
	return h.store.Update(c.EventID, func(ev *store.Event) error {
		dropped := len(ev.Reactions)
		ev.Reactions = nil
		h.logger.Info("reaction queue cleared", zap.String("event_id", ev.ID), zap.Int("dropped", dropped))
		h.router.StatsChanged(ev)
		return nil
	})
}
