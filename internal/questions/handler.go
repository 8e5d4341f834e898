package questions

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

// AnonymousAuthor is used when a question is submitted without a name.
const AnonymousAuthor = "Anonymous"

// SubmitRequest is the `qa:submit` payload.
type SubmitRequest struct {
	Text       string `json:"text" binding:"required,max=280"`
	AuthorName string `json:"authorName" binding:"max=100"`
}

// QuestionRequest identifies a question.
type QuestionRequest struct {
	QuestionID string `json:"questionId" binding:"required,max=100"`
}

// ToggleRequest is the `qa:toggle` payload. A missing enabled flips the flag.
type ToggleRequest struct {
	Enabled *bool `json:"enabled"`
}

// Handler handles Q&A socket events.
type Handler struct {
	store   *store.Store
	router  *rooms.Router
	limiter *ratelimit.Limiter
	logger  *zap.Logger
}

// NewHandler creates a questions handler.
func NewHandler(st *store.Store, router *rooms.Router, limiter *ratelimit.Limiter, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: st, router: router, limiter: limiter, logger: logger}
}

func decodeQuestion(data json.RawMessage) (string, error) {
	var req QuestionRequest
	if err := validation.Bind(data, &req); err != nil {
		return "", err
	}
	return req.QuestionID, nil
}

// Submit handles `qa:submit` from the audience.
func (h *Handler) Submit(ctx context.Context, c models.Connection, data json.RawMessage) error {
	var req SubmitRequest
	if err := validation.Bind(data, &req); err != nil {
		return err
	}
	text, author := req.Text, req.AuthorName
	if author == "" {
		author = AnonymousAuthor
	}
	if err := h.limiter.Allow(c.ActorID, ratelimit.QASubmit); err != nil {
		return err
	}
	return h.store.Update(c.EventID, func(ev *store.Event) error {
		q, err := Submit(ev, text, author, h.store.Now())
		if err != nil {
			return err
		}
		h.logger.Debug("question submitted", zap.String("event_id", ev.ID), zap.String("question_id", q.ID))
		h.router.QuestionsChanged(ev, false)
		return nil
	})
}

// Upvote handles `qa:upvote` from the audience.
func (h *Handler) Upvote(ctx context.Context, c models.Connection, data json.RawMessage) error {
	id, err := decodeQuestion(data)
	if err != nil {
		return err
	}
	if err := h.limiter.Allow(c.ActorID, ratelimit.QAUpvote); err != nil {
		return err
	}
	return h.store.Update(c.EventID, func(ev *store.Event) error {
		q, err := Upvote(ev, id, c.ActorID)
		if err != nil {
			return err
		}
		h.router.QuestionsChanged(ev, q.Status == models.QuestionFeatured)
		return nil
	})
}

// moderate runs one moderation transition. Displays are updated when the featured
// question may have changed.
func (h *Handler) moderate(c models.Connection, data json.RawMessage, fn func(ev *store.Event, id string) (*models.Question, error)) error {
	id, err := decodeQuestion(data)
	if err != nil {
		return err
	}
	return h.store.Update(c.EventID, func(ev *store.Event) error {
		before := ev.FeaturedQuestion()
		if _, err := fn(ev, id); err != nil {
			return err
		}
		after := ev.FeaturedQuestion()
		h.router.QuestionsChanged(ev, featuredID(before) != featuredID(after))
		return nil
	})
}

func featuredID(q *models.Question) string {
	if q == nil {
		return ""
	}
	return q.ID
}

// Approve handles `qa:approve`.
func (h *Handler) Approve(ctx context.Context, c models.Connection, data json.RawMessage) error {
	return h.moderate(c, data, Approve)
}

// Reject handles `qa:reject`.
func (h *Handler) Reject(ctx context.Context, c models.Connection, data json.RawMessage) error {
	return h.moderate(c, data, Reject)
}

// Feature handles `qa:feature`.
func (h *Handler) Feature(ctx context.Context, c models.Connection, data json.RawMessage) error {
	return h.moderate(c, data, Feature)
}

// Unfeature handles `qa:unfeature`.
func (h *Handler) Unfeature(ctx context.Context, c models.Connection, data json.RawMessage) error {
	return h.moderate(c, data, Unfeature)
}

// Delete handles `qa:delete`.
func (h *Handler) Delete(ctx context.Context, c models.Connection, data json.RawMessage) error {
	return h.moderate(c, data, Delete)
}

// ClearAll handles `qa:clear-all`.
func (h *Handler) ClearAll(ctx context.Context, c models.Connection, _ json.RawMessage) error {
	return h.store.Update(c.EventID, func(ev *store.Event) error {
		hadFeatured := ClearAll(ev)
		h.logger.Info("questions cleared", zap.String("event_id", ev.ID))
		h.router.QuestionsChanged(ev, hadFeatured)
		return nil
	})
}

// Toggle handles `qa:toggle`.
func (h *Handler) Toggle(ctx context.Context, c models.Connection, data json.RawMessage) error {
	var req ToggleRequest
	if err := validation.Decode(data, &req); err != nil {
		return err
	}
	return h.store.Update(c.EventID, func(ev *store.Event) error {
		enabled := Toggle(ev, req.Enabled)
		h.logger.Info("q&a toggled", zap.String("event_id", ev.ID), zap.Bool("enabled", enabled))
		h.router.QuestionsChanged(ev, false)
		return nil
	})
}
