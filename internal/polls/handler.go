package polls

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

// PollRequest identifies a poll in a control payload.
type PollRequest struct {
	PollID string `json:"pollId" binding:"required,max=100"`
}

// VoteRequest is the `poll:vote` payload.
type VoteRequest struct {
	PollID   string `json:"pollId" binding:"required,max=100"`
	OptionID string `json:"optionId" binding:"required,max=100"`
}

// ShowResultsRequest is the `poll:show-results` payload. A missing show flips the flag.
type ShowResultsRequest struct {
	PollID string `json:"pollId" binding:"required,max=100"`
	Show   *bool  `json:"show"`
}

// VoteConfirmed is sent to the voter after an accepted vote.
type VoteConfirmed struct {
	PollID    string   `json:"pollId"`
	OptionIDs []string `json:"optionIds"`
}

// Handler handles poll and bundle socket events.
type Handler struct {
	store     *store.Store
	router    *rooms.Router
	limiter   *ratelimit.Limiter
	publisher *Publisher
	logger    *zap.Logger
}

// NewHandler creates a polls handler.
func NewHandler(st *store.Store, router *rooms.Router, limiter *ratelimit.Limiter, publisher *Publisher, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: st, router: router, limiter: limiter, publisher: publisher, logger: logger}
}

func decodePoll(data json.RawMessage) (string, error) {
	var req PollRequest
	if err := validation.Bind(data, &req); err != nil {
		return "", err
	}
	return req.PollID, nil
}

// Create handles `poll:create`.
func (h *Handler) Create(ctx context.Context, c models.Connection, data json.RawMessage) error {
	var req validation.CreatePollRequest
	if err := validation.Decode(data, &req); err != nil {
		return err
	}
	draft, err := validation.Poll(req)
	if err != nil {
		return err
	}
	if err := h.limiter.Allow(c.ActorID, ratelimit.PollCreate); err != nil {
		return err
	}
	return h.store.Update(c.EventID, func(ev *store.Event) error {
		p := Create(ev, draft, h.store.Now())
		h.logger.Info("poll created", zap.String("event_id", ev.ID), zap.String("poll_id", p.ID))
		h.router.PollsChanged(ev)
		return nil
	})
}

// SendToDisplay handles `poll:send-to-display`.
func (h *Handler) SendToDisplay(ctx context.Context, c models.Connection, data json.RawMessage) error {
	id, err := decodePoll(data)
	if err != nil {
		return err
	}
	return h.store.Update(c.EventID, func(ev *store.Event) error {
		if _, err := SendToDisplay(ev, id, h.store.Now()); err != nil {
			return err
		}
		h.router.PollsChanged(ev)
		h.router.PollDisplayChanged(ev)
		h.router.AudiencePollChanged(ev)
		return nil
	})
}

// Show handles `poll:show`.
func (h *Handler) Show(ctx context.Context, c models.Connection, data json.RawMessage) error {
	id, err := decodePoll(data)
	if err != nil {
		return err
	}
	return h.store.Update(c.EventID, func(ev *store.Event) error {
		if _, err := Show(ev, id); err != nil {
			return err
		}
		h.router.PollsChanged(ev)
		h.router.PollDisplayChanged(ev)
		return nil
	})
}

// Hide handles `poll:hide`.
func (h *Handler) Hide(ctx context.Context, c models.Connection, data json.RawMessage) error {
	id, err := decodePoll(data)
	if err != nil {
		return err
	}
	return h.store.Update(c.EventID, func(ev *store.Event) error {
		if _, err := Hide(ev, id); err != nil {
			return err
		}
		h.router.PollsChanged(ev)
		h.router.PollDisplayChanged(ev)
		return nil
	})
}

// Close handles `poll:close`.
func (h *Handler) Close(ctx context.Context, c models.Connection, data json.RawMessage) error {
	id, err := decodePoll(data)
	if err != nil {
		return err
	}
	var archives []models.PollArchive
	err = h.store.Update(c.EventID, func(ev *store.Event) error {
		p, err := Close(ev, id)
		if err != nil {
			return err
		}
		archives = append(archives, p.Archive(ev.ID, h.store.Now()))
		h.router.PollClosed(ev, p)
		return nil
	})
	if err != nil {
		return err
	}
	h.publisher.Publish(archives)
	return nil
}

// Vote handles `poll:vote` from any joined role but displays. The voter is the caller's
// stable actor id.
func (h *Handler) Vote(ctx context.Context, c models.Connection, data json.RawMessage) error {
	var req VoteRequest
	if err := validation.Bind(data, &req); err != nil {
		return err
	}
	pollID, optionID := req.PollID, req.OptionID
	if err := h.limiter.Allow(c.ActorID, ratelimit.PollVote); err != nil {
		return err
	}
	return h.store.Update(c.EventID, func(ev *store.Event) error {
		p, err := Vote(ev, pollID, c.ActorID, optionID)
		if err != nil {
			return err
		}
		h.router.VoteRecorded(ev, p)
		h.router.SendTo(c.ID, rooms.EventPollVoteConfirmed, VoteConfirmed{
			PollID:    p.ID,
			OptionIDs: p.Selection(c.ActorID),
		})
		return nil
	})
}

// Reset handles `poll:reset`.
func (h *Handler) Reset(ctx context.Context, c models.Connection, data json.RawMessage) error {
	id, err := decodePoll(data)
	if err != nil {
		return err
	}
	return h.store.Update(c.EventID, func(ev *store.Event) error {
		before, ok := ev.Polls[id]
		wasShown := ok && before.ShowOnDisplay
		wasLive := ok && before.Status == models.PollLive
		if _, err := Reset(ev, id); err != nil {
			return err
		}
		h.router.PollsChanged(ev)
		if wasShown {
			h.router.PollDisplayChanged(ev)
		}
		if wasLive {
			h.router.AudiencePollChanged(ev)
		}
		return nil
	})
}

// ShowResults handles `poll:show-results`.
func (h *Handler) ShowResults(ctx context.Context, c models.Connection, data json.RawMessage) error {
	var req ShowResultsRequest
	if err := validation.Bind(data, &req); err != nil {
		return err
	}
	id := req.PollID
	return h.store.Update(c.EventID, func(ev *store.Event) error {
		p, err := SetShowResults(ev, id, req.Show)
		if err != nil {
			return err
		}
		h.router.PollsChanged(ev)
		if p.ShowOnDisplay {
			h.router.PollDisplayChanged(ev)
		}
		return nil
	})
}

// Delete handles `poll:delete`.
func (h *Handler) Delete(ctx context.Context, c models.Connection, data json.RawMessage) error {
	id, err := decodePoll(data)
	if err != nil {
		return err
	}
	return h.store.Update(c.EventID, func(ev *store.Event) error {
		p, err := Delete(ev, id)
		if err != nil {
			return err
		}
		h.router.PollsChanged(ev)
		if p.BundleID != nil {
			h.router.BundlesChanged(ev)
		}
		return nil
	})
}
