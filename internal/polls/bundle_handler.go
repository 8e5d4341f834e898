package polls

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/aura-stage/backend/internal/models"
	"github.com/aura-stage/backend/internal/store"
	"github.com/aura-stage/backend/internal/validation"
)

// CreateBundleRequest is the `bundle:create` payload.
type CreateBundleRequest struct {
	Name    string   `json:"name" binding:"required,max=100"`
	PollIDs []string `json:"pollIds" binding:"dive,required,max=100"`
}

// BundlePollRequest is the `bundle:add-poll` and `bundle:remove-poll` payload.
type BundlePollRequest struct {
	BundleID string `json:"bundleId" binding:"required,max=100"`
	PollID   string `json:"pollId" binding:"required,max=100"`
}

// BundleRequest identifies a bundle.
type BundleRequest struct {
	BundleID string `json:"bundleId" binding:"required,max=100"`
}

func decodeBundle(data json.RawMessage) (string, error) {
	var req BundleRequest
	if err := validation.Bind(data, &req); err != nil {
		return "", err
	}
	return req.BundleID, nil
}

func decodeBundlePoll(data json.RawMessage) (string, string, error) {
	var req BundlePollRequest
	if err := validation.Bind(data, &req); err != nil {
		return "", "", err
	}
	return req.BundleID, req.PollID, nil
}

// CreateBundle handles `bundle:create`.
func (h *Handler) CreateBundle(ctx context.Context, c models.Connection, data json.RawMessage) error {
	var req CreateBundleRequest
	if err := validation.Bind(data, &req); err != nil {
		return err
	}
	name, ids := req.Name, req.PollIDs
	return h.store.Update(c.EventID, func(ev *store.Event) error {
		b, err := CreateBundle(ev, name, ids, h.store.Now())
		if err != nil {
			return err
		}
		h.logger.Info("bundle created", zap.String("event_id", ev.ID), zap.String("bundle_id", b.ID))
		h.router.BundlesChanged(ev)
		if len(ids) > 0 {
			h.router.PollsChanged(ev)
		}
		return nil
	})
}

// AddToBundle handles `bundle:add-poll`.
func (h *Handler) AddToBundle(ctx context.Context, c models.Connection, data json.RawMessage) error {
	bundleID, pollID, err := decodeBundlePoll(data)
	if err != nil {
		return err
	}
	return h.store.Update(c.EventID, func(ev *store.Event) error {
		if _, err := AddPoll(ev, bundleID, pollID); err != nil {
			return err
		}
		h.router.BundlesChanged(ev)
		h.router.PollsChanged(ev)
		return nil
	})
}

// RemoveFromBundle handles `bundle:remove-poll`.
func (h *Handler) RemoveFromBundle(ctx context.Context, c models.Connection, data json.RawMessage) error {
	bundleID, pollID, err := decodeBundlePoll(data)
	if err != nil {
		return err
	}
	return h.store.Update(c.EventID, func(ev *store.Event) error {
		if _, err := RemovePoll(ev, bundleID, pollID); err != nil {
			return err
		}
		h.router.BundlesChanged(ev)
		h.router.PollsChanged(ev)
		return nil
	})
}

// StartBundle handles `bundle:start`.
func (h *Handler) StartBundle(ctx context.Context, c models.Connection, data json.RawMessage) error {
	id, err := decodeBundle(data)
	if err != nil {
		return err
	}
	return h.store.Update(c.EventID, func(ev *store.Event) error {
		b, first, err := Start(ev, id, h.store.Now())
		if err != nil {
			return err
		}
		h.logger.Info("bundle started",
			zap.String("event_id", ev.ID),
			zap.String("bundle_id", b.ID),
			zap.String("poll_id", first.ID),
		)
		h.router.BundlesChanged(ev)
		h.router.PollsChanged(ev)
		h.router.PollDisplayChanged(ev)
		h.router.AudiencePollChanged(ev)
		return nil
	})
}

// NextInBundle handles `bundle:next`.
func (h *Handler) NextInBundle(ctx context.Context, c models.Connection, data json.RawMessage) error {
	id, err := decodeBundle(data)
	if err != nil {
		return err
	}
	var archives []models.PollArchive
	err = h.store.Update(c.EventID, func(ev *store.Event) error {
		closed, next, err := Advance(ev, id, h.store.Now())
		if err != nil {
			return err
		}
		if closed != nil {
			archives = append(archives, closed.Archive(ev.ID, h.store.Now()))
			h.router.PollClosed(ev, closed)
		}
		h.router.BundlesChanged(ev)
		h.router.PollsChanged(ev)
		if next != nil {
			h.router.PollDisplayChanged(ev)
			h.router.AudiencePollChanged(ev)
		}
		return nil
	})
	if err != nil {
		return err
	}
	h.publisher.Publish(archives)
	return nil
}

// DeleteBundle handles `bundle:delete`.
func (h *Handler) DeleteBundle(ctx context.Context, c models.Connection, data json.RawMessage) error {
	id, err := decodeBundle(data)
	if err != nil {
		return err
	}
	return h.store.Update(c.EventID, func(ev *store.Event) error {
		b, err := DeleteBundle(ev, id)
		if err != nil {
			return err
		}
		h.router.BundlesChanged(ev)
		if len(b.PollIDs) > 0 {
			h.router.PollsChanged(ev)
		}
		return nil
	})
}
