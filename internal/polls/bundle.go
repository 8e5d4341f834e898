package polls

import (
	"time"

	"github.com/google/uuid"

	"github.com/aura-stage/backend/internal/apperror"
	"github.com/aura-stage/backend/internal/models"
	"github.com/aura-stage/backend/internal/store"
)

func getBundle(ev *store.Event, bundleID string) (*models.Bundle, error) {
	b, ok := ev.Bundles[bundleID]
	if !ok {
		return nil, apperror.NotFound("bundle", bundleID)
	}
	return b, nil
}

// CreateBundle adds a ready bundle. Initial members are checked like AddPoll; one bad
// member rejects the whole bundle.
func CreateBundle(ev *store.Event, name string, pollIDs []string, now time.Time) (*models.Bundle, error) {
	seen := make(map[string]struct{}, len(pollIDs))
	for _, id := range pollIDs {
		if _, dup := seen[id]; dup {
			return nil, apperror.Validation("pollIds", "contains %s twice", id)
		}
		seen[id] = struct{}{}
		if err := checkJoinable(ev, id); err != nil {
			return nil, err
		}
	}
	b := &models.Bundle{
		ID:        uuid.New().String(),
		Name:      name,
		PollIDs:   append([]string{}, pollIDs...),
		Status:    models.BundleReady,
		CreatedAt: now,
	}
	for _, id := range pollIDs {
		bid := b.ID
		ev.Polls[id].BundleID = &bid
	}
	ev.AddBundle(b)
	return b, nil
}

func checkJoinable(ev *store.Event, pollID string) error {
	p, err := get(ev, pollID)
	if err != nil {
		return err
	}
	if p.BundleID != nil {
		return apperror.InvalidTransition("poll %s already belongs to bundle %s", p.ID, *p.BundleID)
	}
	return nil
}

// AddPoll appends a poll to a ready bundle. A poll belongs to at most one bundle.
func AddPoll(ev *store.Event, bundleID, pollID string) (*models.Bundle, error) {
	b, err := getBundle(ev, bundleID)
	if err != nil {
		return nil, err
	}
	if b.Status != models.BundleReady {
		return nil, apperror.InvalidTransition("bundle %s is %s; membership is locked", b.ID, b.Status)
	}
	if err := checkJoinable(ev, pollID); err != nil {
		return nil, err
	}
	bid := b.ID
	ev.Polls[pollID].BundleID = &bid
	b.PollIDs = append(b.PollIDs, pollID)
	return b, nil
}

// RemovePoll takes a poll out of a ready bundle and clears its bundleId.
func RemovePoll(ev *store.Event, bundleID, pollID string) (*models.Bundle, error) {
	b, err := getBundle(ev, bundleID)
	if err != nil {
		return nil, err
	}
	if b.Status != models.BundleReady {
		return nil, apperror.InvalidTransition("bundle %s is %s; membership is locked", b.ID, b.Status)
	}
	if b.IndexOf(pollID) < 0 {
		return nil, apperror.NotFound("bundle poll", pollID)
	}
	b.PollIDs = removeID(b.PollIDs, pollID)
	if p, ok := ev.Polls[pollID]; ok {
		p.BundleID = nil
	}
	return b, nil
}

// Start activates a ready bundle and sends its first poll live. Every member must be
// ready and no other bundle may be running.
func Start(ev *store.Event, bundleID string, now time.Time) (*models.Bundle, *models.Poll, error) {
	b, err := getBundle(ev, bundleID)
	if err != nil {
		return nil, nil, err
	}
	if b.Status != models.BundleReady {
		return nil, nil, apperror.InvalidTransition("bundle %s is %s, not ready", b.ID, b.Status)
	}
	if len(b.PollIDs) == 0 {
		return nil, nil, apperror.InvalidTransition("bundle %s has no polls", b.ID)
	}
	for _, other := range ev.Bundles {
		if other.Status == models.BundleActive {
			return nil, nil, apperror.InvalidTransition("bundle %s is already running", other.ID)
		}
	}
	for _, id := range b.PollIDs {
		p, err := get(ev, id)
		if err != nil {
			return nil, nil, err
		}
		if p.Status != models.PollReady {
			return nil, nil, apperror.InvalidTransition("poll %s in bundle is %s, not ready", p.ID, p.Status)
		}
	}

	b.Status = models.BundleActive
	b.CurrentIndex = 0
	first := ev.Polls[b.PollIDs[0]]
	goLive(ev, first, now)
	return b, first, nil
}

// Advance moves an active bundle to its next poll. The current poll must have its
// results shown; it is closed if still live. Past the last poll the bundle completes
// and the final poll stays on displays.
func Advance(ev *store.Event, bundleID string, now time.Time) (closed, next *models.Poll, err error) {
	b, err := getBundle(ev, bundleID)
	if err != nil {
		return nil, nil, err
	}
	currentID, ok := b.CurrentPollID()
	if !ok {
		return nil, nil, apperror.InvalidTransition("bundle %s is %s, not active", b.ID, b.Status)
	}
	current, err := get(ev, currentID)
	if err != nil {
		return nil, nil, err
	}
	if !current.ShowResults {
		return nil, nil, apperror.InvalidTransition("show results for poll %s before advancing", current.ID)
	}

	nextIndex := b.CurrentIndex + 1
	if nextIndex < len(b.PollIDs) {
		next, err = get(ev, b.PollIDs[nextIndex])
		if err != nil {
			return nil, nil, err
		}
		if next.Status != models.PollReady {
			return nil, nil, apperror.InvalidTransition("next poll %s is %s, not ready", next.ID, next.Status)
		}
	}

	if current.Status == models.PollLive {
		current.Status = models.PollClosed
		current.ClosesAt = nil
		closed = current
	}
	b.CurrentIndex = nextIndex
	if next == nil {
		b.Status = models.BundleCompleted
		return closed, nil, nil
	}
	goLive(ev, next, now)
	return closed, next, nil
}

// DeleteBundle removes a bundle that is not running and releases its polls.
func DeleteBundle(ev *store.Event, bundleID string) (*models.Bundle, error) {
	b, err := getBundle(ev, bundleID)
	if err != nil {
		return nil, err
	}
	if b.Status == models.BundleActive {
		return nil, apperror.InvalidTransition("bundle %s is active", b.ID)
	}
	for _, id := range b.PollIDs {
		if p, ok := ev.Polls[id]; ok {
			p.BundleID = nil
		}
	}
	ev.RemoveBundle(b.ID)
	return b, nil
}
