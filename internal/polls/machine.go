// Package polls implements the poll and bundle state machines and their socket handlers.
//
// Transition functions operate on a locked *store.Event and either apply completely or
// return an error leaving the event untouched.
package polls

import (
	"time"

	"github.com/google/uuid"

	"github.com/aura-stage/backend/internal/apperror"
	"github.com/aura-stage/backend/internal/models"
	"github.com/aura-stage/backend/internal/store"
	"github.com/aura-stage/backend/internal/validation"
)

// Create adds a ready poll built from a sanitized draft.
func Create(ev *store.Event, d validation.PollDraft, now time.Time) *models.Poll {
	opts := make([]models.PollOption, len(d.Options))
	for i, o := range d.Options {
		opts[i] = models.PollOption{ID: uuid.New().String(), Text: o.Text, IsCorrect: o.IsCorrect}
	}
	p := &models.Poll{
		ID:              uuid.New().String(),
		Question:        d.Question,
		Options:         opts,
		AllowChange:     d.AllowChange,
		AllowMultiple:   d.AllowMultiple,
		LiveResults:     d.LiveResults,
		DurationSeconds: d.DurationSeconds,
		Status:          models.PollReady,
		CreatedAt:       now,
		Results:         models.NewPollResults(opts),
	}
	ev.AddPoll(p)
	return p
}

func get(ev *store.Event, pollID string) (*models.Poll, error) {
	p, ok := ev.Polls[pollID]
	if !ok {
		return nil, apperror.NotFound("poll", pollID)
	}
	return p, nil
}

// hideOthers keeps at most one poll on displays.
func hideOthers(ev *store.Event, keep string) {
	for id, p := range ev.Polls {
		if id != keep {
			p.ShowOnDisplay = false
		}
	}
}

// checkBundleTurn keeps a running bundle in charge of its members: only the current
// poll may be put on displays.
func checkBundleTurn(ev *store.Event, p *models.Poll) error {
	if p.BundleID == nil {
		return nil
	}
	b, ok := ev.Bundles[*p.BundleID]
	if !ok {
		return nil
	}
	if current, active := b.CurrentPollID(); active && current != p.ID {
		return apperror.InvalidTransition("bundle %s is running; only its current poll %s can be displayed", b.ID, current)
	}
	return nil
}

// SendToDisplay moves a ready poll live and shows it. Polls with a duration get a
// closesAt deadline for the scheduler.
func SendToDisplay(ev *store.Event, pollID string, now time.Time) (*models.Poll, error) {
	p, err := get(ev, pollID)
	if err != nil {
		return nil, err
	}
	if p.Status != models.PollReady {
		return nil, apperror.InvalidTransition("poll %s is %s, not ready", p.ID, p.Status)
	}
	if err := checkBundleTurn(ev, p); err != nil {
		return nil, err
	}
	goLive(ev, p, now)
	return p, nil
}

func goLive(ev *store.Event, p *models.Poll, now time.Time) {
	p.Status = models.PollLive
	p.ShowOnDisplay = true
	p.ClosesAt = nil
	if p.DurationSeconds != nil {
		at := now.Add(time.Duration(*p.DurationSeconds) * time.Second)
		p.ClosesAt = &at
	}
	hideOthers(ev, p.ID)
}

// Show puts a live or closed poll back on displays without changing its status.
func Show(ev *store.Event, pollID string) (*models.Poll, error) {
	p, err := get(ev, pollID)
	if err != nil {
		return nil, err
	}
	if p.Status == models.PollReady {
		return nil, apperror.InvalidTransition("poll %s is ready; send it to display first", p.ID)
	}
	if err := checkBundleTurn(ev, p); err != nil {
		return nil, err
	}
	p.ShowOnDisplay = true
	hideOthers(ev, p.ID)
	return p, nil
}

// Hide removes a poll from displays in any status.
func Hide(ev *store.Event, pollID string) (*models.Poll, error) {
	p, err := get(ev, pollID)
	if err != nil {
		return nil, err
	}
	p.ShowOnDisplay = false
	return p, nil
}

// Close stops a live poll from accepting votes. It stays on displays.
func Close(ev *store.Event, pollID string) (*models.Poll, error) {
	p, err := get(ev, pollID)
	if err != nil {
		return nil, err
	}
	if p.Status != models.PollLive {
		return nil, apperror.InvalidTransition("poll %s is %s, not live", p.ID, p.Status)
	}
	p.Status = models.PollClosed
	p.ClosesAt = nil
	return p, nil
}

// CloseExpired closes every live poll whose deadline is at or before now.
func CloseExpired(ev *store.Event, now time.Time) []*models.Poll {
	var closed []*models.Poll
	for _, id := range ev.PollOrder {
		p := ev.Polls[id]
		if p.Status != models.PollLive || p.ClosesAt == nil || p.ClosesAt.After(now) {
			continue
		}
		p.Status = models.PollClosed
		p.ClosesAt = nil
		closed = append(closed, p)
	}
	return closed
}

// Vote applies one option choice for voterID. Behavior depends on the poll's
// configuration:
//
//	single, no change:   first vote only; a second vote is AlreadyVoted
//	single, change:      replaces the previous choice; the same option is a no-op
//	multiple, no change: choices accumulate; repeating a chosen option is AlreadyVoted
//	multiple, change:    toggles the option in the voter's set
//
// Counts are recomputed from the voter sets after every accepted vote.
func Vote(ev *store.Event, pollID, voterID, optionID string) (*models.Poll, error) {
	p, err := get(ev, pollID)
	if err != nil {
		return nil, err
	}
	if p.Status != models.PollLive {
		return nil, apperror.InvalidTransition("poll %s is %s and not accepting votes", p.ID, p.Status)
	}
	if !p.HasOption(optionID) {
		return nil, apperror.NotFound("option", optionID)
	}

	selected := p.Results.Voters[voterID]
	_, chosen := selected[optionID]

	switch {
	case !p.AllowMultiple && !p.AllowChange:
		if len(selected) > 0 {
			return nil, apperror.AlreadyVoted(p.ID)
		}
		selected = map[string]struct{}{optionID: {}}
	case !p.AllowMultiple && p.AllowChange:
		if chosen {
			return p, nil
		}
		selected = map[string]struct{}{optionID: {}}
	case p.AllowMultiple && !p.AllowChange:
		if chosen {
			return nil, apperror.AlreadyVoted(p.ID)
		}
		selected = withOption(selected, optionID)
	default:
		if chosen {
			selected = withoutOption(selected, optionID)
		} else {
			selected = withOption(selected, optionID)
		}
	}

	if p.Results.Voters == nil {
		p.Results.Voters = make(map[string]map[string]struct{})
	}
	if len(selected) == 0 {
		delete(p.Results.Voters, voterID)
	} else {
		p.Results.Voters[voterID] = selected
	}
	p.Recount()
	return p, nil
}

func withOption(set map[string]struct{}, id string) map[string]struct{} {
	out := make(map[string]struct{}, len(set)+1)
	for k := range set {
		out[k] = struct{}{}
	}
	out[id] = struct{}{}
	return out
}

func withoutOption(set map[string]struct{}, id string) map[string]struct{} {
	out := make(map[string]struct{}, len(set))
	for k := range set {
		if k != id {
			out[k] = struct{}{}
		}
	}
	return out
}

// Reset returns a poll in any status to ready and clears its votes and display flags.
func Reset(ev *store.Event, pollID string) (*models.Poll, error) {
	p, err := get(ev, pollID)
	if err != nil {
		return nil, err
	}
	p.Status = models.PollReady
	p.ShowOnDisplay = false
	p.ShowResults = false
	p.ClosesAt = nil
	p.Results = models.NewPollResults(p.Options)
	return p, nil
}

// SetShowResults sets the results flag, or flips it when show is nil. Allowed in any
// status.
func SetShowResults(ev *store.Event, pollID string, show *bool) (*models.Poll, error) {
	p, err := get(ev, pollID)
	if err != nil {
		return nil, err
	}
	if show == nil {
		p.ShowResults = !p.ShowResults
	} else {
		p.ShowResults = *show
	}
	return p, nil
}

// Delete removes a ready poll and drops it from its bundle. Polls in an active bundle
// cannot be deleted.
func Delete(ev *store.Event, pollID string) (*models.Poll, error) {
	p, err := get(ev, pollID)
	if err != nil {
		return nil, err
	}
	if p.Status != models.PollReady {
		return nil, apperror.InvalidTransition("poll %s is %s; only ready polls can be deleted", p.ID, p.Status)
	}
	if p.BundleID != nil {
		b, ok := ev.Bundles[*p.BundleID]
		if ok {
			if b.Status == models.BundleActive {
				return nil, apperror.InvalidTransition("poll %s belongs to active bundle %s", p.ID, b.ID)
			}
			b.PollIDs = removeID(b.PollIDs, p.ID)
		}
	}
	ev.RemovePoll(p.ID)
	return p, nil
}

func removeID(ids []string, id string) []string {
	out := make([]string, 0, len(ids))
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
