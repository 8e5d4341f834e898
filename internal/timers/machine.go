// Package timers implements the countdown/stopwatch state machine and its socket handlers.
package timers

import (
	"time"

	"github.com/google/uuid"

	"github.com/aura-stage/backend/internal/apperror"
	"github.com/aura-stage/backend/internal/models"
	"github.com/aura-stage/backend/internal/store"
	"github.com/aura-stage/backend/internal/validation"
)

// Create adds a ready timer built from a sanitized draft.
func Create(ev *store.Event, d validation.TimerDraft, now time.Time) *models.Timer {
	t := &models.Timer{
		ID:          uuid.New().String(),
		Name:        d.Name,
		Type:        d.Type,
		Duration:    d.Duration,
		Status:      models.TimerReady,
		Position:    d.Position,
		Size:        d.Size,
		Style:       d.Style,
		Color:       d.Color,
		DisplayText: d.DisplayText,
		CreatedAt:   now,
	}
	ev.AddTimer(t)
	return t
}

func get(ev *store.Event, timerID string) (*models.Timer, error) {
	t, ok := ev.Timers[timerID]
	if !ok {
		return nil, apperror.NotFound("timer", timerID)
	}
	return t, nil
}

// Start runs a ready timer from zero.
func Start(ev *store.Event, timerID string, now time.Time) (*models.Timer, error) {
	t, err := get(ev, timerID)
	if err != nil {
		return nil, err
	}
	if t.Status != models.TimerReady {
		return nil, apperror.InvalidTransition("timer %s is %s, not ready", t.ID, t.Status)
	}
	start := now
	t.Status = models.TimerRunning
	t.StartedAt = &start
	t.PausedElapsed = 0
	t.CurrentElapsed = 0
	return t, nil
}

// Pause folds the running segment into pausedElapsed. A countdown that already reached
// its duration finishes instead.
func Pause(ev *store.Event, timerID string, now time.Time) (*models.Timer, error) {
	t, err := get(ev, timerID)
	if err != nil {
		return nil, err
	}
	if t.Status != models.TimerRunning {
		return nil, apperror.InvalidTransition("timer %s is %s, not running", t.ID, t.Status)
	}
	elapsed := t.ElapsedAt(now)
	if expired(t, elapsed) {
		finish(t)
		return t, nil
	}
	t.Status = models.TimerPaused
	t.PausedElapsed = elapsed
	t.CurrentElapsed = elapsed
	t.StartedAt = nil
	return t, nil
}

// Resume restarts a paused timer; elapsed continues from pausedElapsed.
func Resume(ev *store.Event, timerID string, now time.Time) (*models.Timer, error) {
	t, err := get(ev, timerID)
	if err != nil {
		return nil, err
	}
	if t.Status != models.TimerPaused {
		return nil, apperror.InvalidTransition("timer %s is %s, not paused", t.ID, t.Status)
	}
	start := now
	t.Status = models.TimerRunning
	t.StartedAt = &start
	return t, nil
}

// Reset returns a timer in any status to ready with zero elapsed time.
func Reset(ev *store.Event, timerID string) (*models.Timer, error) {
	t, err := get(ev, timerID)
	if err != nil {
		return nil, err
	}
	t.Status = models.TimerReady
	t.StartedAt = nil
	t.PausedElapsed = 0
	t.CurrentElapsed = 0
	return t, nil
}

// Delete removes a timer in any status.
func Delete(ev *store.Event, timerID string) (*models.Timer, error) {
	t, err := get(ev, timerID)
	if err != nil {
		return nil, err
	}
	ev.RemoveTimer(t.ID)
	return t, nil
}

// SetDisplayed shows or hides a timer. Showing is rejected when it would put more than
// MaxDisplayedTimers on displays.
func SetDisplayed(ev *store.Event, timerID string, show bool) (*models.Timer, error) {
	t, err := get(ev, timerID)
	if err != nil {
		return nil, err
	}
	if show && !t.ShowOnDisplay {
		shown := 0
		for _, other := range ev.Timers {
			if other.ShowOnDisplay {
				shown++
			}
		}
		if shown >= models.MaxDisplayedTimers {
			return nil, apperror.InvalidTransition("at most %d timers can be displayed", models.MaxDisplayedTimers)
		}
	}
	t.ShowOnDisplay = show
	return t, nil
}

// SettingsPatch is a sanitized `timer:update-settings` request. Nil fields are kept.
type SettingsPatch struct {
	Name       *string
	Duration   *int64
	Appearance validation.TimerAppearance
}

// UpdateSettings applies a patch. The duration of a countdown may change only while
// the timer is ready; stopwatches have none.
func UpdateSettings(ev *store.Event, timerID string, patch SettingsPatch) (*models.Timer, error) {
	t, err := get(ev, timerID)
	if err != nil {
		return nil, err
	}
	if patch.Duration != nil {
		if t.Type != models.TimerCountdown {
			return nil, apperror.Validation("duration", "only countdown timers have a duration")
		}
		if t.Status != models.TimerReady {
			return nil, apperror.InvalidTransition("timer %s is %s; reset it to change the duration", t.ID, t.Status)
		}
	}
	if patch.Name != nil {
		t.Name = *patch.Name
	}
	if patch.Duration != nil {
		d := *patch.Duration
		t.Duration = &d
	}
	a := patch.Appearance
	if a.Position != "" {
		t.Position = a.Position
	}
	if a.Size != "" {
		t.Size = a.Size
	}
	if a.Style != "" {
		t.Style = a.Style
	}
	if a.Color != "" {
		t.Color = a.Color
	}
	return t, nil
}

// UpdateDisplayText sets the caption shown with the timer.
func UpdateDisplayText(ev *store.Event, timerID, text string) (*models.Timer, error) {
	t, err := get(ev, timerID)
	if err != nil {
		return nil, err
	}
	t.DisplayText = text
	return t, nil
}

// Step is the outcome of one scheduler sweep over an event's timers.
type Step struct {
	Ticks    []models.TimerTick
	Finished []*models.Timer
}

// Advance refreshes every running timer at now. Countdowns that reached their duration
// finish; the rest produce a tick.
func Advance(ev *store.Event, now time.Time) Step {
	var s Step
	for _, id := range ev.TimerOrder {
		t := ev.Timers[id]
		if t.Status != models.TimerRunning {
			continue
		}
		elapsed := t.ElapsedAt(now)
		if expired(t, elapsed) {
			finish(t)
			s.Finished = append(s.Finished, t)
			continue
		}
		t.CurrentElapsed = elapsed
		tick := models.TimerTick{TimerID: t.ID, Elapsed: elapsed}
		if t.Duration != nil {
			remaining := *t.Duration - elapsed
			tick.Remaining = &remaining
		}
		s.Ticks = append(s.Ticks, tick)
	}
	return s
}

func expired(t *models.Timer, elapsed int64) bool {
	return t.Type == models.TimerCountdown && t.Duration != nil && elapsed >= *t.Duration
}

func finish(t *models.Timer) {
	t.Status = models.TimerFinished
	t.StartedAt = nil
	t.PausedElapsed = *t.Duration
	t.CurrentElapsed = *t.Duration
}
