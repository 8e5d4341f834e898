package models

import "time"

// TimerType distinguishes countdowns from stopwatches.
type TimerType string

const (
	TimerCountdown TimerType = "countdown"
	TimerStopwatch TimerType = "stopwatch"
)

// TimerStatus is the lifecycle state of a timer.
type TimerStatus string

const (
	TimerReady    TimerStatus = "ready"
	TimerRunning  TimerStatus = "running"
	TimerPaused   TimerStatus = "paused"
	TimerFinished TimerStatus = "finished"
)

// MaxDisplayedTimers bounds how many timers may be shown at once per event.
const MaxDisplayedTimers = 3

// Timer is a countdown or stopwatch. Durations and elapsed values are milliseconds.
type Timer struct {
	ID             string      `json:"id"`
	Name           string      `json:"name"`
	Type           TimerType   `json:"type"`
	Duration       *int64      `json:"duration"`
	Status         TimerStatus `json:"status"`
	StartedAt      *time.Time  `json:"startedAt"`
	PausedElapsed  int64       `json:"pausedElapsed"`
	CurrentElapsed int64       `json:"currentElapsed"`
	ShowOnDisplay  bool        `json:"showOnDisplay"`
	Position       string      `json:"position"`
	Size           string      `json:"size"`
	Style          string      `json:"style"`
	Color          string      `json:"color"`
	DisplayText    string      `json:"displayText"`
	CreatedAt      time.Time   `json:"createdAt"`
}

// ElapsedAt returns elapsed milliseconds at now: pausedElapsed plus the running segment.
func (t *Timer) ElapsedAt(now time.Time) int64 {
	if t.Status == TimerRunning && t.StartedAt != nil {
		return t.PausedElapsed + now.Sub(*t.StartedAt).Milliseconds()
	}
	if t.Status == TimerFinished {
		return t.CurrentElapsed
	}
	return t.PausedElapsed
}

// Clone returns a deep copy.
func (t *Timer) Clone() *Timer {
	c := *t
	if t.Duration != nil {
		d := *t.Duration
		c.Duration = &d
	}
	if t.StartedAt != nil {
		s := *t.StartedAt
		c.StartedAt = &s
	}
	return &c
}

// TimerTick is the lightweight per-sweep progress update.
type TimerTick struct {
	TimerID   string `json:"timerId"`
	Elapsed   int64  `json:"elapsed"`
	Remaining *int64 `json:"remaining,omitempty"`
}

// TimerDisplay is the set of displayed timers plus the server clock, so displays can
// extrapolate elapsed time locally between updates.
type TimerDisplay struct {
	Timers     []*Timer  `json:"timers"`
	ServerTime time.Time `json:"serverTime"`
}
