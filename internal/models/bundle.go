package models

import "time"

// BundleStatus is the lifecycle state of a poll bundle.
type BundleStatus string

const (
	BundleReady     BundleStatus = "ready"
	BundleActive    BundleStatus = "active"
	BundleCompleted BundleStatus = "completed"
)

// Bundle is an ordered sequence of polls advanced one at a time.
type Bundle struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	PollIDs      []string     `json:"pollIds"`
	CurrentIndex int          `json:"currentIndex"`
	Status       BundleStatus `json:"status"`
	CreatedAt    time.Time    `json:"createdAt"`
}

// Clone returns a deep copy.
func (b *Bundle) Clone() *Bundle {
	c := *b
	c.PollIDs = append([]string(nil), b.PollIDs...)
	return &c
}

// IndexOf returns the position of pollID in the bundle, or -1.
func (b *Bundle) IndexOf(pollID string) int {
	for i, id := range b.PollIDs {
		if id == pollID {
			return i
		}
	}
	return -1
}

// CurrentPollID returns the poll at CurrentIndex while the bundle is active.
func (b *Bundle) CurrentPollID() (string, bool) {
	if b.Status != BundleActive || b.CurrentIndex < 0 || b.CurrentIndex >= len(b.PollIDs) {
		return "", false
	}
	return b.PollIDs[b.CurrentIndex], true
}
