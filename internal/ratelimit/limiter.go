// Package ratelimit implements a sliding-window request counter keyed by (actor, action).
package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/aura-stage/backend/internal/apperror"
)

// Action is a rate-limited action class.
type Action string

const (
	PollCreate     Action = "pollCreate"
	PollVote       Action = "pollVote"
	QASubmit       Action = "qaSubmit"
	QAUpvote       Action = "qaUpvote"
	SettingsUpdate Action = "settingsUpdate"
	ReactionSend   Action = "reactionSend"
)

// Rule is a limit of Max requests per Window.
type Rule struct {
	Max    int
	Window time.Duration
}

// DefaultRules are the production limits.
var DefaultRules = map[Action]Rule{
	PollCreate:     {Max: 100, Window: time.Hour},
	PollVote:       {Max: 200, Window: time.Minute},
	QASubmit:       {Max: 20, Window: time.Minute},
	QAUpvote:       {Max: 100, Window: time.Minute},
	SettingsUpdate: {Max: 50, Window: time.Minute},
	ReactionSend:   {Max: 10, Window: 10 * time.Second},
}

type key struct {
	actor  string
	action Action
}

// Limiter keeps request timestamps per key. Keys are stable identities, so limits
// survive reconnects.
type Limiter struct {
	mu      sync.Mutex
	rules   map[Action]Rule
	windows map[key][]time.Time
	clock   clockwork.Clock
	logger  *zap.Logger
}

// New creates a limiter. A nil clock uses the real clock.
func New(rules map[Action]Rule, clock clockwork.Clock, logger *zap.Logger) *Limiter {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Limiter{
		rules:   rules,
		windows: make(map[key][]time.Time),
		clock:   clock,
		logger:  logger,
	}
}

// Allow records one request for (actor, action) if it fits in the window. Otherwise it
// returns a RATE_LIMITED error carrying the seconds until the oldest request expires.
// Actions without a rule are never limited.
func (l *Limiter) Allow(actor string, action Action) error {
	rule, ok := l.rules[action]
	if !ok {
		return nil
	}
	now := l.clock.Now()
	k := key{actor: actor, action: action}

	l.mu.Lock()
	defer l.mu.Unlock()

	hits := prune(l.windows[k], now.Add(-rule.Window))
	if len(hits) >= rule.Max {
		l.windows[k] = hits
		retry := hits[0].Add(rule.Window).Sub(now)
		secs := int(math.Ceil(retry.Seconds()))
		if secs < 1 {
			secs = 1
		}
		return apperror.RateLimited(string(action), secs)
	}
	l.windows[k] = append(hits, now)
	return nil
}

// Sweep drops keys whose requests have all left their window.
func (l *Limiter) Sweep() int {
	now := l.clock.Now()
	l.mu.Lock()
	defer l.mu.Unlock()
	removed := 0
	for k, hits := range l.windows {
		rule := l.rules[k.action]
		hits = prune(hits, now.Add(-rule.Window))
		if len(hits) == 0 {
			delete(l.windows, k)
			removed++
			continue
		}
		l.windows[k] = hits
	}
	return removed
}

// Run sweeps every interval until ctx is done.
func (l *Limiter) Run(ctx context.Context, interval time.Duration) {
	ticker := l.clock.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			if n := l.Sweep(); n > 0 {
				l.logger.Debug("rate limit sweep", zap.Int("removed", n))
			}
		}
	}
}

// Len returns the number of tracked keys.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}

// prune drops timestamps at or before cutoff. Timestamps are appended in order.
func prune(hits []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(hits) && !hits[i].After(cutoff) {
		i++
	}
	if i == 0 {
		return hits
	}
	return append(hits[:0:0], hits[i:]...)
}
