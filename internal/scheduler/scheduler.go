// Package scheduler runs the periodic sweep that ticks timers, auto-closes polls and
// releases queued reactions.
package scheduler

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/aura-stage/backend/internal/models"
	"github.com/aura-stage/backend/internal/polls"
	"github.com/aura-stage/backend/internal/reactions"
	"github.com/aura-stage/backend/internal/rooms"
	"github.com/aura-stage/backend/internal/store"
	"github.com/aura-stage/backend/internal/timers"
)

// Scheduler sweeps every event on a fixed period. Each event is processed under its own
// lock, the same one inbound mutations take.
type Scheduler struct {
	store     *store.Store
	router    *rooms.Router
	publisher *polls.Publisher
	clock     clockwork.Clock
	interval  time.Duration
	logger    *zap.Logger
}

// New creates a scheduler. The store's clock drives both the ticker and elapsed time.
func New(st *store.Store, router *rooms.Router, publisher *polls.Publisher, interval time.Duration, logger *zap.Logger) *Scheduler {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		store:     st,
		router:    router,
		publisher: publisher,
		clock:     st.Clock(),
		interval:  interval,
		logger:    logger,
	}
}

// Run sweeps every interval until ctx is done.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()
	s.logger.Info("scheduler started", zap.Duration("interval", s.interval))
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return
		case <-ticker.Chan():
			s.Sweep()
		}
	}
}

// Sweep processes every event once.
func (s *Scheduler) Sweep() {
	for _, id := range s.store.EventIDs() {
		var archives []models.PollArchive
		err := s.store.Update(id, func(ev *store.Event) error {
			archives = s.sweepEvent(ev)
			return nil
		})
		if err != nil {
			s.logger.Error("scheduler sweep failed", zap.String("event_id", id), zap.Error(err))
			continue
		}
		s.publisher.Publish(archives)
	}
}

func (s *Scheduler) sweepEvent(ev *store.Event) []models.PollArchive {
	now := s.store.Now()

	step := timers.Advance(ev, now)
	for _, tick := range step.Ticks {
		s.router.TimerTick(ev, tick)
	}
	if len(step.Finished) > 0 {
		shown := false
		for _, t := range step.Finished {
			shown = shown || t.ShowOnDisplay
			s.logger.Debug("timer finished", zap.String("event_id", ev.ID), zap.String("timer_id", t.ID))
		}
		s.router.TimersChanged(ev, now, shown)
	}

	var archives []models.PollArchive
	for _, p := range polls.CloseExpired(ev, now) {
		s.logger.Info("poll auto-closed", zap.String("event_id", ev.ID), zap.String("poll_id", p.ID))
		archives = append(archives, p.Archive(ev.ID, now))
		s.router.PollClosed(ev, p)
	}

	if batch := reactions.Drain(ev); len(batch) > 0 {
		s.router.Reactions(ev, batch)
		s.router.StatsChanged(ev)
	}
	return archives
}
