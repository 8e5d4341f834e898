// Package store holds the in-memory authoritative state for every live event.
//
// Each event has its own mutex. Every inbound mutation and every scheduler step runs
// inside Update, so no transition is ever observed half-applied. Entities never leave
// the store by reference: readers receive copies.
package store

import (
	"fmt"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/aura-stage/backend/internal/apperror"
)

// Store maps eventId to its aggregate. Events are created on first join and live until
// process restart.
type Store struct {
	mu     sync.RWMutex
	events map[string]*Event
	clock  clockwork.Clock
	logger *zap.Logger
}

// New creates an empty store. A nil clock uses the real clock.
func New(clock clockwork.Clock, logger *zap.Logger) *Store {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		events: make(map[string]*Event),
		clock:  clock,
		logger: logger,
	}
}

// Clock returns the store's time source, shared by the state machines.
func (s *Store) Clock() clockwork.Clock {
	return s.clock
}

// Now returns the current time from the store's clock.
func (s *Store) Now() time.Time {
	return s.clock.Now()
}

// Ensure returns the event with id, creating it if needed. Callers validate id first.
func (s *Store) Ensure(id string) *Event {
	s.mu.RLock()
	ev, ok := s.events[id]
	s.mu.RUnlock()
	if ok {
		return ev
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if ev, ok = s.events[id]; ok {
		return ev
	}
	ev = newEvent(id, s.clock.Now())
	s.events[id] = ev
	s.logger.Info("event created", zap.String("event_id", id))
	return ev
}

// Exists reports whether the event has been created.
func (s *Store) Exists(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.events[id]
	return ok
}

// EventIDs returns all event ids in sorted order.
func (s *Store) EventIDs() []string {
	s.mu.RLock()
	ids := make([]string, 0, len(s.events))
	for id := range s.events {
		ids = append(ids, id)
	}
	s.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

// Update runs fn with the event lock held. Unknown events return NOT_FOUND. A panic
// inside fn is logged with its stack and returned as an internal error; the lock is
// always released.
func (s *Store) Update(id string, fn func(ev *Event) error) (err error) {
	s.mu.RLock()
	ev, ok := s.events[id]
	s.mu.RUnlock()
	if !ok {
		return apperror.NotFound("event", id)
	}

	ev.mu.Lock()
	defer ev.mu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("panic in event mutation",
				zap.String("event_id", id),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()),
			)
			err = apperror.Internal("mutation failed: %v", fmt.Sprint(r))
		}
	}()
	return fn(ev)
}

// View runs fn with the event lock held. It is Update for read-only callers.
func (s *Store) View(id string, fn func(ev *Event) error) error {
	return s.Update(id, fn)
}
