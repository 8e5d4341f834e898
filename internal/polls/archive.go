package polls

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/aura-stage/backend/internal/models"
)

const (
	// DefaultPublishBuffer is how many archives may wait for the archiver.
	DefaultPublishBuffer = 256
	enqueueTimeout       = 5 * time.Second
)

// Archiver accepts the final tally of a closed poll for durable storage.
type Archiver interface {
	EnqueuePollArchive(ctx context.Context, a models.PollArchive) error
}

// Publisher hands closed-poll archives to an Archiver from a background loop, so a
// slow archiver never holds up a socket handler or the scheduler sweep. Failures are
// logged and otherwise ignored: no realtime state depends on the archive.
type Publisher struct {
	archiver Archiver
	queue    chan models.PollArchive
	logger   *zap.Logger

	mu      sync.RWMutex
	stopped bool
}

// NewPublisher creates a publisher. A nil archiver disables archiving.
func NewPublisher(archiver Archiver, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{
		archiver: archiver,
		queue:    make(chan models.PollArchive, DefaultPublishBuffer),
		logger:   logger,
	}
}

// Publish queues each archive without blocking. Archives are dropped with a warning
// when the buffer is full or the publisher has stopped.
func (p *Publisher) Publish(archives []models.PollArchive) {
	if p == nil || p.archiver == nil {
		return
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, a := range archives {
		if p.stopped {
			p.drop(a, "publisher stopped")
			continue
		}
		select {
		case p.queue <- a:
		default:
			p.drop(a, "archive queue full")
		}
	}
}

// Run delivers queued archives until ctx is done, then flushes what is left.
func (p *Publisher) Run(ctx context.Context) {
	if p.archiver == nil {
		<-ctx.Done()
		return
	}
	for {
		select {
		case <-ctx.Done():
			p.mu.Lock()
			p.stopped = true
			p.mu.Unlock()
			p.flush()
			return
		case a := <-p.queue:
			p.enqueue(a)
		}
	}
}

func (p *Publisher) flush() {
	for {
		select {
		case a := <-p.queue:
			p.enqueue(a)
		default:
			return
		}
	}
}

func (p *Publisher) enqueue(a models.PollArchive) {
	ctx, cancel := context.WithTimeout(context.Background(), enqueueTimeout)
	defer cancel()
	if err := p.archiver.EnqueuePollArchive(ctx, a); err != nil {
		p.logger.Warn("enqueue poll archive failed",
			zap.String("event_id", a.EventID),
			zap.String("poll_id", a.PollID),
			zap.Error(err),
		)
	}
}

func (p *Publisher) drop(a models.PollArchive, reason string) {
	p.logger.Warn("poll archive dropped",
		zap.String("event_id", a.EventID),
		zap.String("poll_id", a.PollID),
		zap.String("reason", reason),
	)
}
