package worker

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/aura-stage/backend/internal/models"
	"github.com/aura-stage/backend/pkg/queue"
	"github.com/aura-stage/backend/pkg/storage"
)

// ArchiveStore persists closed-poll results.
type ArchiveStore interface {
	SaveArchive(ctx context.Context, a models.PollArchive) error
	SetExportURL(ctx context.Context, eventID, pollID, url string) error
}

// Exporter writes a JSON document to object storage and returns its URL.
type Exporter interface {
	PutJSON(ctx context.Context, key string, v interface{}) (string, error)
}

// JobQueue is the subset of the Redis queue the processor consumes.
type JobQueue interface {
	Dequeue(ctx context.Context) (*queue.Job, error)
	Retry(ctx context.Context, job *queue.Job) error
}

// ArchiveProcessor processes poll archive jobs: upsert into Postgres, then export to S3
// when an exporter is configured.
type ArchiveProcessor struct {
	store    ArchiveStore
	exporter Exporter
	queue    JobQueue
	backoff  time.Duration
	logger   *zap.Logger
}

// NewArchiveProcessor creates an archive processor. exporter may be nil.
func NewArchiveProcessor(store ArchiveStore, exporter Exporter, q JobQueue, logger *zap.Logger) *ArchiveProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ArchiveProcessor{store: store, exporter: exporter, queue: q, backoff: queue.RetryBackoff, logger: logger}
}

// Process executes one archive job.
func (p *ArchiveProcessor) Process(ctx context.Context, job *queue.Job) error {
	a, err := queue.DecodePollArchive(job)
	if err != nil {
		return err
	}
	if err := p.store.SaveArchive(ctx, a); err != nil {
		return fmt.Errorf("save archive: %w", err)
	}
	if p.exporter == nil {
		p.logger.Info("poll archived", zap.String("event_id", a.EventID), zap.String("poll_id", a.PollID))
		return nil
	}

	key := storage.ResultsKey(a.EventID, a.PollID)
	url, err := p.exporter.PutJSON(ctx, key, a)
	if err != nil {
		return fmt.Errorf("export results: %w", err)
	}
	if err := p.store.SetExportURL(ctx, a.EventID, a.PollID, url); err != nil {
		p.logger.Error("update export url failed", zap.Error(err), zap.String("poll_id", a.PollID))
		return fmt.Errorf("update db: %w", err)
	}
	p.logger.Info("poll archived", zap.String("event_id", a.EventID), zap.String("poll_id", a.PollID), zap.String("s3_key", key))
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *ArchiveProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("archive worker stopping")
			return
		default:
		}

		job, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			p.sleep(ctx)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
			if reErr := p.queue.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			p.sleep(ctx)
		}
	}
}

func (p *ArchiveProcessor) sleep(ctx context.Context) {
	t := time.NewTimer(p.backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
