package queue

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-stage/backend/internal/models"
)

// listRedis implements the list commands the queue uses.
type listRedis struct {
	redis.Cmdable
	lists map[string][]string
}

func newListRedis() *listRedis {
	return &listRedis{lists: make(map[string][]string)}
}

func (l *listRedis) RPush(_ context.Context, key string, values ...interface{}) *redis.IntCmd {
	for _, v := range values {
		switch b := v.(type) {
		case []byte:
			l.lists[key] = append(l.lists[key], string(b))
		default:
			l.lists[key] = append(l.lists[key], fmt.Sprint(b))
		}
	}
	return redis.NewIntResult(int64(len(l.lists[key])), nil)
}

func (l *listRedis) BLPop(_ context.Context, _ time.Duration, keys ...string) *redis.StringSliceCmd {
	for _, k := range keys {
		if items := l.lists[k]; len(items) > 0 {
			l.lists[k] = items[1:]
			return redis.NewStringSliceResult([]string{k, items[0]}, nil)
		}
	}
	return redis.NewStringSliceResult(nil, redis.Nil)
}

func TestArchiveRoundTripAndRetry(t *testing.T) {
	rdb := newListRedis()
	q := NewQueue(rdb, nil)
	ctx := context.Background()

	archive := models.PollArchive{
		EventID:    "keynote",
		PollID:     "p1",
		Question:   "Best talk?",
		Options:    []models.PollOption{{ID: "o1", Text: "Opening"}},
		VoteCounts: map[string]int{"o1": 3},
		TotalVotes: 3,
		ClosedAt:   time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, q.EnqueuePollArchive(ctx, archive))

	job, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.NotNil(t, job)
	got, err := DecodePollArchive(job)
	require.NoError(t, err)
	assert.Equal(t, archive, got)

	empty, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Nil(t, empty)

	for i := 1; i < MaxRetries; i++ {
		require.NoError(t, q.Retry(ctx, job))
		assert.Len(t, rdb.lists[QueueArchives], 1)
		job, err = q.Dequeue(ctx)
		require.NoError(t, err)
		assert.Equal(t, i, job.Attempt)
	}
	require.NoError(t, q.Retry(ctx, job))
	assert.Empty(t, rdb.lists[QueueArchives])
	assert.Len(t, rdb.lists[QueueDLQ], 1)
}

func TestDequeueSkipsGarbage(t *testing.T) {
	rdb := newListRedis()
	rdb.lists[QueueArchives] = []string{"not json"}
	job, err := NewQueue(rdb, nil).Dequeue(context.Background())
	require.NoError(t, err)
	assert.Nil(t, job)

	_, err = DecodePollArchive(&Job{Type: "email"})
	assert.Error(t, err)
}
