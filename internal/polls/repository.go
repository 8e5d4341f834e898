package polls

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aura-stage/backend/internal/models"
)

// Repository persists the final tallies of closed polls.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a poll results repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// SaveArchive upserts one closed poll. A poll closed again after a reset overwrites the
// earlier row.
func (r *Repository) SaveArchive(ctx context.Context, a models.PollArchive) error {
	options, err := json.Marshal(a.Options)
	if err != nil {
		return fmt.Errorf("marshal options: %w", err)
	}
	counts, err := json.Marshal(a.VoteCounts)
	if err != nil {
		return fmt.Errorf("marshal vote counts: %w", err)
	}
	const query = `INSERT INTO poll_results (event_id, poll_id, question, options, vote_counts, total_votes, closed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (event_id, poll_id) DO UPDATE SET
			question = EXCLUDED.question,
			options = EXCLUDED.options,
			vote_counts = EXCLUDED.vote_counts,
			total_votes = EXCLUDED.total_votes,
			closed_at = EXCLUDED.closed_at`
	_, err = r.pool.Exec(ctx, query, a.EventID, a.PollID, a.Question, options, counts, a.TotalVotes, a.ClosedAt)
	return err
}

// ListByEvent returns archived results for an event, newest first.
func (r *Repository) ListByEvent(ctx context.Context, eventID string) ([]models.PollArchive, error) {
	const query = `SELECT event_id, poll_id, question, options, vote_counts, total_votes, closed_at
		FROM poll_results WHERE event_id = $1 ORDER BY closed_at DESC`
	rows, err := r.pool.Query(ctx, query, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.PollArchive
	for rows.Next() {
		var a models.PollArchive
		var options, counts []byte
		if err := rows.Scan(&a.EventID, &a.PollID, &a.Question, &options, &counts, &a.TotalVotes, &a.ClosedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(options, &a.Options); err != nil {
			return nil, fmt.Errorf("decode options: %w", err)
		}
		if err := json.Unmarshal(counts, &a.VoteCounts); err != nil {
			return nil, fmt.Errorf("decode vote counts: %w", err)
		}
		list = append(list, a)
	}
	return list, rows.Err()
}

// SetExportURL records where the JSON export of a poll landed.
func (r *Repository) SetExportURL(ctx context.Context, eventID, pollID, url string) error {
	const query = `UPDATE poll_results SET export_url = $3 WHERE event_id = $1 AND poll_id = $2`
	_, err := r.pool.Exec(ctx, query, eventID, pollID, url)
	return err
}
