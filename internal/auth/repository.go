package auth

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNoPassword means no A/V password is stored for the event.
var ErrNoPassword = errors.New("no avtech password")

// Repository stores per-event A/V technician password hashes.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an auth repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// AVTechPasswordHash returns the bcrypt hash for an event, or ErrNoPassword.
func (r *Repository) AVTechPasswordHash(ctx context.Context, eventID string) (string, error) {
	const q = `SELECT password_hash FROM event_access WHERE event_id = $1`
	var hash string
	err := r.pool.QueryRow(ctx, q, eventID).Scan(&hash)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNoPassword
	}
	if err != nil {
		return "", err
	}
	return hash, nil
}

// SetAVTechPassword stores or replaces the hash for an event.
func (r *Repository) SetAVTechPassword(ctx context.Context, eventID, hash, updatedBy string) error {
	const q = `INSERT INTO event_access (event_id, password_hash, updated_by, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (event_id) DO UPDATE SET
			password_hash = EXCLUDED.password_hash,
			updated_by = EXCLUDED.updated_by,
			updated_at = NOW()`
	_, err := r.pool.Exec(ctx, q, eventID, hash, updatedBy)
	return err
}
