package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"user-auth-service/internal/session/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a session repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Save persists the session. The session must have ID set.
func (r *PostgresRepository) Save(ctx context.Context, s *domain.Session) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sessions (id, user_id, refresh_token_hash, network_address, client_agent, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		s.ID, s.UserID, s.RefreshTokenHash, s.NetworkAddress, s.ClientAgent, s.CreatedAt, s.ExpiresAt)
	return wrap(err)
}

// FindByRefreshTokenHash returns the session for the hash, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) FindByRefreshTokenHash(ctx context.Context, hash string) (*domain.Session, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, refresh_token_hash, network_address, client_agent, created_at, expires_at
		FROM sessions WHERE refresh_token_hash = $1`, hash)
	return scanSession(row)
}

// FindByUser returns all sessions for userID, newest first.
func (r *PostgresRepository) FindByUser(ctx context.Context, userID string) ([]*domain.Session, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, refresh_token_hash, network_address, client_agent, created_at, expires_at
		FROM sessions WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, wrap(err)
	}
	defer rows.Close()

	var out []*domain.Session
	for rows.Next() {
		var s domain.Session
		if err := rows.Scan(&s.ID, &s.UserID, &s.RefreshTokenHash, &s.NetworkAddress, &s.ClientAgent, &s.CreatedAt, &s.ExpiresAt); err != nil {
			return nil, wrap(err)
		}
		out = append(out, &s)
	}
	return out, wrap(rows.Err())
}

// Delete removes the session by ID. Reports whether a row was removed, so two
// concurrent rotations of the same session see exactly one true.
func (r *PostgresRepository) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	if err != nil {
		return false, wrap(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, wrap(err)
	}
	return n > 0, nil
}

// DeleteAllForUser removes every session belonging to userID.
func (r *PostgresRepository) DeleteAllForUser(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE user_id = $1`, userID)
	return wrap(err)
}

// DeleteExpired removes sessions whose expiry is at or before now.
func (r *PostgresRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, wrap(err)
	}
	n, err := res.RowsAffected()
	return n, wrap(err)
}

func scanSession(row *sql.Row) (*domain.Session, error) {
	var s domain.Session
	err := row.Scan(&s.ID, &s.UserID, &s.RefreshTokenHash, &s.NetworkAddress, &s.ClientAgent, &s.CreatedAt, &s.ExpiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, wrap(err)
	}
	return &s, nil
}

func wrap(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
}
