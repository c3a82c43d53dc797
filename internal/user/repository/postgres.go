package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"user-auth-service/internal/user/domain"
)

const userColumns = `id, phone, email, name, role, password_hash, phone_verified, email_verified, disabled, created_at, updated_at`

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a user repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Save inserts the user, or updates the mutable columns if the ID exists.
func (r *PostgresRepository) Save(ctx context.Context, u *domain.User) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			phone = EXCLUDED.phone,
			email = EXCLUDED.email,
			name = EXCLUDED.name,
			role = EXCLUDED.role,
			password_hash = EXCLUDED.password_hash,
			phone_verified = EXCLUDED.phone_verified,
			email_verified = EXCLUDED.email_verified,
			disabled = EXCLUDED.disabled,
			updated_at = EXCLUDED.updated_at`,
		u.ID, u.Phone, u.Email, u.Name, u.Role, u.PasswordHash, u.PhoneVerified, u.EmailVerified, u.Disabled, u.CreatedAt, u.UpdatedAt)
	return wrap(err)
}

// FindByID returns the user, or nil if not found.
func (r *PostgresRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	return scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

// FindByPhone returns the user registered with the phone number, or nil.
func (r *PostgresRepository) FindByPhone(ctx context.Context, phone string) (*domain.User, error) {
	return scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE phone = $1`, phone))
}

// FindByEmail returns the user registered with the email address, or nil.
func (r *PostgresRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`, email))
}

// SetPhoneVerified updates the phone verification flag.
func (r *PostgresRepository) SetPhoneVerified(ctx context.Context, id string, verified bool) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET phone_verified = $2, updated_at = now() WHERE id = $1`, id, verified)
	return wrap(err)
}

// SetEmailVerified updates the email verification flag.
func (r *PostgresRepository) SetEmailVerified(ctx context.Context, id string, verified bool) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET email_verified = $2, updated_at = now() WHERE id = $1`, id, verified)
	return wrap(err)
}

func scanUser(row *sql.Row) (*domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.Phone, &u.Email, &u.Name, &u.Role, &u.PasswordHash, &u.PhoneVerified, &u.EmailVerified, &u.Disabled, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, wrap(err)
	}
	return &u, nil
}

func wrap(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
}
