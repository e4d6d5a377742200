package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/hackgods/clinic-booking/internal/apperr"
	"github.com/hackgods/clinic-booking/internal/db"
)

var ErrUserNotFound = apperr.NotFound("user")

type UserRepository interface {
	GetByEmail(ctx context.Context, email string) (*User, error)
	Upsert(ctx context.Context, u User) error
}

type PgUserRepository struct {
	db db.DBTX
}

func NewPgUserRepository(conn db.DBTX) *PgUserRepository {
	return &PgUserRepository{db: conn}
}

func (r *PgUserRepository) GetByEmail(ctx context.Context, email string) (*User, error) {
	var u User

	err := r.db.QueryRow(ctx, `
		SELECT id, email, name, role, password_hash, is_active, created_at
		FROM users
		WHERE lower(email) = lower($1)
	`, email).Scan(
		&u.ID,
		&u.Email,
		&u.Name,
		&u.Role,
		&u.PasswordHash,
		&u.IsActive,
		&u.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	return &u, nil
}

// Upsert inserts u or refreshes the row with the same email.
func (r *PgUserRepository) Upsert(ctx context.Context, u User) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO users (id, email, password_hash, name, role, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (email) DO UPDATE
		SET password_hash = EXCLUDED.password_hash,
		    name = EXCLUDED.name,
		    role = EXCLUDED.role,
		    is_active = EXCLUDED.is_active,
		    updated_at = now()
	`, u.ID, u.Email, u.PasswordHash, u.Name, u.Role, u.IsActive)
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}
