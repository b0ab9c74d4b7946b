package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"trimfit/internal/domain"
)

var _ domain.UserRepository = (*DB)(nil)

const userColumns = "id, email, password_hash, first_name, last_name, created_at"

func scanUser(row *sql.Row) (*domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return &u, nil
}

// GetByEmail retrieves a user by email, ignoring case.
func (d *DB) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return scanUser(d.sql.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE lower(email) = lower($1)",
		domain.NormalizeEmail(email),
	))
}

// GetByID retrieves a user by ID.
func (d *DB) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return scanUser(d.sql.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id = $1",
		id,
	))
}

// Create inserts a new user. A duplicate email yields domain.ErrConflict.
func (d *DB) Create(ctx context.Context, u *domain.User) (*domain.User, error) {
	out := *u
	out.Email = domain.NormalizeEmail(u.Email)
	err := d.sql.QueryRowContext(ctx,
		"INSERT INTO users (id, email, password_hash, first_name, last_name) VALUES ($1, $2, $3, $4, $5) RETURNING created_at",
		out.ID, out.Email, out.PasswordHash, out.FirstName, out.LastName,
	).Scan(&out.CreatedAt)
	if isUniqueViolation(err) {
		return nil, domain.ErrConflict
	}
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return &out, nil
}
