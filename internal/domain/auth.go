// Package domain contains the core business entities and interfaces.
package domain

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned by repositories when no record matches.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned by repositories when a unique constraint is violated.
	ErrConflict = errors.New("conflict")
)

// User represents a registered account.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	CreatedAt    time.Time
}

// DisplayName returns the best human readable name for the user.
func (u *User) DisplayName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Email
	}
	return name
}

// NormalizeEmail lower-cases and trims an email so lookups are case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// UserRepository defines the port for user persistence operations.
//
// GetByEmail returns ErrNotFound when no user exists; Create returns
// ErrConflict when the email is already taken.
type UserRepository interface {
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByID(ctx context.Context, id string) (*User, error)
	Create(ctx context.Context, u *User) (*User, error)
}
