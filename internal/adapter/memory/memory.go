// Package memory implements an in-memory repository for development and testing.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"trimfit/internal/domain"
)

// DB implements an in-memory database storage.
type DB struct {
	mu    sync.Mutex
	users []*domain.User
	runs  []domain.TailorRun
	now   func() time.Time
}

// New creates a new in-memory database.
func New() *DB {
	return &DB{now: time.Now}
}

// Ensure interfaces are met.
var _ domain.UserRepository = (*DB)(nil)
var _ domain.TailorRunRepository = (*DB)(nil)

// --- UserRepository ---

// GetByEmail retrieves a user by email, ignoring case.
func (db *DB) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	email = domain.NormalizeEmail(email)
	for _, u := range db.users {
		if domain.NormalizeEmail(u.Email) == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

// GetByID retrieves a user by ID.
func (db *DB) GetByID(ctx context.Context, id string) (*domain.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, u := range db.users {
		if u.ID == id {
			cp := *u
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

// Create stores a new user. Emails are unique regardless of case.
func (db *DB) Create(ctx context.Context, u *domain.User) (*domain.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	email := domain.NormalizeEmail(u.Email)
	for _, existing := range db.users {
		if existing.ID == u.ID || domain.NormalizeEmail(existing.Email) == email {
			return nil, domain.ErrConflict
		}
	}

	stored := *u
	stored.Email = email
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = db.now().UTC()
	}
	db.users = append(db.users, &stored)

	cp := stored
	return &cp, nil
}

// --- TailorRunRepository ---

// AddRun records a tailoring run.
func (db *DB) AddRun(ctx context.Context, run *domain.TailorRun) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	r := *run
	if r.CreatedAt.IsZero() {
		r.CreatedAt = db.now().UTC()
	}
	db.runs = append(db.runs, r)
	return nil
}

// ListRecentRuns lists a user's most recent runs, newest first.
func (db *DB) ListRecentRuns(ctx context.Context, userID string, limit int) ([]domain.TailorRun, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	result := make([]domain.TailorRun, 0, len(db.runs))
	for _, r := range db.runs {
		if r.UserID == userID {
			result = append(result, r)
		}
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}
