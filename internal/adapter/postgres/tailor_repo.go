package postgres

import (
	"context"
	"fmt"

	"trimfit/internal/domain"
)

var _ domain.TailorRunRepository = (*DB)(nil)

// AddRun records a tailoring run.
func (d *DB) AddRun(ctx context.Context, run *domain.TailorRun) error {
	_, err := d.sql.ExecContext(ctx,
		`INSERT INTO tailor_runs (id, user_id, file_id, filename, job_title, message, processing_time, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		run.ID, run.UserID, run.FileID, run.Filename, run.JobTitle, run.Message, run.ProcessingTime, run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// ListRecentRuns lists a user's most recent runs, newest first.
func (d *DB) ListRecentRuns(ctx context.Context, userID string, limit int) ([]domain.TailorRun, error) {
	rows, err := d.sql.QueryContext(ctx,
		`SELECT id, user_id, file_id, filename, job_title, message, processing_time, created_at
		 FROM tailor_runs WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []domain.TailorRun
	for rows.Next() {
		var r domain.TailorRun
		if err := rows.Scan(&r.ID, &r.UserID, &r.FileID, &r.Filename, &r.JobTitle, &r.Message, &r.ProcessingTime, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}
