package history

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"qwenedit/internal/edit"
)

// Store persists the lifecycle of submitted edit jobs so operators can
// audit what was billed and what happened to it. The schema:
//
//	CREATE TABLE edit_jobs (
//	    job_id      TEXT PRIMARY KEY,
//	    mode        TEXT NOT NULL,
//	    status      TEXT NOT NULL,
//	    error       TEXT NOT NULL DEFAULT '',
//	    duration_ms BIGINT NOT NULL DEFAULT 0,
//	    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
//	    updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
//	);
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a job-history store backed by PostgreSQL.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// JobSubmitted records a freshly created backend job.
func (s *Store) JobSubmitted(ctx context.Context, jobID string, mode edit.Mode) error {
	query := `
INSERT INTO edit_jobs (job_id, mode, status)
VALUES ($1, $2, 'PENDING')
ON CONFLICT (job_id) DO NOTHING;
`
	_, err := s.pool.Exec(ctx, query, jobID, string(mode))
	return err
}

// JobFinished records the terminal state observed for a job. TIMED_OUT is
// recorded as-is: it means the outcome is unknown, not that the backend
// failed.
func (s *Store) JobFinished(ctx context.Context, jobID string, status edit.Status, errMsg string, took time.Duration) error {
	query := `
UPDATE edit_jobs
SET status = $2,
    error = $3,
    duration_ms = $4,
    updated_at = NOW()
WHERE job_id = $1;
`
	_, err := s.pool.Exec(ctx, query, jobID, string(status), errMsg, took.Milliseconds())
	return err
}

// Record is one row of job history.
type Record struct {
	JobID     string
	Mode      string
	Status    string
	Error     string
	Duration  time.Duration
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Recent returns the latest jobs, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `
SELECT job_id, mode, status, error, duration_ms, created_at, updated_at
FROM edit_jobs
ORDER BY created_at DESC
LIMIT $1;
`
	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var records []Record
	for rows.Next() {
		var rec Record
		var durationMS int64
		if err := rows.Scan(&rec.JobID, &rec.Mode, &rec.Status, &rec.Error, &durationMS, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, err
		}
		rec.Duration = time.Duration(durationMS) * time.Millisecond
		records = append(records, rec)
	}
	return records, rows.Err()
}
