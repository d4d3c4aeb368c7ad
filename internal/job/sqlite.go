package job

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Compile-time check that SQLiteRepository implements Repository.
var _ Repository = (*SQLiteRepository)(nil)

// SQLiteRepository persists jobs in a SQLite database so job history
// survives process restarts.
type SQLiteRepository struct {
	db *sql.DB
}

const jobsSchema = `
CREATE TABLE IF NOT EXISTS jobs (
	id TEXT PRIMARY KEY,
	input_path TEXT NOT NULL,
	operation TEXT NOT NULL,
	angle INTEGER NOT NULL DEFAULT 0,
	aspect_ratio TEXT NOT NULL DEFAULT '',
	anchor TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	output_path TEXT NOT NULL DEFAULT '',
	video_url TEXT NOT NULL DEFAULT '',
	error_code TEXT NOT NULL DEFAULT '',
	error TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL,
	started_at INTEGER NOT NULL DEFAULT 0,
	completed_at INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_jobs_created_at ON jobs(created_at);
`

// OpenSQLiteRepository opens or creates the job database at dbPath.
func OpenSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	if _, err := db.Exec(jobsSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init jobs schema: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

// Close releases the underlying database handle.
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

// Save inserts or updates a job row.
func (r *SQLiteRepository) Save(ctx context.Context, j *Job) error {
	c := j.Clone()
	_, err := r.db.ExecContext(ctx, `
INSERT INTO jobs (
	id, input_path, operation, angle, aspect_ratio, anchor,
	status, output_path, video_url, error_code, error,
	created_at, updated_at, started_at, completed_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	status = excluded.status,
	output_path = excluded.output_path,
	video_url = excluded.video_url,
	error_code = excluded.error_code,
	error = excluded.error,
	updated_at = excluded.updated_at,
	started_at = excluded.started_at,
	completed_at = excluded.completed_at`,
		c.ID, c.InputPath, string(c.Operation), c.Angle, c.AspectRatio, c.Anchor,
		string(c.Status), c.OutputPath, c.VideoURL, c.ErrorCode, c.Error,
		unixOrZero(c.CreatedAt), unixOrZero(c.UpdatedAt),
		unixOrZero(c.StartedAt), unixOrZero(c.CompletedAt))
	if err != nil {
		return fmt.Errorf("save job %s: %w", c.ID, err)
	}
	return nil
}

const jobColumns = `id, input_path, operation, angle, aspect_ratio, anchor,
	status, output_path, video_url, error_code, error,
	created_at, updated_at, started_at, completed_at`

// FindByID retrieves a job by its ID.
func (r *SQLiteRepository) FindByID(ctx context.Context, id string) (*Job, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+jobColumns+" FROM jobs WHERE id = ?", id)
	j, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find job %s: %w", id, err)
	}
	return j, nil
}

// List returns all jobs, newest first.
func (r *SQLiteRepository) List(ctx context.Context) ([]*Job, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+jobColumns+" FROM jobs ORDER BY created_at DESC, id")
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var result []*Job
	for rows.Next() {
		j, scanErr := scanJob(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan job row: %w", scanErr)
		}
		result = append(result, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate job rows: %w", err)
	}
	return result, nil
}

// Delete removes a job row.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM jobs WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete job %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete job %s: %w", id, err)
	}
	if affected == 0 {
		return ErrJobNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*Job, error) {
	var (
		j         Job
		operation string
		status    string
		created   int64
		updated   int64
		started   int64
		completed int64
	)
	err := row.Scan(
		&j.ID, &j.InputPath, &operation, &j.Angle, &j.AspectRatio, &j.Anchor,
		&status, &j.OutputPath, &j.VideoURL, &j.ErrorCode, &j.Error,
		&created, &updated, &started, &completed)
	if err != nil {
		return nil, err
	}
	j.Operation = Operation(operation)
	j.Status = Status(status)
	j.CreatedAt = timeOrZero(created)
	j.UpdatedAt = timeOrZero(updated)
	j.StartedAt = timeOrZero(started)
	j.CompletedAt = timeOrZero(completed)
	return &j, nil
}

func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func timeOrZero(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}
