package cdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/mycok/docsync/jobrun"
)

var (
	schemaQueries = []string{
		`CREATE TABLE IF NOT EXISTS job_runs (
			id UUID PRIMARY KEY,
			launch_key TEXT NOT NULL,
			status TEXT NOT NULL,
			read_count INT NOT NULL DEFAULT 0,
			write_count INT NOT NULL DEFAULT 0,
			skip_count INT NOT NULL DEFAULT 0,
			filter_count INT NOT NULL DEFAULT 0,
			commit_count INT NOT NULL DEFAULT 0,
			rollback_count INT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL,
			started_at TIMESTAMPTZ,
			ended_at TIMESTAMPTZ,
			updated_at TIMESTAMPTZ NOT NULL,
			exit_message TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS job_runs_launch_key_idx ON job_runs (launch_key, created_at DESC)`,
		`CREATE TABLE IF NOT EXISTS job_checkpoints (
			launch_key TEXT PRIMARY KEY,
			next_index INT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
	}

	runColumns = `id, launch_key, status, read_count, write_count, skip_count,
		filter_count, commit_count, rollback_count, created_at, started_at,
		ended_at, updated_at, exit_message`

	insertRunQuery = `INSERT INTO job_runs (` + runColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	updateRunQuery = `
		UPDATE job_runs SET status=$2, read_count=$3, write_count=$4,
			skip_count=$5, filter_count=$6, commit_count=$7, rollback_count=$8,
			started_at=$9, ended_at=$10, updated_at=$11, exit_message=$12
		WHERE id=$1 AND status NOT IN ('COMPLETED', 'FAILED', 'STOPPED')
		`
	runStatusQuery = "SELECT status FROM job_runs WHERE id=$1"

	findRunQuery         = "SELECT " + runColumns + " FROM job_runs WHERE id=$1"
	runsByLaunchKeyQuery = "SELECT " + runColumns + " FROM job_runs WHERE launch_key=$1 ORDER BY created_at DESC"
	recentRunsQuery      = "SELECT " + runColumns + " FROM job_runs ORDER BY created_at DESC LIMIT $1"

	upsertCheckpointQuery = `
		INSERT INTO job_checkpoints (launch_key, next_index, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (launch_key)
		DO UPDATE SET next_index=$2, updated_at=NOW()
		`
	loadCheckpointQuery   = "SELECT next_index FROM job_checkpoints WHERE launch_key=$1"
	deleteCheckpointQuery = "DELETE FROM job_checkpoints WHERE launch_key=$1"
)

// Static and compile-time check to ensure CockroachDBStore implements Store.
var _ jobrun.Store = (*CockroachDBStore)(nil)

// CockroachDBStore persists runs and checkpoints in a CockroachDB (or
// PostgreSQL compatible) database.
type CockroachDBStore struct {
	db *sql.DB
}

// NewCockroachDBStore connects to dsn and creates the run tables if they do
// not exist yet.
func NewCockroachDBStore(dsn string) (*CockroachDBStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err = db.PingContext(ctx); err != nil {
		_ = db.Close()

		return nil, err
	}

	for _, q := range schemaQueries {
		if _, err = db.ExecContext(ctx, q); err != nil {
			_ = db.Close()

			return nil, fmt.Errorf("create schema: %w", err)
		}
	}

	return &CockroachDBStore{db: db}, nil
}

// Close terminates the connection to the database.
func (s *CockroachDBStore) Close() error {
	return s.db.Close()
}

// CreateRun inserts run, assigning it a new ID.
func (s *CockroachDBStore) CreateRun(ctx context.Context, run *jobrun.Run) error {
	if run.LaunchKey == "" {
		return fmt.Errorf("create run: %w", jobrun.ErrMissingLaunchKey)
	}

	for {
		run.ID = uuid.New()

		_, err := s.db.ExecContext(ctx, insertRunQuery,
			run.ID, run.LaunchKey, string(run.Status),
			run.Counters.Read, run.Counters.Write, run.Counters.Skip,
			run.Counters.Filter, run.Counters.Commit, run.Counters.Rollback,
			run.CreatedAt.UTC(), nullTime(run.StartedAt), nullTime(run.EndedAt),
			run.UpdatedAt.UTC(), run.ExitMessage,
		)
		if err == nil {
			return nil
		}

		if !isUniqueViolationError(err) {
			return fmt.Errorf("create run: %w", err)
		}
	}
}

// UpdateRun replaces the stored copy of run unless it is terminal.
func (s *CockroachDBStore) UpdateRun(ctx context.Context, run *jobrun.Run) error {
	res, err := s.db.ExecContext(ctx, updateRunQuery,
		run.ID, string(run.Status),
		run.Counters.Read, run.Counters.Write, run.Counters.Skip,
		run.Counters.Filter, run.Counters.Commit, run.Counters.Rollback,
		nullTime(run.StartedAt), nullTime(run.EndedAt), run.UpdatedAt.UTC(),
		run.ExitMessage,
	)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}

	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("update run: %w", err)
	} else if n == 1 {
		return nil
	}

	// No row changed: tell a missing run apart from a terminal one.
	var status string
	if err = s.db.QueryRowContext(ctx, runStatusQuery, run.ID).Scan(&status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("update run: %w", jobrun.ErrNotFound)
		}

		return fmt.Errorf("update run: %w", err)
	}

	return fmt.Errorf("update run: %w", jobrun.ErrRunTerminated)
}

// FindRun looks up a run by its ID.
func (s *CockroachDBStore) FindRun(ctx context.Context, id uuid.UUID) (*jobrun.Run, error) {
	run, err := scanRun(s.db.QueryRowContext(ctx, findRunQuery, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("find run: %w", jobrun.ErrNotFound)
		}

		return nil, fmt.Errorf("find run: %w", err)
	}

	return run, nil
}

// RunsByLaunchKey returns every run sharing launchKey, newest first.
func (s *CockroachDBStore) RunsByLaunchKey(ctx context.Context, launchKey string) ([]*jobrun.Run, error) {
	runs, err := s.queryRuns(ctx, runsByLaunchKeyQuery, launchKey)
	if err != nil {
		return nil, fmt.Errorf("runs by launch key: %w", err)
	}

	return runs, nil
}

// RecentRuns returns at most limit runs, newest first.
func (s *CockroachDBStore) RecentRuns(ctx context.Context, limit int) ([]*jobrun.Run, error) {
	var lim interface{}
	if limit > 0 {
		lim = limit
	}

	runs, err := s.queryRuns(ctx, recentRunsQuery, lim)
	if err != nil {
		return nil, fmt.Errorf("recent runs: %w", err)
	}

	return runs, nil
}

// SaveCheckpoint records the next cursor index for launchKey.
func (s *CockroachDBStore) SaveCheckpoint(ctx context.Context, launchKey string, nextIndex int) error {
	if _, err := s.db.ExecContext(ctx, upsertCheckpointQuery, launchKey, nextIndex); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}

	return nil
}

// LoadCheckpoint returns the checkpoint for launchKey, if any.
func (s *CockroachDBStore) LoadCheckpoint(ctx context.Context, launchKey string) (int, bool, error) {
	var pos int
	if err := s.db.QueryRowContext(ctx, loadCheckpointQuery, launchKey).Scan(&pos); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}

		return 0, false, fmt.Errorf("load checkpoint: %w", err)
	}

	return pos, true, nil
}

// DeleteCheckpoint removes the checkpoint for launchKey.
func (s *CockroachDBStore) DeleteCheckpoint(ctx context.Context, launchKey string) error {
	if _, err := s.db.ExecContext(ctx, deleteCheckpointQuery, launchKey); err != nil {
		return fmt.Errorf("delete checkpoint: %w", err)
	}

	return nil
}

func (s *CockroachDBStore) queryRuns(ctx context.Context, query string, args ...interface{}) ([]*jobrun.Run, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var runs []*jobrun.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}

		runs = append(runs, run)
	}

	return runs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*jobrun.Run, error) {
	var (
		run                jobrun.Run
		status             string
		startedAt, endedAt sql.NullTime
	)

	err := row.Scan(
		&run.ID, &run.LaunchKey, &status,
		&run.Counters.Read, &run.Counters.Write, &run.Counters.Skip,
		&run.Counters.Filter, &run.Counters.Commit, &run.Counters.Rollback,
		&run.CreatedAt, &startedAt, &endedAt, &run.UpdatedAt, &run.ExitMessage,
	)
	if err != nil {
		return nil, err
	}

	run.Status = jobrun.Status(status)
	run.CreatedAt = run.CreatedAt.UTC()
	run.UpdatedAt = run.UpdatedAt.UTC()
	if startedAt.Valid {
		run.StartedAt = startedAt.Time.UTC()
	}
	if endedAt.Valid {
		run.EndedAt = endedAt.Time.UTC()
	}

	return &run, nil
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}

	return sql.NullTime{Time: t.UTC(), Valid: true}
}

// isUniqueViolationError returns true if err is a unique constraint
// violation error.
func isUniqueViolationError(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}

	return pqErr.Code.Name() == "unique_violation"
}
