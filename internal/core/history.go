package core

// history.go records pipeline runs in PostgreSQL.
//
// History is optional. The service calls it after every import, run and
// sync submission; a failed write is logged and never fails the run it
// describes.

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/JonMunkholm/catalogsync/internal/diag"
)

// Run kinds.
const (
	KindImport = "import"
	KindRun    = "run"
	KindSync   = "sync"
)

// Run statuses.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
	StatusDryRun = "dry-run"
)

// DefaultRecentRuns bounds Recent when no limit is given.
const DefaultRecentRuns = 50

// ErrSyncDisabled is returned by sync operations when no bucket is configured.
var ErrSyncDisabled = errors.New("sync is not configured")

// ErrSyncRunning is returned when a sync is requested while one is running.
var ErrSyncRunning = errors.New("sync already running")

// DBTX is the subset of pgx used by History. *pgxpool.Pool, *pgx.Conn and
// pgx.Tx all satisfy it.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// RunRecord is one row of run history.
type RunRecord struct {
	ID         uuid.UUID `json:"id"`
	Kind       string    `json:"kind"`
	Source     string    `json:"source"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
	Products   int       `json:"products"`
	Uploaded   int       `json:"uploaded"`
	Cached     int       `json:"cached"`
	Warnings   int       `json:"warnings"`
	Errors     int       `json:"errors"`
	Status     string    `json:"status"`
	Message    string    `json:"message,omitempty"`
}

func (r *RunRecord) countReport(report *diag.Report) {
	if report == nil {
		return
	}
	r.Warnings = len(report.Warnings())
	r.Errors = len(report.Errors())
}

// History stores run records.
type History struct {
	db DBTX
}

// NewHistory returns a History backed by db.
func NewHistory(db DBTX) *History {
	return &History{db: db}
}

const createRunsTable = `CREATE TABLE IF NOT EXISTS catalog_runs (
	id          UUID PRIMARY KEY,
	kind        TEXT NOT NULL,
	source      TEXT NOT NULL,
	started_at  TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ NOT NULL,
	products    INTEGER NOT NULL DEFAULT 0,
	uploaded    INTEGER NOT NULL DEFAULT 0,
	cached      INTEGER NOT NULL DEFAULT 0,
	warnings    INTEGER NOT NULL DEFAULT 0,
	errors      INTEGER NOT NULL DEFAULT 0,
	status      TEXT NOT NULL,
	message     TEXT NOT NULL DEFAULT ''
)`

const insertRun = `INSERT INTO catalog_runs
	(id, kind, source, started_at, finished_at, products, uploaded, cached, warnings, errors, status, message)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

const listRecentRuns = `SELECT id, kind, source, started_at, finished_at, products, uploaded, cached, warnings, errors, status, message
FROM catalog_runs
ORDER BY started_at DESC
LIMIT $1`

// Migrate creates the runs table if it does not exist.
func (h *History) Migrate(ctx context.Context) error {
	if _, err := h.db.Exec(ctx, createRunsTable); err != nil {
		return fmt.Errorf("create catalog_runs: %w", err)
	}
	return nil
}

// Record inserts r.
func (h *History) Record(ctx context.Context, r RunRecord) error {
	_, err := h.db.Exec(ctx, insertRun,
		r.ID, r.Kind, r.Source, r.StartedAt, r.FinishedAt,
		r.Products, r.Uploaded, r.Cached, r.Warnings, r.Errors,
		r.Status, r.Message,
	)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", r.ID, err)
	}
	return nil
}

// Recent returns up to limit records, newest first.
func (h *History) Recent(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = DefaultRecentRuns
	}
	rows, err := h.db.Query(ctx, listRecentRuns, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var r RunRecord
		if err := rows.Scan(
			&r.ID, &r.Kind, &r.Source, &r.StartedAt, &r.FinishedAt,
			&r.Products, &r.Uploaded, &r.Cached, &r.Warnings, &r.Errors,
			&r.Status, &r.Message,
		); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return out, nil
}

// HistoryEnabled reports whether runs are recorded.
func (s *Service) HistoryEnabled() bool { return s.history != nil }

// RecentRuns returns recorded runs, newest first.
func (s *Service) RecentRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if s.history == nil {
		return nil, nil
	}
	return s.history.Recent(ctx, limit)
}

func (s *Service) startRecord(kind, source string) *RunRecord {
	return &RunRecord{
		ID:        uuid.New(),
		Kind:      kind,
		Source:    source,
		StartedAt: s.now().UTC(),
	}
}

func (s *Service) finishRecord(ctx context.Context, r *RunRecord, dryRun bool, runErr error) {
	r.FinishedAt = s.now().UTC()
	switch {
	case runErr != nil:
		r.Status = StatusFailed
		r.Message = diag.MapError(runErr).Code + ": " + runErr.Error()
	case dryRun:
		r.Status = StatusDryRun
	default:
		r.Status = StatusOK
	}
	s.log.Info("run finished",
		"run_id", r.ID.String(),
		"kind", r.Kind,
		"source", r.Source,
		"status", r.Status,
		"products", r.Products,
		"uploaded", r.Uploaded,
		"warnings", r.Warnings,
		"errors", r.Errors,
		"duration_ms", r.FinishedAt.Sub(r.StartedAt).Milliseconds(),
	)
	if s.history == nil {
		return
	}
	// Record even when the run's own context was cancelled.
	if err := s.history.Record(context.WithoutCancel(ctx), *r); err != nil {
		s.log.Error("record run failed", "run_id", r.ID.String(), "error", err)
	}
}
