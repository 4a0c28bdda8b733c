package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/tempingest/internal/ingest"
)

// ErrRunNotFound is returned when Finalize matches no updatable run.
var ErrRunNotFound = errors.New("run not found or already failed")

// Ledger is the elt_runs table. Every call is a single autocommit statement.
type Ledger struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewLedger returns a ledger backed by pool.
func NewLedger(pool *pgxpool.Pool) *Ledger {
	return &Ledger{pool: pool, now: time.Now}
}

// Start inserts a running record and returns its id.
func (l *Ledger) Start(ctx context.Context, sourceFile, checksum string, rowsInFile int64) (string, error) {
	runID := uuid.NewString()

	_, err := l.pool.Exec(ctx, `
		INSERT INTO elt_runs (run_id, source_file, file_checksum_sha256, started_at, status, rows_in_file)
		VALUES ($1, $2, $3, $4, 'running', $5)`,
		runID, sourceFile, checksum, l.now().UTC(), rowsInFile,
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}
	return runID, nil
}

// Finalize records the terminal status and counts of a run. A failed run is
// never updated again; a successful run may still be downgraded to failed
// when its file cannot be archived.
func (l *Ledger) Finalize(ctx context.Context, runID string, status ingest.RunStatus, counts ingest.Counts, message string) error {
	var msg *string
	if message != "" {
		msg = &message
	}

	tag, err := l.pool.Exec(ctx, `
		UPDATE elt_runs
		   SET ended_at = $2,
		       status = $3,
		       rows_loaded_staging = $4,
		       rows_valid = $5,
		       rows_rejected = $6,
		       message = $7
		 WHERE run_id = $1
		   AND status <> 'failed'`,
		runID, l.now().UTC(), string(status), counts.Staged, counts.Valid, counts.Rejected, msg,
	)
	if err != nil {
		return fmt.Errorf("update run %s: %w", runID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update run %s: %w", runID, ErrRunNotFound)
	}
	return nil
}

// HasSucceeded reports whether any successful run carries checksum.
func (l *Ledger) HasSucceeded(ctx context.Context, checksum string) (bool, error) {
	var exists bool
	err := l.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM elt_runs
			 WHERE file_checksum_sha256 = $1 AND status = 'success'
		)`, checksum).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check checksum: %w", err)
	}
	return exists, nil
}

// Recent returns the latest runs, newest first.
func (l *Ledger) Recent(ctx context.Context, limit int) ([]ingest.Run, error) {
	rows, err := l.pool.Query(ctx, `
		SELECT run_id::text, source_file, file_checksum_sha256, started_at, ended_at, status,
		       rows_in_file, rows_loaded_staging, rows_valid, rows_rejected, message
		  FROM elt_runs
		 ORDER BY started_at DESC
		 LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}

	runs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (ingest.Run, error) {
		var (
			r      ingest.Run
			status string
		)
		err := row.Scan(&r.ID, &r.SourceFile, &r.Checksum, &r.StartedAt, &r.EndedAt, &status,
			&r.RowsInFile, &r.Staged, &r.Valid, &r.Rejected, &r.Message)
		r.Status = ingest.RunStatus(status)
		return r, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan runs: %w", err)
	}
	return runs, nil
}
