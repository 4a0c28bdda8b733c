package store

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/tempingest/internal/ingest"
)

// Stager copies CSV rows into the staging table with COPY FROM STDIN.
type Stager struct {
	pool  *pgxpool.Pool
	table string
}

// NewStager returns a stager writing to table, which may be schema-qualified.
func NewStager(pool *pgxpool.Pool, table string) *Stager {
	return &Stager{pool: pool, table: table}
}

// Load streams the file at path into staging inside one transaction and
// returns the number of rows copied. Either every row lands or none do.
func (s *Stager) Load(ctx context.Context, runID, sourceFile, path string) (int64, error) {
	n, err := s.load(ctx, runID, sourceFile, path)
	if err != nil {
		return 0, &ingest.StagingError{Table: s.table, Err: err}
	}
	return n, nil
}

func (s *Stager) load(ctx context.Context, runID, sourceFile, path string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, &ingest.IOError{Op: "open", Path: path, Err: err}
	}
	defer f.Close()

	src, err := ingest.NewStagingSource(runID, sourceFile, f)
	if err != nil {
		return 0, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx) // no-op after commit

	n, err := tx.CopyFrom(ctx, pgx.Identifier(strings.Split(s.table, ".")), ingest.StagingColumns, src)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return n, nil
}
