package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/tempingest/internal/ingest"
)

// Transformer calls the SQL routine that validates staged rows and writes
// them to the final table.
type Transformer struct {
	pool     *pgxpool.Pool
	function string
}

// NewTransformer returns a transformer calling function(run_id, source_file).
func NewTransformer(pool *pgxpool.Pool, function string) *Transformer {
	return &Transformer{pool: pool, function: function}
}

// Transform runs the routine in its own transaction. No result row means
// nothing was staged and yields zero counts.
func (t *Transformer) Transform(ctx context.Context, runID, sourceFile string) (ingest.TransformResult, error) {
	res, err := t.transform(ctx, runID, sourceFile)
	if err != nil {
		return ingest.TransformResult{}, &ingest.TransformError{Function: t.function, Err: err}
	}
	return res, nil
}

func (t *Transformer) transform(ctx context.Context, runID, sourceFile string) (ingest.TransformResult, error) {
	var res ingest.TransformResult

	tx, err := t.pool.Begin(ctx)
	if err != nil {
		return res, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx) // no-op after commit

	query := fmt.Sprintf("SELECT rows_valid, rows_rejected FROM %s($1, $2)",
		pgx.Identifier(strings.Split(t.function, ".")).Sanitize())

	err = tx.QueryRow(ctx, query, runID, sourceFile).Scan(&res.Valid, &res.Rejected)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return ingest.TransformResult{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return ingest.TransformResult{}, fmt.Errorf("commit: %w", err)
	}
	return res, nil
}
