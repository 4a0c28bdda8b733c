package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// ErrNotAFile is returned when a path does not reference a regular file.
var ErrNotAFile = errors.New("not a regular file")

// ErrHeaderMissing is returned when a CSV has no header row at all.
var ErrHeaderMissing = errors.New("csv header row is missing")

// IOError annotates a file system failure with the operation and path.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// HeaderMismatchError describes how a header row differs from ExpectedHeader.
type HeaderMismatchError struct {
	Expected []string
	Actual   []string
	Missing  []string
	Extra    []string

	// OrderOnly is set when Actual holds exactly the expected names in another order.
	OrderOnly bool
}

func (e *HeaderMismatchError) Error() string {
	details := []string{
		fmt.Sprintf("expected=%s", quoteList(e.Expected)),
		fmt.Sprintf("got=%s", quoteList(e.Actual)),
	}
	if len(e.Missing) > 0 {
		details = append(details, fmt.Sprintf("missing=%s", quoteList(e.Missing)))
	}
	if len(e.Extra) > 0 {
		details = append(details, fmt.Sprintf("extra=%s", quoteList(e.Extra)))
	}
	if e.OrderOnly {
		details = append(details, "order_mismatch=true")
	}
	return "csv header mismatch: " + strings.Join(details, "; ")
}

// MissingColumnsError is returned by the staging mapper when the source
// headers cannot supply every canonical staging column.
type MissingColumnsError struct {
	Columns []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("csv format error: missing required headers mapped to [%s]", strings.Join(e.Columns, ", "))
}

// StagingError wraps any failure of the bulk load into staging.
type StagingError struct {
	Table string
	Err   error
}

func (e *StagingError) Error() string {
	return fmt.Sprintf("copy into %s: %v", e.Table, e.Err)
}

func (e *StagingError) Unwrap() error { return e.Err }

// TransformError wraps any failure of the staging-to-final transform.
type TransformError struct {
	Function string
	Err      error
}

func (e *TransformError) Error() string {
	return fmt.Sprintf("transform %s: %v", e.Function, e.Err)
}

func (e *TransformError) Unwrap() error { return e.Err }

// RelocationError wraps a failed move of a processed file.
type RelocationError struct {
	Src    string
	DstDir string
	Err    error
}

func (e *RelocationError) Error() string {
	return fmt.Sprintf("move %s to %s: %v", e.Src, e.DstDir, e.Err)
}

func (e *RelocationError) Unwrap() error { return e.Err }

// ProcessingError is the catch-all for failures outside the other kinds,
// such as ledger writes.
type ProcessingError struct {
	Stage string
	Err   error
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *ProcessingError) Unwrap() error { return e.Err }

// Reason is the short failure tag written to the ledger and the failure log.
type Reason string

const (
	ReasonFileIO       Reason = "file_io_error"
	ReasonDuplicateID  Reason = "duplicate_id_conflict"
	ReasonStagingCopy  Reason = "staging_copy_error"
	ReasonCSVFormat    Reason = "csv_format_error"
	ReasonDatabase     Reason = "database_error"
	ReasonProcessing   Reason = "processing_error"
	reasonPlaceholder         = "-"
)

// Postgres error codes that mean the same id arrived twice.
const (
	pgUniqueViolation      = "23505"
	pgCardinalityViolation = "21000" // ON CONFLICT DO UPDATE touching a row twice
)

// Classify maps an error to its failure tag. It is advisory: the tag labels
// the ledger message and failure log but never drives control flow.
//
// The checks run from most to least specific, so a staging failure caused by
// a malformed CSV is reported as csv_format_error.
func Classify(err error) Reason {
	if err == nil {
		return ""
	}

	var (
		ioErr       *IOError
		relocErr    *RelocationError
		pgErr       *pgconn.PgError
		connErr     *pgconn.ConnectError
		mismatchErr *HeaderMismatchError
		missingErr  *MissingColumnsError
		parseErr    *csv.ParseError
		stagingErr  *StagingError
	)

	switch {
	case errors.Is(err, ErrNotAFile), errors.As(err, &ioErr), errors.As(err, &relocErr):
		return ReasonFileIO
	case errors.As(err, &pgErr) && (pgErr.Code == pgUniqueViolation || pgErr.Code == pgCardinalityViolation):
		return ReasonDuplicateID
	case errors.Is(err, ErrHeaderMissing), errors.As(err, &mismatchErr),
		errors.As(err, &missingErr), errors.As(err, &parseErr):
		return ReasonCSVFormat
	case errors.As(err, &stagingErr):
		return ReasonStagingCopy
	case errors.As(err, &pgErr), errors.As(err, &connErr):
		return ReasonDatabase
	default:
		return ReasonProcessing
	}
}

func quoteList(items []string) string {
	quoted := make([]string, len(items))
	for i, s := range items {
		quoted[i] = fmt.Sprintf("%q", s)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}
