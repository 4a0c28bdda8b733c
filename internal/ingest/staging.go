package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
)

// StagingColumns is the column list of the staging table, in copy order.
var StagingColumns = []string{
	"run_id", "source_file", "id", "room_id_raw", "noted_date_raw", "temp_raw", "location_raw",
}

// canonicalColumns are the per-row columns of StagingColumns.
var canonicalColumns = StagingColumns[2:]

// headerAliases maps normalised source header names to staging columns.
var headerAliases = map[string]string{
	"id":          "id",
	"room_id":     "room_id_raw",
	"room_id/id":  "room_id_raw",
	"room_id_id":  "room_id_raw",
	"noted_date":  "noted_date_raw",
	"date":        "noted_date_raw",
	"temp":        "temp_raw",
	"temperature": "temp_raw",
	"out/in":      "location_raw",
	"in/out":      "location_raw",
	"location":    "location_raw",
}

// NormalizeHeader folds a source header for alias lookup: BOM removed,
// trimmed, lowercased, inner spaces replaced with underscores.
func NormalizeHeader(name string) string {
	name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
	return strings.ReplaceAll(strings.ToLower(name), " ", "_")
}

// MapHeaders returns, for each canonical staging column, the index of the
// first source column that maps to it.
func MapHeaders(header []string) ([]int, error) {
	positions := make(map[string]int, len(canonicalColumns))
	for i, h := range header {
		col, ok := headerAliases[NormalizeHeader(h)]
		if !ok {
			continue
		}
		if _, seen := positions[col]; !seen {
			positions[col] = i
		}
	}

	var missing []string
	index := make([]int, len(canonicalColumns))
	for i, col := range canonicalColumns {
		pos, ok := positions[col]
		if !ok {
			missing = append(missing, col)
			continue
		}
		index[i] = pos
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, &MissingColumnsError{Columns: missing}
	}
	return index, nil
}

// SanitizeCell removes NUL bytes, repairs invalid UTF-8 and trims whitespace.
func SanitizeCell(v string) string {
	v = strings.ReplaceAll(v, "\x00", "")
	v = strings.ToValidUTF8(v, "\uFFFD")
	return strings.TrimSpace(v)
}

// StagingSource streams CSV rows as staging tuples. It satisfies
// pgx.CopyFromSource so rows go straight into COPY without buffering the file.
type StagingSource struct {
	reader     *csv.Reader
	runID      string
	sourceFile string
	index      []int

	values []any
	rows   int64
	err    error
}

// NewStagingSource reads the header from r and prepares to stream the rows
// that follow. It fails with *MissingColumnsError when the header cannot
// supply every staging column.
func NewStagingSource(runID, sourceFile string, r io.Reader) (*StagingSource, error) {
	cr := newCSVReader(r)

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrHeaderMissing
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	index, err := MapHeaders(header)
	if err != nil {
		return nil, err
	}

	cr.ReuseRecord = true
	return &StagingSource{
		reader:     cr,
		runID:      runID,
		sourceFile: sourceFile,
		index:      index,
	}, nil
}

// Next advances to the next data row.
func (s *StagingSource) Next() bool {
	if s.err != nil {
		return false
	}

	record, err := s.reader.Read()
	if errors.Is(err, io.EOF) {
		return false
	}
	if err != nil {
		s.err = err
		return false
	}

	values := make([]any, 0, len(StagingColumns))
	values = append(values, s.runID, s.sourceFile)
	for _, pos := range s.index {
		cell := ""
		if pos < len(record) {
			cell = record[pos]
		}
		values = append(values, SanitizeCell(cell))
	}
	s.values = values
	s.rows++
	return true
}

// Values returns the current row.
func (s *StagingSource) Values() ([]any, error) {
	return s.values, nil
}

// Err returns the first read error, if any.
func (s *StagingSource) Err() error {
	return s.err
}

// Rows reports how many data rows have been produced so far.
func (s *StagingSource) Rows() int64 {
	return s.rows
}
