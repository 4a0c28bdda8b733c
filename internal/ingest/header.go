package ingest

import (
	"errors"
	"io"
	"os"
	"slices"
	"strings"
)

// ExpectedHeader is the only header row accepted for ingestion, in order.
var ExpectedHeader = []string{"id", "room_id/id", "noted_date", "temp", "out/in"}

// ReadHeader returns the first record of the CSV at path.
func ReadHeader(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &IOError{Op: "read header", Path: path, Err: err}
	}
	defer f.Close()

	record, err := newCSVReader(f).Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrHeaderMissing
	}
	if err != nil {
		return nil, err
	}
	return record, nil
}

// ValidateHeader compares header to ExpectedHeader position by position after
// trimming whitespace and a leading BOM from each name. Case is significant.
func ValidateHeader(header []string) error {
	if len(header) == 0 {
		return ErrHeaderMissing
	}

	actual := make([]string, len(header))
	for i, h := range header {
		actual[i] = sanitizeHeader(h)
	}
	if slices.Equal(actual, ExpectedHeader) {
		return nil
	}

	missing := difference(ExpectedHeader, actual)
	extra := difference(actual, ExpectedHeader)
	return &HeaderMismatchError{
		Expected:  slices.Clone(ExpectedHeader),
		Actual:    actual,
		Missing:   missing,
		Extra:     extra,
		OrderOnly: len(missing) == 0 && len(extra) == 0 && len(actual) == len(ExpectedHeader),
	}
}

func sanitizeHeader(h string) string {
	return strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
}

// difference returns the items of a not present in b, keeping a's order.
func difference(a, b []string) []string {
	var out []string
	for _, item := range a {
		if !slices.Contains(b, item) {
			out = append(out, item)
		}
	}
	return out
}
