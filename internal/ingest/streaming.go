package ingest

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"io"
	"os"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// skipBOM drops a leading UTF-8 byte order mark, which spreadsheet exports on
// Windows tend to add. Everything after it is passed through untouched.
func skipBOM(r io.Reader) io.Reader {
	br := bufio.NewReaderSize(r, 64*1024)
	if prefix, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(prefix, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}
	return br
}

// newCSVReader builds a reader tolerant of stray quotes and ragged rows.
// Row width is checked by the column mapper, not by encoding/csv.
func newCSVReader(r io.Reader) *csv.Reader {
	cr := csv.NewReader(skipBOM(r))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	return cr
}

// countDataRows returns the number of lines in the file minus the header.
// It is best effort: any read failure yields 0.
func countDataRows(path string) int64 {
	f, err := os.Open(path)
	if err != nil {
		return 0
	}
	defer f.Close()

	var (
		lines int64
		last  byte
		buf   = make([]byte, 64*1024)
	)
	for {
		n, err := f.Read(buf)
		if n > 0 {
			lines += int64(bytes.Count(buf[:n], []byte{'\n'}))
			last = buf[n-1]
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0
		}
	}
	// A final line without a newline still counts.
	if last != 0 && last != '\n' {
		lines++
	}
	if lines <= 1 {
		return 0
	}
	return lines - 1
}
