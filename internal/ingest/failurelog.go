package ingest

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const failureTimeLayout = "2006-01-02T15:04:05Z"

// FailureEntry is one line of the failure log.
type FailureEntry struct {
	At      time.Time
	File    string
	RunID   string // empty when no run was started
	Reason  Reason
	Details string
}

// String renders the entry as a single line.
func (e FailureEntry) String() string {
	runID := e.RunID
	if runID == "" {
		runID = reasonPlaceholder
	}
	reason := string(e.Reason)
	if reason == "" {
		reason = reasonPlaceholder
	}
	details := strings.Join(strings.Fields(strings.ReplaceAll(e.Details, "\r", " ")), " ")
	return fmt.Sprintf("[%s] file=%s run_id=%s reason=%s details=%s",
		e.At.UTC().Format(failureTimeLayout), e.File, runID, reason, details)
}

// FailureLog is a newest-first text file of failed files. Writes are best
// effort: errors are logged and never returned to the pipeline. A nil
// *FailureLog discards entries.
type FailureLog struct {
	path string
	now  func() time.Time

	mu sync.Mutex
}

// NewFailureLog returns a log writing to path.
func NewFailureLog(path string) *FailureLog {
	return &FailureLog{path: path, now: time.Now}
}

// Path returns the log file location.
func (l *FailureLog) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// Append prepends e to the log. A zero At is stamped with the current time.
func (l *FailureLog) Append(e FailureEntry) {
	if l == nil {
		return
	}
	if e.At.IsZero() {
		e.At = l.now()
	}
	if err := l.prepend(e.String()); err != nil {
		slog.Warn("failed to write failure log", "path", l.path, "file", e.File, "error", err)
	}
}

func (l *FailureLog) prepend(line string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	dir := filepath.Dir(l.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	existing, err := os.ReadFile(l.path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".failures-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(line + "\n"); err != nil {
		tmp.Close()
		return err
	}
	if _, err := tmp.Write(existing); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), l.path)
}
