// Package scheduler runs directory passes for serve mode, either on a cron
// schedule or on demand, never more than one at a time.
package scheduler

// runner.go guards directory passes with a single-slot semaphore. A cron tick
// and an HTTP-triggered scan share one Runner, so whichever arrives second
// gets ErrPassInProgress instead of racing the first over the same files.

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/JonMunkholm/tempingest/internal/ingest"
)

// ErrPassInProgress is returned by TryRun while another pass holds the slot.
var ErrPassInProgress = errors.New("a directory pass is already running")

// DirectoryProcessor processes one landing directory.
type DirectoryProcessor interface {
	ProcessDirectory(ctx context.Context, dir string) (ingest.Summary, error)
}

// PassObserver is told about every finished pass.
type PassObserver interface {
	ObservePass(d time.Duration, finished time.Time)
}

// PassResult is the record of the most recent pass.
type PassResult struct {
	StartedAt  time.Time
	FinishedAt time.Time
	Summary    ingest.Summary
	Err        error
}

// Runner serialises passes over one directory.
type Runner struct {
	processor DirectoryProcessor
	dir       string
	observer  PassObserver

	slot chan struct{}

	mu   sync.RWMutex
	last *PassResult
}

// NewRunner returns a runner for dir. observer may be nil.
func NewRunner(processor DirectoryProcessor, dir string, observer PassObserver) *Runner {
	return &Runner{
		processor: processor,
		dir:       dir,
		observer:  observer,
		slot:      make(chan struct{}, 1),
	}
}

// Dir returns the directory the runner scans.
func (r *Runner) Dir() string { return r.dir }

// Run waits for the slot and then runs a pass.
func (r *Runner) Run(ctx context.Context) (ingest.Summary, error) {
	select {
	case r.slot <- struct{}{}:
	case <-ctx.Done():
		return ingest.Summary{}, ctx.Err()
	}
	defer r.release()
	return r.pass(ctx)
}

// TryRun runs a pass only if none is in progress.
func (r *Runner) TryRun(ctx context.Context) (ingest.Summary, error) {
	select {
	case r.slot <- struct{}{}:
	default:
		return ingest.Summary{}, ErrPassInProgress
	}
	defer r.release()
	return r.pass(ctx)
}

// Busy reports whether a pass is running.
func (r *Runner) Busy() bool {
	return len(r.slot) > 0
}

// Last returns the most recent finished pass.
func (r *Runner) Last() (PassResult, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.last == nil {
		return PassResult{}, false
	}
	return *r.last, true
}

func (r *Runner) release() {
	<-r.slot
}

func (r *Runner) pass(ctx context.Context) (ingest.Summary, error) {
	started := time.Now()
	summary, err := r.processor.ProcessDirectory(ctx, r.dir)
	finished := time.Now()

	r.mu.Lock()
	r.last = &PassResult{StartedAt: started, FinishedAt: finished, Summary: summary, Err: err}
	r.mu.Unlock()

	if r.observer != nil {
		r.observer.ObservePass(finished.Sub(started), finished)
	}
	return summary, err
}
