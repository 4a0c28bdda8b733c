package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/tempingest/internal/ingest"
)

// blockingProcessor holds each pass open until release is closed.
type blockingProcessor struct {
	calls   atomic.Int32
	started chan struct{}
	release chan struct{}
	err     error
}

func newBlockingProcessor() *blockingProcessor {
	return &blockingProcessor{
		started: make(chan struct{}, 8),
		release: make(chan struct{}),
	}
}

func (p *blockingProcessor) ProcessDirectory(ctx context.Context, dir string) (ingest.Summary, error) {
	p.calls.Add(1)
	p.started <- struct{}{}
	select {
	case <-p.release:
	case <-ctx.Done():
	}
	return ingest.Summary{Outcomes: []ingest.Outcome{{File: "a.csv", State: ingest.StateSuccess}}}, p.err
}

type passCounter struct{ n atomic.Int32 }

func (c *passCounter) ObservePass(time.Duration, time.Time) { c.n.Add(1) }

func TestRunner_TryRunIsExclusive(t *testing.T) {
	proc := newBlockingProcessor()
	obs := &passCounter{}
	r := NewRunner(proc, "landing", obs)

	done := make(chan error, 1)
	go func() {
		_, err := r.TryRun(context.Background())
		done <- err
	}()
	<-proc.started

	assert.True(t, r.Busy())
	_, err := r.TryRun(context.Background())
	assert.ErrorIs(t, err, ErrPassInProgress)

	close(proc.release)
	require.NoError(t, <-done)
	assert.False(t, r.Busy())
	assert.Equal(t, int32(1), proc.calls.Load())
	assert.Equal(t, int32(1), obs.n.Load())

	last, ok := r.Last()
	require.True(t, ok)
	assert.Len(t, last.Summary.Outcomes, 1)
	assert.False(t, last.FinishedAt.Before(last.StartedAt))
}

func TestRunner_RunWaitsForSlot(t *testing.T) {
	proc := newBlockingProcessor()
	r := NewRunner(proc, "landing", nil)

	go func() { _, _ = r.TryRun(context.Background()) }()
	<-proc.started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := r.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(proc.release)
	_, err = r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), proc.calls.Load())
}

func TestRunner_LastRecordsError(t *testing.T) {
	proc := newBlockingProcessor()
	proc.err = errors.New("landing directory missing")
	close(proc.release)
	r := NewRunner(proc, "landing", nil)

	_, ok := r.Last()
	assert.False(t, ok)

	_, err := r.Run(context.Background())
	assert.Error(t, err)

	last, ok := r.Last()
	require.True(t, ok)
	assert.EqualError(t, last.Err, "landing directory missing")
}

func TestScheduler_RunsOnSchedule(t *testing.T) {
	proc := newBlockingProcessor()
	close(proc.release)
	r := NewRunner(proc, "landing", nil)
	s := New(r, "@every 1s", slog.New(slog.NewTextHandler(io.Discard, nil)))

	require.NoError(t, s.Start(context.Background()))
	assert.Eventually(t, func() bool { return proc.calls.Load() > 0 }, 5*time.Second, 50*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.Stop(ctx)
}

func TestScheduler_InvalidSpec(t *testing.T) {
	r := NewRunner(newBlockingProcessor(), "landing", nil)
	s := New(r, "not a schedule", slog.New(slog.NewTextHandler(io.Discard, nil)))

	assert.Error(t, s.Start(context.Background()))
}
