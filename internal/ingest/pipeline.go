package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/JonMunkholm/tempingest/internal/logging"
)

// Ledger records every ingestion attempt.
type Ledger interface {
	Start(ctx context.Context, sourceFile, checksum string, rowsInFile int64) (string, error)
	Finalize(ctx context.Context, runID string, status RunStatus, counts Counts, message string) error
	HasSucceeded(ctx context.Context, checksum string) (bool, error)
}

// Stager bulk-loads a CSV into the staging table and returns the row count.
type Stager interface {
	Load(ctx context.Context, runID, sourceFile, path string) (int64, error)
}

// Transformer moves one run's staged rows into the final table.
type Transformer interface {
	Transform(ctx context.Context, runID, sourceFile string) (TransformResult, error)
}

// Observer is notified of every file outcome.
type Observer interface {
	ObserveOutcome(Outcome)
}

// SkipAction decides what happens to a file whose content was already ingested.
type SkipAction string

const (
	SkipLeave   SkipAction = "leave"
	SkipArchive SkipAction = "archive"
)

// Options configures an Orchestrator.
type Options struct {
	ArchiveDir string
	ErrorDir   string

	// Verbose logs full failure detail; otherwise only the reason tag is
	// logged. The ledger and failure log always receive full detail.
	Verbose bool

	SkipAction SkipAction
	FailureLog *FailureLog
	Observer   Observer
}

// Orchestrator drives each file through fingerprint, dedup check, header
// validation, staging, transform and relocation.
type Orchestrator struct {
	ledger      Ledger
	stager      Stager
	transformer Transformer
	opts        Options
}

// NewOrchestrator wires the pipeline stages together.
func NewOrchestrator(ledger Ledger, stager Stager, transformer Transformer, opts Options) *Orchestrator {
	if opts.SkipAction == "" {
		opts.SkipAction = SkipLeave
	}
	return &Orchestrator{
		ledger:      ledger,
		stager:      stager,
		transformer: transformer,
		opts:        opts,
	}
}

// ProcessDirectory processes every CSV directly inside dir, in name order.
// A failing file never stops the pass; only an unreadable directory or a
// cancelled context returns an error.
func (o *Orchestrator) ProcessDirectory(ctx context.Context, dir string) (Summary, error) {
	var summary Summary

	files, err := Discover(dir)
	if err != nil {
		return summary, err
	}

	logger := logging.WithFields(ctx, "dir", dir)
	if len(files) == 0 {
		logger.Debug("no csv files found")
		return summary, nil
	}
	logger.Info("processing directory", "files", len(files))

	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		summary.Outcomes = append(summary.Outcomes, o.ProcessFile(ctx, path))
	}

	logger.Info("directory processed",
		"success", summary.Count(StateSuccess),
		"failed", summary.Count(StateFailed),
		"header_rejected", summary.Count(StateHeaderRejected),
		"skipped", summary.Count(StateSkipped),
	)
	return summary, nil
}

// ProcessFile takes one file to a terminal state. It never returns an error:
// failures are recorded in the Outcome, the ledger and the failure log.
func (o *Orchestrator) ProcessFile(ctx context.Context, path string) Outcome {
	start := time.Now()
	out := o.processFile(ctx, path)
	out.Duration = time.Since(start)

	if o.opts.Observer != nil {
		o.opts.Observer.ObserveOutcome(out)
	}
	return out
}

func (o *Orchestrator) processFile(ctx context.Context, path string) Outcome {
	name := filepath.Base(path)
	out := Outcome{File: name, Path: path}
	logger := logging.WithFields(ctx, "file", name)

	checksum, err := Fingerprint(path)
	if errors.Is(err, ErrNotAFile) {
		out.State, out.Reason, out.Err = StateFailed, Classify(err), err
		logger.Error("skipping path that is not a regular file", "path", path)
		return out
	}
	if err != nil {
		o.reject(ctx, &out, err)
		return out
	}

	done, err := o.ledger.HasSucceeded(ctx, checksum)
	if err != nil {
		// The file is not at fault; leave it for the next pass.
		err = &ProcessingError{Stage: "dedup check", Err: err}
		out.State, out.Reason, out.Err = StateFailed, Classify(err), err
		o.recordFailure(&out)
		o.logFailure(logger, &out, "dedup check failed")
		return out
	}
	if done {
		out.State = StateSkipped
		logger.Info("already ingested, skipping", "checksum", checksum)
		if o.opts.SkipAction == SkipArchive {
			dest, err := Relocate(path, o.opts.ArchiveDir)
			if err != nil {
				logger.Error("failed to archive skipped file", "error", err)
			} else {
				out.Destination = dest
			}
		}
		return out
	}

	header, err := ReadHeader(path)
	if err == nil {
		err = ValidateHeader(header)
	}
	if err != nil {
		o.reject(ctx, &out, err)
		return out
	}

	runID, err := o.ledger.Start(ctx, name, checksum, countDataRows(path))
	if err != nil {
		o.fail(ctx, &out, Counts{}, &ProcessingError{Stage: "start run", Err: err})
		return out
	}
	out.RunID = runID
	logger = logger.With("run_id", runID)
	logger.Info("run started")

	var counts Counts
	counts.Staged, err = o.stager.Load(ctx, runID, name, path)
	if err != nil {
		o.fail(ctx, &out, Counts{}, err)
		return out
	}

	result, err := o.transformer.Transform(ctx, runID, name)
	if err != nil {
		o.fail(ctx, &out, counts, err)
		return out
	}
	counts.Valid, counts.Rejected = result.Valid, result.Rejected

	if err := o.ledger.Finalize(context.WithoutCancel(ctx), runID, StatusSuccess, counts, ""); err != nil {
		o.fail(ctx, &out, counts, &ProcessingError{Stage: "finalize run", Err: err})
		return out
	}

	dest, err := Relocate(path, o.opts.ArchiveDir)
	if err != nil {
		o.fail(ctx, &out, counts, err)
		return out
	}

	out.State, out.Counts, out.Destination = StateSuccess, counts, dest
	logger.Info("run succeeded",
		"rows_staged", counts.Staged,
		"rows_valid", counts.Valid,
		"rows_rejected", counts.Rejected,
		"archived_to", dest,
	)
	return out
}

// reject handles failures before a run exists: the file goes to the error
// directory and the failure log gets a placeholder run id.
func (o *Orchestrator) reject(ctx context.Context, out *Outcome, err error) {
	logger := logging.WithFields(ctx, "file", out.File)

	out.State, out.Reason, out.Err = StateHeaderRejected, Classify(err), err
	var ioErr *IOError
	if errors.As(err, &ioErr) {
		out.State = StateFailed
	}

	o.recordFailure(out)
	o.moveToError(logger, out)
	o.logFailure(logger, out, "file rejected")
}

// fail finalises the run as failed when one exists, records the failure and
// moves the file to the error directory. A file interrupted by cancellation
// stays in the landing directory for the next pass.
func (o *Orchestrator) fail(ctx context.Context, out *Outcome, counts Counts, err error) {
	logger := logging.WithFields(ctx, "file", out.File)
	if out.RunID != "" {
		logger = logger.With("run_id", out.RunID)
	}

	out.State, out.Reason, out.Counts, out.Err = StateFailed, Classify(err), counts, err

	if out.RunID != "" {
		message := fmt.Sprintf("%s: %v", out.Reason, err)
		// The run must reach a terminal status even when ctx was cancelled.
		if ferr := o.ledger.Finalize(context.WithoutCancel(ctx), out.RunID, StatusFailed, counts, message); ferr != nil {
			logger.Error("failed to finalize failed run", "error", ferr)
		}
	}

	o.recordFailure(out)
	if ctx.Err() != nil {
		o.logFailure(logger, out, "run interrupted, file left for next pass")
		return
	}
	o.moveToError(logger, out)
	o.logFailure(logger, out, "run failed")
}

func (o *Orchestrator) recordFailure(out *Outcome) {
	o.opts.FailureLog.Append(FailureEntry{
		File:    out.File,
		RunID:   out.RunID,
		Reason:  out.Reason,
		Details: out.Err.Error(),
	})
}

func (o *Orchestrator) moveToError(logger *slog.Logger, out *Outcome) {
	dest, err := Relocate(out.Path, o.opts.ErrorDir)
	if err != nil {
		logger.Error("failed to move file to error directory", "error", err)
		return
	}
	out.Destination = dest
}

func (o *Orchestrator) logFailure(logger *slog.Logger, out *Outcome, msg string) {
	if !o.opts.Verbose {
		logger.Error(msg, "reason", out.Reason)
		return
	}
	logger.Error(msg,
		"reason", out.Reason,
		"error", out.Err,
		"moved_to", out.Destination,
	)
}
