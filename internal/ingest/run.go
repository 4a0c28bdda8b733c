package ingest

import "time"

// RunStatus is the ledger state of one ingestion attempt.
type RunStatus string

const (
	StatusRunning RunStatus = "running"
	StatusSuccess RunStatus = "success"
	StatusFailed  RunStatus = "failed"
)

// Counts are the row tallies recorded when a run is finalised.
type Counts struct {
	Staged   int64 `json:"rows_loaded_staging"`
	Valid    int64 `json:"rows_valid"`
	Rejected int64 `json:"rows_rejected"`
}

// TransformResult is the aggregate returned by the transform routine.
type TransformResult struct {
	Valid    int64
	Rejected int64
}

// Run is one row of the run ledger.
type Run struct {
	ID         string     `json:"run_id"`
	SourceFile string     `json:"source_file"`
	Checksum   string     `json:"file_checksum_sha256"`
	StartedAt  time.Time  `json:"started_at"`
	EndedAt    *time.Time `json:"ended_at,omitempty"`
	Status     RunStatus  `json:"status"`
	RowsInFile int64      `json:"rows_in_file"`
	Counts
	Message *string `json:"message,omitempty"`
}

// State is the terminal state of a file after ProcessFile.
type State string

const (
	StateSkipped        State = "skipped"
	StateHeaderRejected State = "header_rejected"
	StateSuccess        State = "success"
	StateFailed         State = "failed"
)

// Outcome describes what happened to one file.
type Outcome struct {
	File        string
	Path        string
	State       State
	RunID       string // empty unless a ledger row was created
	Reason      Reason // empty on success and skip
	Counts      Counts
	Destination string // absolute path after relocation, empty if the file did not move
	Duration    time.Duration
	Err         error
}

// Summary aggregates the outcomes of one directory pass.
type Summary struct {
	Outcomes []Outcome
}

// Count returns the number of files that ended in state.
func (s Summary) Count(state State) int {
	n := 0
	for _, o := range s.Outcomes {
		if o.State == state {
			n++
		}
	}
	return n
}
