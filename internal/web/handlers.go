package web

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/JonMunkholm/tempingest/internal/ingest"
	"github.com/JonMunkholm/tempingest/internal/logging"
	"github.com/JonMunkholm/tempingest/internal/scheduler"
)

const (
	defaultRunLimit = 50
	maxRunLimit     = 500
	healthTimeout   = 2 * time.Second
)

// Error codes returned alongside the message in JSON error bodies.
const (
	codePassInProgress = "PASS_IN_PROGRESS"
	codeInternal       = "INTERNAL"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type outcomeResponse struct {
	File        string        `json:"file"`
	State       ingest.State  `json:"state"`
	RunID       string        `json:"run_id,omitempty"`
	Reason      ingest.Reason `json:"reason,omitempty"`
	Counts      ingest.Counts `json:"counts"`
	Destination string        `json:"destination,omitempty"`
	DurationMS  int64         `json:"duration_ms"`
	Error       string        `json:"error,omitempty"`
}

type summaryResponse struct {
	Files          int               `json:"files"`
	Success        int               `json:"success"`
	Failed         int               `json:"failed"`
	HeaderRejected int               `json:"header_rejected"`
	Skipped        int               `json:"skipped"`
	Outcomes       []outcomeResponse `json:"outcomes"`
}

type statusResponse struct {
	Busy     bool          `json:"busy"`
	LastPass *passResponse `json:"last_pass,omitempty"`
}

type passResponse struct {
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
	Error      string          `json:"error,omitempty"`
	Summary    summaryResponse `json:"summary"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	if err := s.deps.DB.Ping(ctx); err != nil {
		logging.FromContext(r.Context()).Warn("health check failed", "error", err)
		writeJSONStatus(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "database": "unreachable"})
		return
	}
	writeJSON(w, map[string]string{"status": "ok", "database": "ok"})
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r)

	runs, err := s.deps.Runs.Recent(r.Context(), limit)
	if err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError, "failed to list runs")
		return
	}
	if runs == nil {
		runs = []ingest.Run{}
	}
	writeJSON(w, runs)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{Busy: s.deps.Runner.Busy()}
	if last, ok := s.deps.Runner.Last(); ok {
		resp.LastPass = toPassResponse(last)
	}
	writeJSON(w, resp)
}

// handleScan runs one pass synchronously. The pass is detached from the
// request context so a disconnecting client does not abort it mid-file.
func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	summary, err := s.deps.Runner.TryRun(context.WithoutCancel(r.Context()))
	if errors.Is(err, scheduler.ErrPassInProgress) {
		writeError(w, http.StatusConflict, err.Error(), codePassInProgress)
		return
	}
	if err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError, "directory pass failed")
		return
	}
	writeJSON(w, toSummaryResponse(summary))
}

func parseLimit(r *http.Request) int {
	val := r.URL.Query().Get("limit")
	if val == "" {
		return defaultRunLimit
	}
	n, err := strconv.Atoi(val)
	if err != nil || n < 1 {
		return defaultRunLimit
	}
	return min(n, maxRunLimit)
}

func toSummaryResponse(s ingest.Summary) summaryResponse {
	resp := summaryResponse{
		Files:          len(s.Outcomes),
		Success:        s.Count(ingest.StateSuccess),
		Failed:         s.Count(ingest.StateFailed),
		HeaderRejected: s.Count(ingest.StateHeaderRejected),
		Skipped:        s.Count(ingest.StateSkipped),
		Outcomes:       make([]outcomeResponse, 0, len(s.Outcomes)),
	}
	for _, o := range s.Outcomes {
		item := outcomeResponse{
			File:        o.File,
			State:       o.State,
			RunID:       o.RunID,
			Reason:      o.Reason,
			Counts:      o.Counts,
			Destination: o.Destination,
			DurationMS:  o.Duration.Milliseconds(),
		}
		if o.Err != nil {
			item.Error = o.Err.Error()
		}
		resp.Outcomes = append(resp.Outcomes, item)
	}
	return resp
}

func toPassResponse(p scheduler.PassResult) *passResponse {
	resp := &passResponse{
		StartedAt:  p.StartedAt.UTC(),
		FinishedAt: p.FinishedAt.UTC(),
		Summary:    toSummaryResponse(p.Summary),
	}
	if p.Err != nil {
		resp.Error = p.Err.Error()
	}
	return resp
}

// respondError logs err with request context and returns msg to the client.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error, status int, msg string) {
	logging.FromContext(r.Context()).Error("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err,
	)
	writeError(w, status, msg, codeInternal)
}

func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSONStatus(w, status, errorResponse{Error: message, Code: code})
}

func writeJSON(w http.ResponseWriter, v any) {
	writeJSONStatus(w, http.StatusOK, v)
}

func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
