package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/tempingest/internal/ingest"
	"github.com/JonMunkholm/tempingest/internal/scheduler"
)

type fakeRuns struct {
	runs      []ingest.Run
	err       error
	lastLimit int
}

func (f *fakeRuns) Recent(_ context.Context, limit int) ([]ingest.Run, error) {
	f.lastLimit = limit
	return f.runs, f.err
}

type fakeDB struct{ err error }

func (f fakeDB) Ping(context.Context) error { return f.err }

type fakeRunner struct {
	summary ingest.Summary
	err     error
	busy    bool
	last    *scheduler.PassResult
}

func (f *fakeRunner) TryRun(context.Context) (ingest.Summary, error) { return f.summary, f.err }
func (f *fakeRunner) Busy() bool { return f.busy }
func (f *fakeRunner) Last() (scheduler.PassResult, bool) {
	if f.last == nil {
		return scheduler.PassResult{}, false
	}
	return *f.last, true
}

func newTestServer(deps Deps) *Server {
	if deps.Runs == nil {
		deps.Runs = &fakeRuns{}
	}
	if deps.DB == nil {
		deps.DB = fakeDB{}
	}
	if deps.Runner == nil {
		deps.Runner = &fakeRunner{}
	}
	return NewServer(deps)
}

func do(t *testing.T, s *Server, method, target string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	rec := do(t, newTestServer(Deps{}), http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","database":"ok"}`, rec.Body.String())

	rec = do(t, newTestServer(Deps{DB: fakeDB{err: errors.New("refused")}}), http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.NotContains(t, rec.Body.String(), "refused")
}

func TestListRuns(t *testing.T) {
	started := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	runs := &fakeRuns{runs: []ingest.Run{{
		ID:         "r1",
		SourceFile: "a.csv",
		StartedAt:  started,
		Status:     ingest.StatusSuccess,
		Counts:     ingest.Counts{Staged: 3, Valid: 3},
	}}}
	s := newTestServer(Deps{Runs: runs})

	tests := []struct {
		query string
		limit int
	}{
		{"", defaultRunLimit},
		{"?limit=5", 5},
		{"?limit=0", defaultRunLimit},
		{"?limit=abc", defaultRunLimit},
		{"?limit=100000", maxRunLimit},
	}
	for _, tt := range tests {
		rec := do(t, s, http.MethodGet, "/api/runs"+tt.query, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, tt.limit, runs.lastLimit, "query %q", tt.query)
	}

	var got []map[string]any
	rec := do(t, s, http.MethodGet, "/api/runs", nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "r1", got[0]["run_id"])
	assert.Equal(t, "success", got[0]["status"])
	assert.Equal(t, float64(3), got[0]["rows_loaded_staging"])
}

func TestListRuns_EmptyAndError(t *testing.T) {
	rec := do(t, newTestServer(Deps{}), http.MethodGet, "/api/runs", nil)
	assert.Equal(t, "[]\n", rec.Body.String())

	rec = do(t, newTestServer(Deps{Runs: &fakeRuns{err: errors.New("db gone")}}), http.MethodGet, "/api/runs", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"failed to list runs","code":"INTERNAL"}`, rec.Body.String())
}

func TestScan(t *testing.T) {
	runner := &fakeRunner{summary: ingest.Summary{Outcomes: []ingest.Outcome{
		{File: "a.csv", State: ingest.StateSuccess, RunID: "r1", Counts: ingest.Counts{Staged: 2, Valid: 2}},
		{File: "b.csv", State: ingest.StateHeaderRejected, Reason: ingest.ReasonCSVFormat, Err: ingest.ErrHeaderMissing},
	}}}
	s := newTestServer(Deps{Runner: runner})

	rec := do(t, s, http.MethodPost, "/api/scan", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp summaryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Files)
	assert.Equal(t, 1, resp.Success)
	assert.Equal(t, 1, resp.HeaderRejected)
	assert.Equal(t, "csv header row is missing", resp.Outcomes[1].Error)

	runner.err = scheduler.ErrPassInProgress
	rec = do(t, s, http.MethodPost, "/api/scan", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.JSONEq(t, `{"error":"a directory pass is already running","code":"PASS_IN_PROGRESS"}`, rec.Body.String())

	runner.err = errors.New("landing dir gone")
	rec = do(t, s, http.MethodPost, "/api/scan", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"directory pass failed","code":"INTERNAL"}`, rec.Body.String())

	rec = do(t, s, http.MethodGet, "/api/scan", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestStatus(t *testing.T) {
	runner := &fakeRunner{busy: true}
	s := newTestServer(Deps{Runner: runner})

	rec := do(t, s, http.MethodGet, "/api/status", nil)
	assert.JSONEq(t, `{"busy":true}`, rec.Body.String())

	runner.busy = false
	runner.last = &scheduler.PassResult{
		StartedAt:  time.Unix(100, 0),
		FinishedAt: time.Unix(160, 0),
		Err:        errors.New("landing missing"),
	}
	rec = do(t, s, http.MethodGet, "/api/status", nil)

	var resp statusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.LastPass)
	assert.Equal(t, "landing missing", resp.LastPass.Error)
	assert.Equal(t, 60*time.Second, resp.LastPass.FinishedAt.Sub(resp.LastPass.StartedAt))
}

func TestAPIKeysProtectAPIOnly(t *testing.T) {
	s := newTestServer(Deps{APIKeys: []string{"secret"}})

	assert.Equal(t, http.StatusUnauthorized, do(t, s, http.MethodPost, "/api/scan", nil).Code)
	assert.Equal(t, http.StatusOK, do(t, s, http.MethodPost, "/api/scan", map[string]string{"X-API-Key": "secret"}).Code)
	assert.Equal(t, http.StatusOK, do(t, s, http.MethodGet, "/healthz", nil).Code)
}

func TestMetricsRoute(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("tempingest_files_total 1\n"))
	})
	s := newTestServer(Deps{Metrics: metrics})

	rec := do(t, s, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "tempingest_files_total")
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}
