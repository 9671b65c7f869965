package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/immich-metasync/internal/config"
	"github.com/kozaktomas/immich-metasync/internal/syncer"
)

// testConfig creates a minimal config for testing
func testConfig() *config.Config {
	return &config.Config{
		Immich: config.ImmichConfig{
			URL:      "http://immich.local:2283",
			APIKey:   "secret-key",
			PageSize: 200,
		},
		Sync: config.SyncConfig{
			CaptionMaxLen:      2000,
			Concurrency:        4,
			CheckpointInterval: 100,
		},
	}
}

// fakeRunner records the options of each run. When block is set, Run waits
// for it to close or for the context to end.
type fakeRunner struct {
	mu    sync.Mutex
	calls []syncer.Options
	block chan struct{}
	err   error
}

func (f *fakeRunner) Run(ctx context.Context, opts syncer.Options) (*syncer.Stats, error) {
	f.mu.Lock()
	f.calls = append(f.calls, opts)
	f.mu.Unlock()

	stats := &syncer.Stats{RunID: opts.RunID, Total: 2}
	if opts.OnProgress != nil {
		opts.OnProgress(syncer.ProgressInfo{Phase: syncer.PhaseProcessing, Current: 1, Total: 2, AssetID: "a1", Status: syncer.StatusUpdated})
	}
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return stats, ctx.Err()
		}
	}
	if f.err != nil {
		return stats, f.err
	}
	stats.Updated = 2
	return stats, nil
}

func (f *fakeRunner) lastCall(t *testing.T) syncer.Options {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		t.Fatal("runner was not called")
	}
	return f.calls[len(f.calls)-1]
}

// waitForStatus polls a job until it reaches the wanted status
func waitForStatus(t *testing.T, job *SyncJob, want JobStatus) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if job.GetStatus() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("job %s: expected status %s, got %s", job.ID, want, job.GetStatus())
}

// waitForCompletedAt polls until the job recorded its terminal state
func waitForCompletedAt(t *testing.T, job *SyncJob) SyncJobView {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if view := job.Snapshot(); view.CompletedAt != nil {
			return view
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("job %s did not finish", job.ID)
	return SyncJobView{}
}

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// parseJSONResponse parses a JSON response body into the target type
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks if the response has the expected status code
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, recorder.Code, recorder.Body.String())
	}
}

// assertContentType checks if the response has the expected content type
func assertContentType(t *testing.T, recorder *httptest.ResponseRecorder, expected string) {
	t.Helper()
	ct := recorder.Header().Get("Content-Type")
	if ct != expected {
		t.Errorf("expected Content-Type '%s', got '%s'", expected, ct)
	}
}

// assertJSONError checks if the response is a JSON error with the expected message
func assertJSONError(t *testing.T, recorder *httptest.ResponseRecorder, expectedMessage string) {
	t.Helper()
	var result map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse error response: %v\nBody: %s", err, recorder.Body.String())
	}
	if result["error"] != expectedMessage {
		t.Errorf("expected error '%s', got '%s'", expectedMessage, result["error"])
	}
}
