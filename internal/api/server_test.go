package api

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/paperboydev/paperboy/internal/config"
	"github.com/paperboydev/paperboy/internal/edition"
	"github.com/paperboydev/paperboy/internal/history"
)

type fakeRunner struct {
	mu      sync.Mutex
	started chan struct{}
	release chan struct{}
	dates   []time.Time
	force   []bool
	dryRun  []bool
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{
		started: make(chan struct{}, 8),
		release: make(chan struct{}),
	}
}

func (f *fakeRunner) Run(ctx context.Context, date time.Time, force, dryRun bool) (edition.RunRecord, error) {
	f.mu.Lock()
	f.dates = append(f.dates, date)
	f.force = append(f.force, force)
	f.dryRun = append(f.dryRun, dryRun)
	f.mu.Unlock()
	f.started <- struct{}{}
	select {
	case <-f.release:
	case <-ctx.Done():
	}
	return edition.RunRecord{}, nil
}

type fakeClock struct{ now time.Time }

func (c fakeClock) Now() time.Time { return c.now }

type errStore struct{}

func (errStore) Record(context.Context, edition.RunRecord) error { return nil }
func (errStore) Recent(context.Context, int, time.Time) ([]edition.RunRecord, error) {
	return nil, errors.New("connection refused")
}
func (errStore) Close() {}

var testNow = time.Date(2024, 5, 4, 8, 0, 0, 0, time.UTC)

func seedHistory(t *testing.T, store history.Store, records ...edition.RunRecord) {
	t.Helper()
	for _, rec := range records {
		require.NoError(t, store.Record(context.Background(), rec))
	}
}

func newTestServer(runner *fakeRunner, store history.Store) *Server {
	if store == nil {
		store = history.NewMemory()
	}
	return NewServer(runner, store, fakeClock{now: testNow}, config.ServerConfig{}, zap.NewNop())
}

func TestServer_ListRunsReturnsRecent(t *testing.T) {
	t.Parallel()

	store := history.NewMemory()
	seedHistory(t, store,
		edition.RunRecord{RunID: "r1", Date: "2024-05-04", Status: edition.RunStatusSuccess},
		edition.RunRecord{RunID: "r2", Date: "2024-05-03", Status: edition.RunStatusFailed},
	)
	server := newTestServer(newFakeRunner(), store)

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/runs", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "r1")
	require.Contains(t, rec.Body.String(), "r2")
}

func TestServer_ListRunsRejectsBadDays(t *testing.T) {
	t.Parallel()

	server := newTestServer(newFakeRunner(), nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/runs?days=0", nil))

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_GetRunByDate(t *testing.T) {
	t.Parallel()

	store := history.NewMemory()
	seedHistory(t, store,
		edition.RunRecord{RunID: "r1", Date: "2024-05-02", Status: edition.RunStatusSuccess},
	)
	server := newTestServer(newFakeRunner(), store)

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/runs/2024-05-02", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "r1")

	rec = httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/runs/2024-05-01", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/runs/not-a-date", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_StatusReportsWeek(t *testing.T) {
	t.Parallel()

	store := history.NewMemory()
	seedHistory(t, store,
		edition.RunRecord{RunID: "r1", Date: "2024-05-04", Status: edition.RunStatusSuccess, Strategy: edition.StrategyHTTP},
		edition.RunRecord{RunID: "r2", Date: "2024-05-03", Status: edition.RunStatusFailed, ErrorKind: "download_failed"},
	)
	server := newTestServer(newFakeRunner(), store)

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	require.Contains(t, body, `"status":"ok"`)
	require.Contains(t, body, `"delivered":1`)
	require.Contains(t, body, `"missing"`)
	require.Contains(t, body, "download_failed")
}

func TestServer_StatusDegradedWithoutTodaysRun(t *testing.T) {
	t.Parallel()

	store := history.NewMemory()
	seedHistory(t, store,
		edition.RunRecord{RunID: "r1", Date: "2024-05-03", Status: edition.RunStatusSuccess},
	)
	server := newTestServer(newFakeRunner(), store)

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"status":"degraded"`)
}

func TestServer_TriggerRunStartsPipeline(t *testing.T) {
	t.Parallel()

	runner := newFakeRunner()
	server := newTestServer(runner, nil)

	body := bytes.NewBufferString(`{"date":"2024-05-01","force":true}`)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/runs", body))

	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Contains(t, rec.Body.String(), "2024-05-01")

	select {
	case <-runner.started:
	case <-time.After(2 * time.Second):
		t.Fatal("runner was never invoked")
	}
	close(runner.release)

	runner.mu.Lock()
	defer runner.mu.Unlock()
	require.Equal(t, "2024-05-01", runner.dates[0].Format(edition.DateLayout))
	require.True(t, runner.force[0])
	require.False(t, runner.dryRun[0])
}

func TestServer_TriggerRunConflictWhileRunning(t *testing.T) {
	t.Parallel()

	runner := newFakeRunner()
	server := newTestServer(runner, nil)

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/runs", nil))
	require.Equal(t, http.StatusAccepted, rec.Code)
	<-runner.started

	rec = httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/runs", nil))
	require.Equal(t, http.StatusConflict, rec.Code)
	close(runner.release)
}

func TestServer_TriggerRunRejectsBadDate(t *testing.T) {
	t.Parallel()

	server := newTestServer(newFakeRunner(), nil)
	body := bytes.NewBufferString(`{"date":"05/01/2024"}`)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/runs", body))

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_ReadyzFailsWhenStoreDown(t *testing.T) {
	t.Parallel()

	server := newTestServer(newFakeRunner(), errStore{})
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestServer_APIKeyMiddleware(t *testing.T) {
	t.Parallel()

	cfg := config.ServerConfig{AuthEnabled: true, APIKey: "secret"}
	server := NewServer(newFakeRunner(), history.NewMemory(), fakeClock{now: testNow}, cfg, zap.NewNop())

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusForbidden, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-API-Key", "secret")
	rec = httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRequestIDMiddlewareSetsHeader(t *testing.T) {
	t.Parallel()

	server := newTestServer(newFakeRunner(), nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}
