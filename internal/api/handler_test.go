package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap/zaptest"

	"github.com/eugenenazirov/layered-config/layered"
)

type controllableClock struct {
	mu  sync.RWMutex
	now time.Time
}

func newControllableClock(initial time.Time) *controllableClock {
	return &controllableClock{now: initial}
}

func (c *controllableClock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.now
}

func (c *controllableClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type testEnv struct {
	router http.Handler
	clock  *controllableClock
	base   string
	local  string
}

func writeTestFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func setupTestRouter(t *testing.T) *testEnv {
	t.Helper()

	dir := t.TempDir()
	env := &testEnv{
		base:  filepath.Join(dir, "base.yaml"),
		local: filepath.Join(dir, "local.yaml"),
		clock: newControllableClock(time.Date(2024, 11, 1, 12, 0, 0, 0, time.UTC)),
	}
	writeTestFile(t, env.base, "server:\n  host: localhost\n  port: 8080\nfeatures: [search, export]\n")
	writeTestFile(t, env.local, "server:\n  port: 9090\n")

	cfg, err := layered.New([]string{env.base, env.local})
	if err != nil {
		t.Fatalf("layered.New returned error: %v", err)
	}

	handler := NewHandler(cfg, WithClock(env.clock.Now))
	logger := zaptest.NewLogger(t)
	env.router = NewRouter(handler, logger, WithLogging(false), WithRateLimit(0, 0))

	return env
}

func (e *testEnv) do(t *testing.T, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return body
}

func TestRequestIDHelpers(t *testing.T) {
	ctx := contextWithRequestID(context.Background(), "abc")
	if got := requestIDFromContext(ctx); got != "abc" {
		t.Fatalf("expected abc, got %s", got)
	}
	if got := requestIDFromContext(context.Background()); got != "" {
		t.Fatalf("expected empty request id, got %s", got)
	}
	resp := httptest.NewRecorder()
	writeInternalError(resp, assertError("boom"))
	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 status, got %d", resp.Code)
	}
}

type assertError string

func (a assertError) Error() string { return string(a) }

func TestHealthEndpoint(t *testing.T) {
	env := setupTestRouter(t)

	rec := env.do(t, http.MethodGet, "/api/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var resp healthResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != "ok" {
		t.Fatalf("expected ok status, got %s", resp.Status)
	}
	if !resp.Timestamp.Equal(env.clock.Now()) {
		t.Fatalf("unexpected timestamp %s", resp.Timestamp)
	}
}

func TestFilesEndpoint(t *testing.T) {
	env := setupTestRouter(t)

	rec := env.do(t, http.MethodGet, "/api/files")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var resp filesResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if diff := cmp.Diff([]string{env.base, env.local}, resp.Files); diff != "" {
		t.Fatalf("unexpected files (-want +got):\n%s", diff)
	}
}

func TestConfigEndpoint(t *testing.T) {
	env := setupTestRouter(t)

	rec := env.do(t, http.MethodGet, "/api/config")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	want := map[string]any{
		"server":   map[string]any{"host": "localhost", "port": float64(9090)},
		"features": []any{"search", "export"},
	}
	if diff := cmp.Diff(want, decodeBody(t, rec)); diff != "" {
		t.Fatalf("unexpected config (-want +got):\n%s", diff)
	}
}

func TestConfigKeyEndpoint(t *testing.T) {
	env := setupTestRouter(t)

	testCases := []struct {
		name   string
		target string
		status int
		want   map[string]any
	}{
		{
			name:   "scalar",
			target: "/api/config/server.port",
			status: http.StatusOK,
			want:   map[string]any{"key": "server.port", "value": float64(9090)},
		},
		{
			name:   "mapping",
			target: "/api/config/server",
			status: http.StatusOK,
			want:   map[string]any{"key": "server", "value": map[string]any{"host": "localhost", "port": float64(9090)}},
		},
		{
			name:   "sequence index",
			target: "/api/config/features.1",
			status: http.StatusOK,
			want:   map[string]any{"key": "features.1", "value": "export"},
		},
		{
			name:   "missing",
			target: "/api/config/server.tls",
			status: http.StatusNotFound,
			want:   map[string]any{"error": "Key not found", "details": "server.tls"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec := env.do(t, http.MethodGet, tc.target)
			if rec.Code != tc.status {
				t.Fatalf("expected status %d, got %d", tc.status, rec.Code)
			}
			if diff := cmp.Diff(tc.want, decodeBody(t, rec)); diff != "" {
				t.Fatalf("unexpected body (-want +got):\n%s", diff)
			}
		})
	}
}

func TestReloadEndpoint(t *testing.T) {
	env := setupTestRouter(t)

	writeTestFile(t, env.local, "server:\n  port: 7070\n")
	env.clock.Advance(time.Minute)

	rec := env.do(t, http.MethodPost, "/api/reload")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	var resp filesResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.ReloadedAt.Equal(env.clock.Now()) {
		t.Fatalf("expected reload timestamp to advance, got %s", resp.ReloadedAt)
	}

	rec = env.do(t, http.MethodGet, "/api/config/server.port")
	if diff := cmp.Diff(map[string]any{"key": "server.port", "value": float64(7070)}, decodeBody(t, rec)); diff != "" {
		t.Fatalf("unexpected body after reload (-want +got):\n%s", diff)
	}
}

func TestReloadEndpointKeepsConfigOnFailure(t *testing.T) {
	env := setupTestRouter(t)

	writeTestFile(t, env.local, "server: [broken\n")

	rec := env.do(t, http.MethodPost, "/api/reload")
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected status 422, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["suggestion"] == nil || body["details"] == nil {
		t.Fatalf("expected details and suggestion, got %v", body)
	}

	rec = env.do(t, http.MethodGet, "/api/config/server.port")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected previous config to be served, got %d", rec.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	env := setupTestRouter(t)

	rec := env.do(t, http.MethodGet, "/api/reload")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected status 405, got %d", rec.Code)
	}
}

func TestMarkReloaded(t *testing.T) {
	clock := newControllableClock(time.Date(2024, 11, 1, 12, 0, 0, 0, time.UTC))
	h := NewHandler(nil, WithClock(clock.Now))

	clock.Advance(time.Hour)
	h.MarkReloaded()

	if !h.currentReloadedAt().Equal(clock.Now()) {
		t.Fatalf("expected reload time to follow the clock")
	}
}

func TestNonFiniteValuesReturnInternalError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "limits.yaml")
	writeTestFile(t, path, "ratio: .inf\nname: limits\n")

	cfg, err := layered.New([]string{path})
	if err != nil {
		t.Fatalf("layered.New returned error: %v", err)
	}
	router := NewRouter(NewHandler(cfg), zaptest.NewLogger(t), WithLogging(false), WithRateLimit(0, 0))

	for _, target := range []string{"/api/config", "/api/config/ratio"} {
		t.Run(target, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
			if rec.Code != http.StatusInternalServerError {
				t.Fatalf("expected status 500, got %d", rec.Code)
			}
			body := decodeBody(t, rec)
			if body["error"] != "Internal error" || body["details"] == nil {
				t.Fatalf("expected encoding error details, got %v", body)
			}
		})
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/config/name", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected finite values to be served, got %d", rec.Code)
	}
}
