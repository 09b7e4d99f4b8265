package integration

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/eugenenazirov/layered-config/internal/api"
	"github.com/eugenenazirov/layered-config/layered"
)

type integrationConfig struct {
	layered.Config
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func performRequest(t *testing.T, handler http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestIntegrationFlow(t *testing.T) {
	layered.Reset[integrationConfig]()
	t.Cleanup(layered.Reset[integrationConfig])

	dir := t.TempDir()
	defaults := filepath.Join(dir, "defaults.yaml")
	override := filepath.Join(dir, "override.yaml")
	writeFile(t, defaults, "a: 1\nb:\n  x: 1\n")
	writeFile(t, override, "b:\n  y: 2\n")

	cfg, err := layered.Instance[integrationConfig](defaults, override)
	if err != nil {
		t.Fatalf("Instance returned error: %v", err)
	}

	handler := api.NewRouter(api.NewHandler(cfg), zaptest.NewLogger(t))

	rec := performRequest(t, handler, http.MethodGet, "/api/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from health, got %d", rec.Code)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Fatalf("expected request id header")
	}

	rec = performRequest(t, handler, http.MethodGet, "/api/config")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from config, got %d", rec.Code)
	}
	var merged struct {
		A int `json:"a"`
		B struct {
			X int `json:"x"`
			Y int `json:"y"`
		} `json:"b"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&merged); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if merged.A != 1 || merged.B.X != 1 || merged.B.Y != 2 {
		t.Fatalf("expected nested keys to be merged, got %+v", merged)
	}

	writeFile(t, override, "b:\n  x: 5\n")
	rec = performRequest(t, handler, http.MethodPost, "/api/reload")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from reload, got %d", rec.Code)
	}

	rec = performRequest(t, handler, http.MethodGet, "/api/config/b")
	var value struct {
		Value map[string]int `json:"value"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&value); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if value.Value["x"] != 5 || len(value.Value) != 1 {
		t.Fatalf("expected reloaded mapping {x: 5}, got %v", value.Value)
	}

	same, err := layered.Instance[integrationConfig](override)
	if err != nil {
		t.Fatalf("Instance returned error: %v", err)
	}
	if same != cfg {
		t.Fatalf("expected the singleton to be reused")
	}
}
