package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/eugenenazirov/layered-config/layered"
)

type contextKey string

const requestIDContextKey contextKey = "requestID"

// Source is the read side of a layered configuration plus reload.
// *layered.Config satisfies it.
type Source interface {
	Files() []string
	All() map[string]any
	Get(key string) (any, bool)
	Reload() error
}

// Handler exposes a configuration source over HTTP.
type Handler struct {
	source Source

	clock func() time.Time

	mu         sync.RWMutex
	reloadedAt time.Time
}

// HandlerOption configures Handler behaviour.
type HandlerOption func(*Handler)

// WithClock overrides the time source, primarily for tests.
func WithClock(clock func() time.Time) HandlerOption {
	return func(h *Handler) {
		h.clock = clock
	}
}

// NewHandler constructs a Handler serving the provided source.
func NewHandler(source Source, opts ...HandlerOption) *Handler {
	h := &Handler{
		source: source,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	h.reloadedAt = h.clock()
	return h
}

// MarkReloaded records a reload performed outside the HTTP API, such as by
// a file watcher.
func (h *Handler) MarkReloaded() {
	h.mu.Lock()
	h.reloadedAt = h.clock()
	h.mu.Unlock()
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	_ = r
	resp := healthResponse{
		Status:    "ok",
		Timestamp: h.clock(),
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleFiles(w http.ResponseWriter, r *http.Request) {
	_ = r
	resp := filesResponse{
		Files:      h.source.Files(),
		ReloadedAt: h.currentReloadedAt(),
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleConfig(w http.ResponseWriter, r *http.Request) {
	_ = r
	writeJSON(w, http.StatusOK, h.source.All())
}

func (h *Handler) handleConfigKey(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	if key == "" {
		writeError(w, http.StatusBadRequest, "Invalid request", "key must not be empty")
		return
	}

	value, ok := h.source.Get(key)
	if !ok {
		writeError(w, http.StatusNotFound, "Key not found", key)
		return
	}

	writeJSON(w, http.StatusOK, valueResponse{Key: key, Value: value})
}

func (h *Handler) handleReload(w http.ResponseWriter, r *http.Request) {
	_ = r
	if err := h.source.Reload(); err != nil {
		switch {
		case errors.Is(err, layered.ErrFileNotFound), errors.Is(err, layered.ErrParse):
			writeError(w, http.StatusUnprocessableEntity, "Reload failed", err.Error(),
				"previous configuration is still being served")
		default:
			writeInternalError(w, err)
		}
		reloadsTotal.WithLabelValues("failure").Inc()
		return
	}

	h.MarkReloaded()
	reloadsTotal.WithLabelValues("success").Inc()

	resp := filesResponse{
		Files:      h.source.Files(),
		ReloadedAt: h.currentReloadedAt(),
		Message:    "Configuration reloaded successfully",
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) currentReloadedAt() time.Time {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.reloadedAt
}

func requestIDFromContext(ctx context.Context) string {
	if v := ctx.Value(requestIDContextKey); v != nil {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

type filesResponse struct {
	Files      []string  `json:"files"`
	ReloadedAt time.Time `json:"reloadedAt"`
	Message    string    `json:"message,omitempty"`
}

type valueResponse struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

type healthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

type errorResponse struct {
	Error      string `json:"error"`
	Details    string `json:"details,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
}

// writeJSON encodes before touching the response so that values JSON cannot
// represent, such as YAML's .inf and .nan, become a 500.
func writeJSON(w http.ResponseWriter, status int, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		writeInternalError(w, fmt.Errorf("encode response: %w", err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if status != 0 {
		w.WriteHeader(status)
	}
	_, _ = w.Write(append(body, '\n'))
}

func writeError(w http.ResponseWriter, status int, message, details string, suggestion ...string) {
	resp := errorResponse{
		Error:   message,
		Details: details,
	}
	if len(suggestion) > 0 {
		resp.Suggestion = suggestion[0]
	}
	writeJSON(w, status, resp)
}

func writeInternalError(w http.ResponseWriter, err error) {
	writeError(w, http.StatusInternalServerError, "Internal error", err.Error())
}
