package api

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "layeredconfig",
			Name:      "http_requests_total",
			Help:      "HTTP requests served, by route and status",
		},
		[]string{"method", "route", "status"},
	)

	reloadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "layeredconfig",
			Name:      "reloads_total",
			Help:      "Configuration reloads, by result",
		},
		[]string{"result"},
	)
)

// RecordReload counts a reload triggered outside the HTTP API.
func RecordReload(err error) {
	if err != nil {
		reloadsTotal.WithLabelValues("failure").Inc()
		return
	}
	reloadsTotal.WithLabelValues("success").Inc()
}

// metricsMiddleware must wrap the ServeMux directly so that r.Pattern is
// populated once the mux has routed the request.
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		requestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
	})
}
