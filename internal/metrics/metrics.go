// Package metrics provides Prometheus instrumentation for liqguard.
package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// EvidenceParsesTotal counts evidence parses by outcome
	// (ok, reconstructed, unreadable, stale).
	EvidenceParsesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "liqguard_evidence_parses_total",
		Help: "Evidence files parsed, by outcome",
	}, []string{"outcome"})

	// MismatchesTotal counts cross-validation verdicts other than none.
	MismatchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "liqguard_mismatches_total",
		Help: "Evidence mismatches detected, by reason",
	}, []string{"reason"})

	// SubmissionsTotal counts verification submissions by outcome, which is
	// "eligible", "ineligible", "rate_limited" or an error kind.
	SubmissionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "liqguard_submissions_total",
		Help: "Verification submissions, by outcome",
	}, []string{"outcome"})

	SubmissionLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "liqguard_submission_latency_seconds",
		Help:    "Verification round-trip latency in seconds",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	})

	// ActiveWizards tracks live wizard sessions in the registry.
	ActiveWizards = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "liqguard_active_wizards",
		Help: "Number of live wizard sessions",
	})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "liqguard_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, route and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "liqguard_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "route", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "liqguard_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "route"})

	// BackendRequestsTotal counts calls to the insurance backend by
	// endpoint and status code ("error" for transport failures).
	BackendRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "liqguard_backend_requests_total",
		Help: "Insurance backend requests, by endpoint and status",
	}, []string{"endpoint", "status"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware records request metrics. The route label is the matched
// ServeMux pattern so path parameters do not blow up cardinality.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// Hijack lets WebSocket upgrades pass through the middleware.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("metrics: response writer does not support hijacking")
	}
	return h.Hijack()
}
