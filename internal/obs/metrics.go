package obs

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTP-level metrics.
var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

// Ledger domain metrics.
var (
	paymentsRecorded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_payments_recorded_total",
			Help: "Payments recorded against obligations.",
		},
		[]string{"method"},
	)

	paymentsVerified = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ledger_payments_verified_total",
		Help: "Payments verified by finance.",
	})

	obligationResets = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ledger_obligation_resets_total",
		Help: "Destructive obligation resets.",
	})

	lockConflicts = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ledger_lock_conflicts_total",
		Help: "Transactions retried or aborted on serialization conflicts.",
	})
)

// Init registers all metrics in the default registry.
func Init() {
	prometheus.MustRegister(
		httpInFlight, httpRequestsTotal, httpRequestDuration,
		paymentsRecorded, paymentsVerified, obligationResets, lockConflicts,
	)
}

// Handler exposes the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// CountPaymentRecorded increments the payment counter for a method.
func CountPaymentRecorded(method string) {
	if method == "" {
		method = "unknown"
	}
	paymentsRecorded.WithLabelValues(method).Inc()
}

// CountPaymentVerified increments the verification counter.
func CountPaymentVerified() { paymentsVerified.Inc() }

// CountObligationReset increments the reset counter.
func CountObligationReset() { obligationResets.Inc() }

// CountLockConflict increments the serialization-conflict counter.
func CountLockConflict() { lockConflicts.Inc() }

// CanonicalPath collapses resource ids so metric labels stay bounded:
// /v1/accounts/abc/stats becomes /v1/accounts/:id/stats. Unknown paths
// pass through unchanged.
func CanonicalPath(path string) string {
	if path == "" {
		return "/"
	}
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	parts := strings.Split(strings.TrimPrefix(path, "/"), "/")
	if len(parts) < 3 || parts[0] != "v1" {
		return path
	}
	switch parts[1] {
	case "accounts":
		if len(parts) == 3 {
			return "/v1/accounts/:id"
		}
		if len(parts) == 4 && (parts[3] == "obligations" || parts[3] == "stats") {
			return "/v1/accounts/:id/" + parts[3]
		}
	case "obligations":
		if len(parts) == 4 && (parts[3] == "payments" || parts[3] == "mark-paid" || parts[3] == "unmark-paid") {
			return "/v1/obligations/:id/" + parts[3]
		}
	case "payments":
		if len(parts) == 4 && parts[3] == "verify" {
			return "/v1/payments/:id/verify"
		}
	}
	return path
}

// Instrument measures RPS, latency and in-flight count per request.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := CanonicalPath(r.URL.Path)
		method := r.Method

		httpInFlight.Inc()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: 200}
		next.ServeHTTP(sw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(sw.code)

		httpRequestDuration.WithLabelValues(method, path, status).Observe(duration)
		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpInFlight.Dec()
	})
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
