package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "apisentinel",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "apisentinel",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	httpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "apisentinel",
			Subsystem: "http",
			Name:      "requests_in_flight",
			Help:      "Number of HTTP requests currently being served",
		},
	)

	// Detection metrics
	anomaliesDetectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "apisentinel",
			Subsystem: "detection",
			Name:      "anomalies_total",
			Help:      "Total number of anomalies detected",
		},
		[]string{"kind", "severity"},
	)

	scannerFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "apisentinel",
			Subsystem: "detection",
			Name:      "scanner_failures_total",
			Help:      "Total number of scanner failures",
		},
		[]string{"scanner"},
	)

	detectionSweepDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "apisentinel",
			Subsystem: "detection",
			Name:      "sweep_duration_seconds",
			Help:      "Duration of a per-project detection run in seconds",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	// Alert dispatch metrics
	alertDispatchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "apisentinel",
			Subsystem: "alert",
			Name:      "dispatch_total",
			Help:      "Total number of alert dispatch attempts",
		},
		[]string{"outcome"},
	)

	channelDeliveryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "apisentinel",
			Subsystem: "alert",
			Name:      "channel_delivery_total",
			Help:      "Total number of per-channel delivery attempts",
		},
		[]string{"channel", "status"},
	)
)

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware returns a middleware that records Prometheus metrics
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		httpRequestsInFlight.Inc()
		defer httpRequestsInFlight.Dec()

		wrapped := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start).Seconds()

		routePattern := chi.RouteContext(r.Context()).RoutePattern()
		if routePattern == "" {
			routePattern = "unknown"
		}

		status := strconv.Itoa(wrapped.statusCode)

		httpRequestsTotal.WithLabelValues(r.Method, routePattern, status).Inc()
		httpRequestDuration.WithLabelValues(r.Method, routePattern, status).Observe(duration)
	})
}

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordAnomalyDetected records a detected anomaly
func RecordAnomalyDetected(kind, severity string) {
	anomaliesDetectedTotal.WithLabelValues(kind, severity).Inc()
}

// RecordScannerFailure records an isolated scanner failure
func RecordScannerFailure(scanner string) {
	scannerFailuresTotal.WithLabelValues(scanner).Inc()
}

// RecordDetectionDuration records the duration of a per-project detection run
func RecordDetectionDuration(duration time.Duration) {
	detectionSweepDuration.Observe(duration.Seconds())
}

// RecordAlertDispatch records the aggregate outcome of one dispatch call
func RecordAlertDispatch(outcome string) {
	alertDispatchTotal.WithLabelValues(outcome).Inc()
}

// RecordChannelDelivery records a single channel delivery attempt
func RecordChannelDelivery(channel, status string) {
	channelDeliveryTotal.WithLabelValues(channel, status).Inc()
}
