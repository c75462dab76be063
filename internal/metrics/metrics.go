package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics exposes application metrics that are safe to scrape via Prometheus.
type Metrics struct {
	registry            *prometheus.Registry
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	advertisements      prometheus.Counter
	malformedLines      prometheus.Counter
	continuityMessages  *prometheus.CounterVec
	sessionDevices      prometheus.Gauge
}

// New creates a fresh Metrics registry with HTTP and scan metrics registered.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	httpRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "blewatch",
		Name:      "http_requests_total",
		Help:      "Count of HTTP requests processed",
	}, []string{"method", "path", "status"})

	httpRequestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "blewatch",
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests served",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	advertisements := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "blewatch",
		Name:      "advertisements_total",
		Help:      "Total number of advertisements classified",
	})

	malformedLines := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "blewatch",
		Name:      "malformed_capture_lines_total",
		Help:      "Capture dump lines that could not be parsed",
	})

	continuityMessages := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "blewatch",
		Name:      "continuity_messages_total",
		Help:      "Decoded continuity sub-messages by type label",
	}, []string{"type"})

	sessionDevices := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "blewatch",
		Name:      "session_devices",
		Help:      "Distinct device addresses seen in the current scan session",
	})

	registry.MustRegister(
		httpRequests,
		httpRequestDuration,
		advertisements,
		malformedLines,
		continuityMessages,
		sessionDevices,
	)

	return &Metrics{
		registry:            registry,
		httpRequests:        httpRequests,
		httpRequestDuration: httpRequestDuration,
		advertisements:      advertisements,
		malformedLines:      malformedLines,
		continuityMessages:  continuityMessages,
		sessionDevices:      sessionDevices,
	}
}

// ObserveHTTPRequest records a single HTTP request/response cycle.
func (m *Metrics) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labels := prometheus.Labels{
		"method": method,
		"path":   path,
		"status": strconv.Itoa(status),
	}
	m.httpRequests.With(labels).Inc()
	m.httpRequestDuration.With(labels).Observe(duration.Seconds())
}

// IncAdvertisement counts one classified advertisement.
func (m *Metrics) IncAdvertisement() {
	if m == nil {
		return
	}
	m.advertisements.Inc()
}

// IncMalformedLine counts one unparseable capture line.
func (m *Metrics) IncMalformedLine() {
	if m == nil {
		return
	}
	m.malformedLines.Inc()
}

// IncContinuityMessage counts one decoded sub-message by type label.
func (m *Metrics) IncContinuityMessage(typeLabel string) {
	if m == nil {
		return
	}
	m.continuityMessages.WithLabelValues(typeLabel).Inc()
}

// SetSessionDevices tracks the distinct device count of the session.
func (m *Metrics) SetSessionDevices(n int) {
	if m == nil {
		return
	}
	m.sessionDevices.Set(float64(n))
}

// Handler exposes the Prometheus registry over HTTP.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("metrics unavailable"))
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
