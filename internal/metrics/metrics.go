package metrics

import (
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is the process-wide counter state. It is created once at startup and
// handed to every component that increments or reads it. Counters only grow.
type Metrics struct {
	registry            *prometheus.Registry
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	packetsCaptured     atomic.Uint64
	eventsDropped       atomic.Uint64
	notificationsSent   atomic.Uint64
	notificationsFailed atomic.Uint64
}

// New creates a fresh Metrics registry with HTTP and pipeline metrics registered.
func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "foxd",
		Name:      "http_requests_total",
		Help:      "Count of HTTP requests processed by foxd",
	}, []string{"method", "path", "status"})

	m.httpRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "foxd",
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests served by foxd",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	counter := func(name, help string, v *atomic.Uint64) prometheus.CounterFunc {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: "foxd",
			Name:      name,
			Help:      help,
		}, func() float64 { return float64(v.Load()) })
	}

	m.registry.MustRegister(
		m.httpRequests,
		m.httpRequestDuration,
		counter("packets_captured_total", "Frames read from the capture interface", &m.packetsCaptured),
		counter("events_dropped_total", "Network events rejected because the event queue was full", &m.eventsDropped),
		counter("notifications_sent_total", "Notifications delivered successfully", &m.notificationsSent),
		counter("notifications_failed_total", "Notification delivery attempts that failed", &m.notificationsFailed),
	)

	return m
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

func (m *Metrics) IncPacketsCaptured() {
	if m == nil {
		return
	}
	m.packetsCaptured.Add(1)
}

func (m *Metrics) IncEventsDropped() {
	if m == nil {
		return
	}
	m.eventsDropped.Add(1)
}

func (m *Metrics) IncNotificationsSent() {
	if m == nil {
		return
	}
	m.notificationsSent.Add(1)
}

func (m *Metrics) IncNotificationsFailed() {
	if m == nil {
		return
	}
	m.notificationsFailed.Add(1)
}

func (m *Metrics) PacketsCaptured() uint64 {
	if m == nil {
		return 0
	}
	return m.packetsCaptured.Load()
}

func (m *Metrics) EventsDropped() uint64 {
	if m == nil {
		return 0
	}
	return m.eventsDropped.Load()
}

func (m *Metrics) NotificationsSent() uint64 {
	if m == nil {
		return 0
	}
	return m.notificationsSent.Load()
}

func (m *Metrics) NotificationsFailed() uint64 {
	if m == nil {
		return 0
	}
	return m.notificationsFailed.Load()
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
