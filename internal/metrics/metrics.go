// Package metrics exposes the landing controller's operational counters
// and gauges as Prometheus metrics.
package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every landing-controller Prometheus metric.
type Metrics struct {
	// Control loop
	TicksTotal      *prometheus.CounterVec
	TickFailures    *prometheus.CounterVec
	TickDuration    prometheus.Histogram
	ActiveStage     *prometheus.GaugeVec
	StageTransitions *prometheus.CounterVec
	TouchdownsTotal prometheus.Counter

	// Vision
	DetectionsTotal *prometheus.CounterVec
	ConductorCacheSize prometheus.Gauge
	ConductorOptimistic prometheus.Gauge

	// Vehicle telemetry
	AltitudeAGL     prometheus.Gauge
	Airspeed        prometheus.Gauge
	VehicleArmed    prometheus.Gauge

	// HTTP (status API)
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// WebSocket (status API)
	WebSocketConnections prometheus.Gauge
	WebSocketMessages    *prometheus.CounterVec

	// MQTT publisher
	MQTTMessagesPublished *prometheus.CounterVec
	MQTTConnectionStatus  prometheus.Gauge
}

var (
	instance *Metrics
	once     sync.Once
)

// Get returns the process-wide Metrics instance, registering every metric
// with the default Prometheus registry on first use.
func Get() *Metrics {
	once.Do(func() {
		instance = newMetrics()
	})
	return instance
}

func newMetrics() *Metrics {
	m := &Metrics{}

	m.TicksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lander",
			Subsystem: "loop",
			Name:      "ticks_total",
			Help:      "Total control loop ticks, by active stage.",
		},
		[]string{"stage"},
	)

	m.TickFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lander",
			Subsystem: "loop",
			Name:      "tick_failures_total",
			Help:      "Total tick failures, by the stage active when they occurred.",
		},
		[]string{"stage"},
	)

	m.TickDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "lander",
			Subsystem: "loop",
			Name:      "tick_duration_seconds",
			Help:      "Wall time spent in one control loop tick.",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
	)

	m.ActiveStage = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "lander",
			Subsystem: "loop",
			Name:      "active_stage",
			Help:      "1 for the currently active landing stage, 0 for the others.",
		},
		[]string{"stage"},
	)

	m.StageTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lander",
			Subsystem: "loop",
			Name:      "stage_transitions_total",
			Help:      "Total stage transitions, by origin and destination stage.",
		},
		[]string{"from", "to"},
	)

	m.TouchdownsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "lander",
			Subsystem: "loop",
			Name:      "touchdowns_total",
			Help:      "Total completed landing cycles (Touchdown stage returning to Idle).",
		},
	)

	m.DetectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lander",
			Subsystem: "vision",
			Name:      "detections_total",
			Help:      "Total pad detections emitted by the detector, by pad type.",
		},
		[]string{"pad_type"},
	)

	m.ConductorCacheSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "lander",
			Subsystem: "vision",
			Name:      "conductor_cache_size",
			Help:      "Number of distinct blobbed detections currently tracked.",
		},
	)

	m.ConductorOptimistic = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "lander",
			Subsystem: "vision",
			Name:      "conductor_optimistic",
			Help:      "1 if the conductor has become optimistic (ignoring pad type), else 0.",
		},
	)

	m.AltitudeAGL = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "lander",
			Subsystem: "vehicle",
			Name:      "altitude_agl_meters",
			Help:      "Current best estimate of altitude above ground level.",
		},
	)

	m.Airspeed = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "lander",
			Subsystem: "vehicle",
			Name:      "airspeed_mps",
			Help:      "Current reported airspeed.",
		},
	)

	m.VehicleArmed = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "lander",
			Subsystem: "vehicle",
			Name:      "armed",
			Help:      "1 if the vehicle is armed, else 0.",
		},
	)

	m.HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lander",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total status API HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	m.HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "lander",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Status API HTTP request duration.",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	m.WebSocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "lander",
			Subsystem: "websocket",
			Name:      "connections_active",
			Help:      "Number of active status API WebSocket connections.",
		},
	)

	m.WebSocketMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lander",
			Subsystem: "websocket",
			Name:      "messages_total",
			Help:      "Total status API WebSocket messages sent.",
		},
		[]string{"type"},
	)

	m.MQTTMessagesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lander",
			Subsystem: "mqtt",
			Name:      "messages_published_total",
			Help:      "Total landing-cycle lifecycle events published over MQTT.",
		},
		[]string{"event"},
	)

	m.MQTTConnectionStatus = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "lander",
			Subsystem: "mqtt",
			Name:      "connection_status",
			Help:      "1 if connected to the MQTT broker, else 0.",
		},
	)

	return m
}

// Handler returns the Prometheus scrape handler for /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// HTTPMiddleware wraps an HTTP handler with request count and duration
// instrumentation.
func HTTPMiddleware(next http.Handler) http.Handler {
	m := Get()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start).Seconds()
		m.HTTPRequestsTotal.WithLabelValues(r.Method, r.URL.Path, statusToStr(wrapped.status)).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(duration)
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (w *responseWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("hijacker not supported")
	}
	return hijacker.Hijack()
}

func (w *responseWriter) Flush() {
	if flusher, ok := w.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusToStr(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	default:
		return "other"
	}
}
