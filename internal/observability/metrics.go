package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the prometheus collectors for the HTTP and realtime layers.
type Metrics struct {
	Registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	httpErrors   *prometheus.CounterVec

	wsConnections prometheus.Gauge
	wsEmitted     *prometheus.CounterVec
	wsDropped     prometheus.Counter
	wsDenied      *prometheus.CounterVec
	wsRejected    prometheus.Counter
}

// NewMetrics registers collectors on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "support_desk_http_requests_total",
			Help: "HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "support_desk_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
		httpErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "support_desk_http_errors_total",
			Help: "HTTP errors by route and error code.",
		}, []string{"route", "method", "code"}),
		wsConnections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "support_desk_ws_connections",
			Help: "Open realtime connections.",
		}),
		wsEmitted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "support_desk_ws_frames_emitted_total",
			Help: "Frames delivered to realtime connections by event.",
		}, []string{"event"}),
		wsDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "support_desk_ws_slow_consumers_total",
			Help: "Connections dropped because their send buffer was full.",
		}),
		wsDenied: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "support_desk_ws_denied_total",
			Help: "Realtime actions refused by authorization.",
		}, []string{"event"}),
		wsRejected: factory.NewCounter(prometheus.CounterOpts{
			Name: "support_desk_ws_auth_rejected_total",
			Help: "Realtime handshakes that failed verification.",
		}),
	}
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(route, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(route, method).Observe(duration.Seconds())
}

// RecordError increments error counters.
func (m *Metrics) RecordError(route, method, code string) {
	if m == nil {
		return
	}
	m.httpErrors.WithLabelValues(route, method, code).Inc()
}

func (m *Metrics) ConnectionOpened() {
	if m != nil {
		m.wsConnections.Inc()
	}
}

func (m *Metrics) ConnectionClosed() {
	if m != nil {
		m.wsConnections.Dec()
	}
}

func (m *Metrics) FrameEmitted(event string) {
	if m != nil {
		m.wsEmitted.WithLabelValues(event).Inc()
	}
}

func (m *Metrics) SlowConsumerDropped() {
	if m != nil {
		m.wsDropped.Inc()
	}
}

func (m *Metrics) ActionDenied(event string) {
	if m != nil {
		m.wsDenied.WithLabelValues(event).Inc()
	}
}

func (m *Metrics) HandshakeRejected() {
	if m != nil {
		m.wsRejected.Inc()
	}
}
