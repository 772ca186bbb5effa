package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	clierr "github.com/ggonzalez94/swapper/internal/errors"
)

// Metrics holds the Prometheus collectors for provider traffic. Each instance
// owns its registry so tests can build isolated sets.
type Metrics struct {
	registry        *prometheus.Registry
	calls           *prometheus.CounterVec
	callDuration    *prometheus.HistogramVec
	upstream        *prometheus.CounterVec
	inboundRequests *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		calls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "swapper_provider_calls_total",
				Help: "Dispatched provider operations by provider, operation and outcome.",
			},
			[]string{"provider", "operation", "outcome"},
		),
		callDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "swapper_provider_call_duration_seconds",
				Help:    "Latency of dispatched provider operations.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"provider", "operation"},
		),
		upstream: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "swapper_upstream_responses_total",
				Help: "Outbound provider HTTP responses by host and status code.",
			},
			[]string{"host", "status"},
		),
		inboundRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "swapper_http_requests_total",
				Help: "Inbound API requests by route and response status.",
			},
			[]string{"route", "status"},
		),
	}
	m.registry.MustRegister(m.calls, m.callDuration, m.upstream, m.inboundRequests)
	return m
}

var defaultMetrics = NewMetrics()

// DefaultMetrics is the process-wide set served on /metrics.
func DefaultMetrics() *Metrics {
	return defaultMetrics
}

func (m *Metrics) ObserveCall(provider, operation string, err error, d time.Duration) {
	if m == nil {
		return
	}
	m.calls.WithLabelValues(provider, operation, clierr.TypeOf(err)).Inc()
	m.callDuration.WithLabelValues(provider, operation).Observe(d.Seconds())
}

func (m *Metrics) ObserveUpstream(host string, status int) {
	if m == nil {
		return
	}
	m.upstream.WithLabelValues(host, strconv.Itoa(status)).Inc()
}

func (m *Metrics) ObserveInbound(route string, status int) {
	if m == nil {
		return
	}
	m.inboundRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
