package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace prefixes every metric name.
const Namespace = "gameads"

// Metrics holds all Prometheus metrics for the ad service. Each instance
// owns its registry.
type Metrics struct {
	registry *prometheus.Registry

	// Engagement metrics
	Impressions     *prometheus.CounterVec
	Clicks          *prometheus.CounterVec
	EventRejections *prometheus.CounterVec

	// Store metrics
	StoreOpDuration *prometheus.HistogramVec
	StoreErrors     *prometheus.CounterVec
	Ads             *prometheus.GaugeVec

	// HTTP metrics
	HTTPRequests  *prometheus.CounterVec
	RateLimitHits *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		Impressions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "impressions_total",
				Help:      "Impression events recorded",
			},
			[]string{"ad_type"},
		),
		Clicks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "clicks_total",
				Help:      "Click events recorded",
			},
			[]string{"ad_type"},
		),
		EventRejections: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "event_rejections_total",
				Help:      "Events rejected before reaching the store",
			},
			[]string{"reason"},
		),

		StoreOpDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "store_op_duration_seconds",
				Help:      "Latency of store operations",
				Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"backend", "op"},
		),
		StoreErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "store_errors_total",
				Help:      "Store operations that failed",
			},
			[]string{"backend", "op"},
		),
		Ads: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Name:      "ads",
				Help:      "Ads per collection as of the last snapshot",
			},
			[]string{"ad_type"},
		),

		HTTPRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "http_requests_total",
				Help:      "HTTP requests served",
			},
			[]string{"method", "route", "status"},
		),
		RateLimitHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "rate_limit_hits_total",
				Help:      "Rate limit rejections",
			},
			[]string{"endpoint"},
		),
	}
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the Prometheus metrics HTTP handler for this instance.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RecordEvent records an accepted impression or click.
func (m *Metrics) RecordEvent(adType, kind string) {
	switch kind {
	case "impression":
		m.Impressions.WithLabelValues(adType).Inc()
	case "click":
		m.Clicks.WithLabelValues(adType).Inc()
	}
}

// RecordEventRejection records an event refused by validation.
func (m *Metrics) RecordEventRejection(reason string) {
	m.EventRejections.WithLabelValues(reason).Inc()
}

// RecordStoreOp records the latency and outcome of one store call.
func (m *Metrics) RecordStoreOp(backend, op string, latency time.Duration, err error) {
	m.StoreOpDuration.WithLabelValues(backend, op).Observe(latency.Seconds())
	if err != nil {
		m.StoreErrors.WithLabelValues(backend, op).Inc()
	}
}

// SetAdCount updates the ads gauge for one collection.
func (m *Metrics) SetAdCount(adType string, n int) {
	m.Ads.WithLabelValues(adType).Set(float64(n))
}

// RecordHTTPRequest records a served request by route pattern.
func (m *Metrics) RecordHTTPRequest(method, route string, status int) {
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
}

// RecordRateLimitHit records a rate limit hit.
func (m *Metrics) RecordRateLimitHit(endpoint string) {
	m.RateLimitHits.WithLabelValues(endpoint).Inc()
}
