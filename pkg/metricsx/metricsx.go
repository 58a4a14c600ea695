// Package metricsx exposes Prometheus metrics for token exchanges and API
// calls. A nil *Collector is valid and records nothing.
package metricsx

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Exchange results.
const (
	ResultSuccess  = "success"
	ResultRejected = "rejected"
	ResultNetwork  = "network_failure"
	ResultPoisoned = "poisoned"
)

// Collector is safe for concurrent use.
type Collector struct {
	exchangesTotal   *prometheus.CounterVec
	exchangeDuration prometheus.Histogram
	tokenExpiry      prometheus.Gauge

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	inFlight        prometheus.Gauge
}

// NewCollector registers the delegate_* metrics on reg. Pass
// prometheus.NewRegistry() in tests to avoid duplicate registration panics.
func NewCollector(reg prometheus.Registerer) *Collector {
	f := promauto.With(reg)

	return &Collector{
		exchangesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "delegate_token_exchanges_total",
				Help: "Token exchanges attempted against the identity provider, by result",
			},
			[]string{"result"},
		),
		exchangeDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "delegate_token_exchange_duration_seconds",
			Help:    "Duration of token exchange round trips",
			Buckets: prometheus.DefBuckets,
		}),
		tokenExpiry: f.NewGauge(prometheus.GaugeOpts{
			Name: "delegate_token_expiry_timestamp_seconds",
			Help: "Unix time at which the cached access token expires",
		}),
		requestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "delegate_api_requests_total",
				Help: "API calls issued, by method and status code (0 for transport failures)",
			},
			[]string{"method", "status_code"},
		),
		requestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "delegate_api_request_duration_seconds",
				Help:    "Duration of API calls in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		inFlight: f.NewGauge(prometheus.GaugeOpts{
			Name: "delegate_api_requests_in_flight",
			Help: "API calls currently waiting on the network",
		}),
	}
}

// RecordExchange counts one exchange outcome. d is ignored for results that
// never reached the network.
func (c *Collector) RecordExchange(result string, d time.Duration) {
	if c == nil {
		return
	}
	c.exchangesTotal.WithLabelValues(result).Inc()
	if result != ResultPoisoned {
		c.exchangeDuration.Observe(d.Seconds())
	}
}

// RecordTokenExpiry publishes the expiry of the freshly cached token.
func (c *Collector) RecordTokenExpiry(at time.Time) {
	if c == nil {
		return
	}
	c.tokenExpiry.Set(float64(at.Unix()))
}

// StartRequest marks an API call in flight and returns the function that
// finishes it with the final status (0 when no response arrived).
func (c *Collector) StartRequest(method string) func(status int) {
	if c == nil {
		return func(int) {}
	}

	start := time.Now()
	c.inFlight.Inc()

	return func(status int) {
		c.inFlight.Dec()
		c.requestsTotal.WithLabelValues(method, strconv.Itoa(status)).Inc()
		c.requestDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
	}
}
