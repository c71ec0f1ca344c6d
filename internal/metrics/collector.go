package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	tetherhttp "github.com/wesleyorama2/tether/internal/http"
)

// Collector records client outcomes as Prometheus metrics. It implements
// tetherhttp.Observer.
type Collector struct {
	registry *prometheus.Registry

	AttemptFailures *prometheus.CounterVec
	Requests        *prometheus.CounterVec
	Attempts        prometheus.Histogram
	Duration        *prometheus.HistogramVec
}

var _ tetherhttp.Observer = (*Collector)(nil)

// NewCollector registers the client metrics on a fresh registry.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,
		AttemptFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tether_http_attempt_failures_total",
				Help: "Failed attempts by error kind",
			},
			[]string{"method", "host", "kind"},
		),
		Requests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tether_http_requests_total",
				Help: "Completed requests by outcome",
			},
			[]string{"method", "host", "outcome"},
		),
		Attempts: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "tether_http_request_attempts",
				Help:    "Attempts used per request",
				Buckets: []float64{0, 1, 2, 3, 5, 8},
			},
		),
		Duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tether_http_request_duration_seconds",
				Help:    "Request duration in seconds, retries and backoff included",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"method", "host"},
		),
	}
}

// AttemptFailed implements tetherhttp.Observer.
func (c *Collector) AttemptFailed(method, host string, kind tetherhttp.Kind) {
	c.AttemptFailures.WithLabelValues(method, host, kind.String()).Inc()
}

// RequestDone implements tetherhttp.Observer.
func (c *Collector) RequestDone(method, host string, status int, success bool, attempts int, elapsed time.Duration) {
	c.Requests.WithLabelValues(method, host, outcome(status, success)).Inc()
	c.Attempts.Observe(float64(attempts))
	c.Duration.WithLabelValues(method, host).Observe(elapsed.Seconds())
}

// Registry exposes the collector's registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the collected metrics in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// outcome is "ok" on success, the status class ("4xx", "5xx") when a
// response was received, and "error" otherwise.
func outcome(status int, success bool) string {
	switch {
	case success:
		return "ok"
	case status > 0:
		return strconv.Itoa(status/100) + "xx"
	default:
		return "error"
	}
}
