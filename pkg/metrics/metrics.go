// Package metrics exposes delivery and queue counters as Prometheus
// collectors. A nil *Metrics records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "notifier"

// Metrics implements notification.Recorder and queue.Observer.
type Metrics struct {
	gatherer prometheus.Gatherer

	deliveries  *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	rateLimited *prometheus.CounterVec
	messages    *prometheus.CounterVec
	sweeps      prometheus.Counter
}

// New registers the collectors on reg. A nil reg uses a fresh registry,
// which keeps tests independent of the global default.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{
		gatherer: reg,
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_total",
			Help:      "Delivery attempts by channel and outcome.",
		}, []string{"channel", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "delivery_duration_seconds",
			Help:      "Provider send latency by channel.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"channel"}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Sends refused by the per-user rate limiter.",
		}, []string{"channel"}),
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queue_messages_total",
			Help:      "Consumed queue messages by final outcome.",
		}, []string{"queue", "outcome"}),
		sweeps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweeper_republished_total",
			Help:      "Pending notifications republished by the sweeper.",
		}),
	}
	reg.MustRegister(m.deliveries, m.latency, m.rateLimited, m.messages, m.sweeps)
	return m
}

// NewDefault registers on a registry that also carries the Go runtime and
// process collectors.
func NewDefault() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return New(reg)
}

func (m *Metrics) ObserveDelivery(channel, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.deliveries.WithLabelValues(channel, outcome).Inc()
	m.latency.WithLabelValues(channel).Observe(d.Seconds())
}

func (m *Metrics) IncRateLimited(channel string) {
	if m == nil {
		return
	}
	m.rateLimited.WithLabelValues(channel).Inc()
}

func (m *Metrics) ObserveMessage(queue, outcome string) {
	if m == nil {
		return
	}
	m.messages.WithLabelValues(queue, outcome).Inc()
}

// AddSwept counts notifications republished by one sweep.
func (m *Metrics) AddSwept(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.sweeps.Add(float64(n))
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
