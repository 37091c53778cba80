// Package metrics exposes Prometheus collectors for the fetch loop and the
// result cache.
package metrics

import (
	"github.com/mosaicnetworks/peerfetch/src/cache"
	"github.com/mosaicnetworks/peerfetch/src/fetch"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "peerfetch"

// Metrics holds the collectors of one session, registered on their own
// registry.
type Metrics struct {
	Registry *prometheus.Registry

	transitions *prometheus.CounterVec
	results     *prometheus.CounterVec
	attempts    prometheus.Histogram
	cacheGets   *prometheus.CounterVec
}

// NewMetrics creates and registers the collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),

		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "fetch",
				Name:      "transitions_total",
				Help:      "Transitions taken by the fetch state machine",
			},
			[]string{"transition"},
		),

		results: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "fetch",
				Name:      "results_total",
				Help:      "Completed fetches by query and final state",
			},
			[]string{"query", "state"},
		),

		attempts: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "fetch",
				Name:      "attempts",
				Help:      "Attempts used by completed fetches",
				Buckets:   prometheus.LinearBuckets(1, 1, 10),
			},
		),

		cacheGets: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "cache",
				Name:      "gets_total",
				Help:      "Cache lookups by key and result",
			},
			[]string{"key", "result"},
		),
	}

	m.Registry.MustRegister(m.transitions, m.results, m.attempts, m.cacheGets)

	return m
}

// Instrument subscribes to the transitions of f.
func (m *Metrics) Instrument(f *fetch.Fetcher) {
	f.OnTransition(m.ObserveTransition)
}

// ObserveTransition records one state machine transition.
func (m *Metrics) ObserveTransition(ev fetch.Event) {
	m.transitions.WithLabelValues(ev.Transition.String()).Inc()

	switch ev.To {
	case fetch.Succeeded, fetch.Exhausted:
		m.results.WithLabelValues(ev.Query, ev.To.String()).Inc()
		m.attempts.Observe(float64(ev.Attempt))
	}
}

// InstrumentCache wraps c so that lookups are counted.
func (m *Metrics) InstrumentCache(c cache.Cache) cache.Cache {
	return &instrumentedCache{Cache: c, gets: m.cacheGets}
}

type instrumentedCache struct {
	cache.Cache
	gets *prometheus.CounterVec
}

func (c *instrumentedCache) Get(key string) ([]byte, bool) {
	v, ok := c.Cache.Get(key)
	if ok {
		c.gets.WithLabelValues(key, "hit").Inc()
	} else {
		c.gets.WithLabelValues(key, "miss").Inc()
	}
	return v, ok
}
