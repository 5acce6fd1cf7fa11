// Package poolmetrics exposes Prometheus instrumentation for pool.Pool:
// acquire/release counts, wait-time histograms, and retry-attempt counts.
package poolmetrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector is the set of metrics a pool.Pool reports through.
type Collector struct {
	acquiresTotal     *prometheus.CounterVec
	releasesTotal     prometheus.Counter
	waitSeconds       prometheus.Histogram
	inUse             prometheus.Gauge
	available         prometheus.Gauge
	staleDiscardTotal prometheus.Counter
	retryAttemptTotal *prometheus.CounterVec
}

// New creates a Collector with all metrics registered against reg.
func New(reg prometheus.Registerer, namespace string) *Collector {
	c := &Collector{
		acquiresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pool_acquires_total",
			Help:      "Total number of pool acquisitions by outcome.",
		}, []string{"outcome"}),
		releasesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pool_releases_total",
			Help:      "Total number of connections released back to the pool.",
		}),
		waitSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pool_acquire_wait_seconds",
			Help:      "Time spent waiting in the FIFO queue for a connection.",
			Buckets:   prometheus.DefBuckets,
		}),
		inUse: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pool_connections_in_use",
			Help:      "Number of connections currently checked out.",
		}),
		available: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pool_connections_available",
			Help:      "Number of idle connections available for reuse.",
		}),
		staleDiscardTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pool_stale_discards_total",
			Help:      "Total number of idle connections discarded as stale on acquire.",
		}),
		retryAttemptTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pool_retry_attempts_total",
			Help:      "Total number of retry attempts by classification.",
		}, []string{"classification"}),
	}

	reg.MustRegister(
		c.acquiresTotal,
		c.releasesTotal,
		c.waitSeconds,
		c.inUse,
		c.available,
		c.staleDiscardTotal,
		c.retryAttemptTotal,
	)
	return c
}

// AcquireSucceeded records a successful acquisition and the time spent
// waiting for it (0 if satisfied immediately).
func (c *Collector) AcquireSucceeded(wait time.Duration) {
	c.acquiresTotal.WithLabelValues("success").Inc()
	c.waitSeconds.Observe(wait.Seconds())
}

// AcquireFailed records a failed acquisition (pool closed or exhausted).
func (c *Collector) AcquireFailed(reason string) {
	c.acquiresTotal.WithLabelValues(reason).Inc()
}

// Released records a connection returning to the idle pool.
func (c *Collector) Released() { c.releasesTotal.Inc() }

// StaleDiscarded records an idle connection discarded on acquire because
// it failed the staleness check.
func (c *Collector) StaleDiscarded() { c.staleDiscardTotal.Inc() }

// SetInUse reports the current number of checked-out connections.
func (c *Collector) SetInUse(n int) { c.inUse.Set(float64(n)) }

// SetAvailable reports the current number of idle connections.
func (c *Collector) SetAvailable(n int) { c.available.Set(float64(n)) }

// RetryAttempt records a retry attempt with its error classification
// ("transient", "permanent", "requires-reconnection").
func (c *Collector) RetryAttempt(classification string) {
	c.retryAttemptTotal.WithLabelValues(classification).Inc()
}
