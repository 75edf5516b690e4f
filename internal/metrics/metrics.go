// Package metrics collects and exposes Prometheus metrics for the service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collector registers and records the service's operational metrics.
type Collector struct {
	operations  *prometheus.CounterVec
	opErrors    *prometheus.CounterVec
	cacheHits   prometheus.Counter
	cacheMisses prometheus.Counter
}

// NewCollector creates a Collector and registers its metrics on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "karaoke_operations_total",
			Help: "Accepted operations by name",
		}, []string{"operation"}),
		opErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "karaoke_operation_errors_total",
			Help: "Rejected operations by name and error kind",
		}, []string{"operation", "kind"}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "karaoke_search_cache_hits_total",
			Help: "Search cache hits",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "karaoke_search_cache_misses_total",
			Help: "Search cache misses",
		}),
	}
	reg.MustRegister(c.operations, c.opErrors, c.cacheHits, c.cacheMisses)
	return c
}

func (c *Collector) RecordOperation(op string) {
	c.operations.WithLabelValues(op).Inc()
}

func (c *Collector) RecordOperationError(op, kind string) {
	c.opErrors.WithLabelValues(op, kind).Inc()
}

func (c *Collector) RecordCacheHit()  { c.cacheHits.Inc() }
func (c *Collector) RecordCacheMiss() { c.cacheMisses.Inc() }
