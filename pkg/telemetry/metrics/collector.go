// Package metrics owns the process-wide Prometheus registry and the gateway's
// metric series. The Collector is constructed once at startup and injected
// into whatever needs to record; nothing in this package is an ambient
// singleton, so tests can build their own registry.
package metrics

import (
	"zeno-hq/gateway/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector owns the Prometheus registry and all registered series.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	gateway *GatewayMetrics
}

// NewCollector creates a collector with the specified configuration and
// registry. If registry is nil, a fresh one is created.
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	if len(cfg.DurationBuckets) == 0 {
		cfg.DurationBuckets = prometheus.DefBuckets
	}

	return &Collector{
		config:   cfg,
		registry: registry,
		gateway:  NewGatewayMetrics(cfg, registry),
	}
}

// Gateway returns the request/route metric series.
func (c *Collector) Gateway() *GatewayMetrics {
	return c.gateway
}

// Registry returns the underlying registry, for scrape handlers and tests.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}
