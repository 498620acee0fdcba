package metrics

import (
	"time"

	"zeno-hq/gateway/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// GatewayMetrics tracks the gateway's request and background-task series.
//
// Series:
//   - http_requests_total: every request handled, regardless of route
//   - http_request_duration_seconds: end-to-end latency histogram
//   - rpc_requests_total / rpc_request_duration_seconds: /rpc/ proxied calls
//   - indexer_requests_total / indexer_request_duration_seconds: /indexer/ calls
//   - upstream_errors_total: failed forwards by backend and kind
//   - rate_limit_hits_total: requests rejected with 429
//   - forex_updates_total / forex_fetch_errors_total: refresher outcomes
//   - acme_renewals_total: certificate order attempts by result
//   - active_connections: requests currently in flight
type GatewayMetrics struct {
	httpRequestsTotal   prometheus.Counter
	httpRequestDuration prometheus.Histogram

	rpcRequestsTotal   prometheus.Counter
	rpcRequestDuration prometheus.Histogram

	indexerRequestsTotal   prometheus.Counter
	indexerRequestDuration prometheus.Histogram

	upstreamErrorsTotal *prometheus.CounterVec
	rateLimitHitsTotal  prometheus.Counter

	forexUpdatesTotal     prometheus.Counter
	forexFetchErrorsTotal prometheus.Counter

	acmeRenewalsTotal *prometheus.CounterVec

	activeConnections prometheus.Gauge
}

// NewGatewayMetrics creates and registers the gateway series with the
// provided registry.
func NewGatewayMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *GatewayMetrics {
	gm := &GatewayMetrics{
		httpRequestsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}),
		httpRequestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   cfg.DurationBuckets,
		}),
		rpcRequestsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "rpc_requests_total",
			Help:      "Total number of RPC requests",
		}),
		rpcRequestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Name:      "rpc_request_duration_seconds",
			Help:      "RPC request duration in seconds",
			Buckets:   cfg.DurationBuckets,
		}),
		indexerRequestsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "indexer_requests_total",
			Help:      "Total number of indexer requests",
		}),
		indexerRequestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Name:      "indexer_request_duration_seconds",
			Help:      "Indexer request duration in seconds",
			Buckets:   cfg.DurationBuckets,
		}),
		upstreamErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "upstream_errors_total",
			Help:      "Total number of failed upstream forwards",
		}, []string{"backend", "kind"}),
		rateLimitHitsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "rate_limit_hits_total",
			Help:      "Total number of rate limit hits",
		}),
		forexUpdatesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "forex_updates_total",
			Help:      "Total number of forex data updates",
		}),
		forexFetchErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "forex_fetch_errors_total",
			Help:      "Total number of failed forex fetches",
		}),
		acmeRenewalsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "acme_renewals_total",
			Help:      "Total number of ACME certificate orders by result",
		}, []string{"result"}),
		activeConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Name:      "active_connections",
			Help:      "Number of requests currently in flight",
		}),
	}

	registry.MustRegister(
		gm.httpRequestsTotal,
		gm.httpRequestDuration,
		gm.rpcRequestsTotal,
		gm.rpcRequestDuration,
		gm.indexerRequestsTotal,
		gm.indexerRequestDuration,
		gm.upstreamErrorsTotal,
		gm.rateLimitHitsTotal,
		gm.forexUpdatesTotal,
		gm.forexFetchErrorsTotal,
		gm.acmeRenewalsTotal,
		gm.activeConnections,
	)

	return gm
}

// RouteClass identifies the metric family a proxied request belongs to.
type RouteClass int

const (
	// RouteOther covers everything that is not proxied (forex, health, 404s).
	RouteOther RouteClass = iota
	// RouteRPC covers /rpc/ requests.
	RouteRPC
	// RouteIndexer covers /indexer/ requests.
	RouteIndexer
)

// ClassifyPath maps a request path to its route class.
func ClassifyPath(path string) RouteClass {
	switch {
	case len(path) >= 5 && path[:5] == "/rpc/":
		return RouteRPC
	case len(path) >= 8 && path[:8] == "/indexer":
		return RouteIndexer
	default:
		return RouteOther
	}
}

// RecordRequest records a completed request. The generic series is always
// incremented; the RPC/indexer series additionally when the class matches.
func (gm *GatewayMetrics) RecordRequest(class RouteClass, duration time.Duration) {
	gm.httpRequestsTotal.Inc()
	gm.httpRequestDuration.Observe(duration.Seconds())

	switch class {
	case RouteRPC:
		gm.rpcRequestsTotal.Inc()
		gm.rpcRequestDuration.Observe(duration.Seconds())
	case RouteIndexer:
		gm.indexerRequestsTotal.Inc()
		gm.indexerRequestDuration.Observe(duration.Seconds())
	}
}

// RecordUpstreamError counts a failed forward. kind is "timeout" or "connect".
func (gm *GatewayMetrics) RecordUpstreamError(backend, kind string) {
	gm.upstreamErrorsTotal.WithLabelValues(backend, kind).Inc()
}

// RecordRateLimitHit counts a request rejected by the rate limiter.
func (gm *GatewayMetrics) RecordRateLimitHit() {
	gm.rateLimitHitsTotal.Inc()
}

// RecordForexUpdate counts a successful snapshot refresh.
func (gm *GatewayMetrics) RecordForexUpdate() {
	gm.forexUpdatesTotal.Inc()
}

// RecordForexFetchError counts a failed snapshot refresh.
func (gm *GatewayMetrics) RecordForexFetchError() {
	gm.forexFetchErrorsTotal.Inc()
}

// RecordACMERenewal counts a certificate order attempt.
// result is "success" or "failure".
func (gm *GatewayMetrics) RecordACMERenewal(result string) {
	gm.acmeRenewalsTotal.WithLabelValues(result).Inc()
}

// RPCRequests exposes the RPC request counter for direct reads in
// tests.
func (gm *GatewayMetrics) RPCRequests() prometheus.Counter {
	return gm.rpcRequestsTotal
}

// ConnOpened and ConnClosed track the in-flight request gauge.
func (gm *GatewayMetrics) ConnOpened() { gm.activeConnections.Inc() }

// ConnClosed decrements the in-flight request gauge.
func (gm *GatewayMetrics) ConnClosed() { gm.activeConnections.Dec() }
