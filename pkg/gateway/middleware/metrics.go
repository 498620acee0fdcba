package middleware

import (
	"net/http"
	"time"

	"zeno-hq/gateway/pkg/telemetry/metrics"
)

// Metrics records per-request counters, latency histograms, and the
// in-flight gauge.
func Metrics(gm *metrics.GatewayMetrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gm.ConnOpened()
			defer gm.ConnClosed()

			start := time.Now()
			next.ServeHTTP(w, r)

			gm.RecordRequest(metrics.ClassifyPath(r.URL.Path), time.Since(start))
		})
	}
}
