package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"zeno-hq/gateway/pkg/limits/ratelimit"
)

// Hits receives rejected-request counts, satisfied by the metrics
// collector.
type Hits interface {
	RecordRateLimitHit()
}

// exemptPaths are never rate limited: operational endpoints and the
// ACME challenge path, which the CA must always reach.
var exemptPaths = []string{
	"/health",
	"/ready",
	"/version",
	"/metrics",
	"/.well-known/acme-challenge/",
}

func isExempt(path string) bool {
	for _, p := range exemptPaths {
		if strings.HasSuffix(p, "/") {
			if strings.HasPrefix(path, p) {
				return true
			}
			continue
		}
		if path == p {
			return true
		}
	}
	return false
}

// RateLimit admits or rejects requests per client IP. Rejections get
// 429 with a Retry-After hint. metrics may be nil.
func RateLimit(limiter *ratelimit.IPLimiter, metrics Hits) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isExempt(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			decision := limiter.Admit(GetClientIP(r.Context()))
			if !decision.Allowed {
				if metrics != nil {
					metrics.RecordRateLimitHit()
				}

				seconds := int(decision.RetryAfter.Seconds())
				if seconds < 1 {
					seconds = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(seconds))
				http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
