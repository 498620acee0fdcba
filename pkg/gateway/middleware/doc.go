// Package middleware provides the HTTP middleware chain for the
// gateway: panic recovery, request IDs, structured request logging,
// metrics instrumentation, host filtering, CORS, rate limiting, and
// the scrape-endpoint network guard.
package middleware
