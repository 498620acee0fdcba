// Package health provides the gateway's probe endpoints.
//
// /health is a bare liveness probe answering "OK" whenever the process
// is serving. /ready aggregates registered component checks (certificate
// validity, forex snapshot presence, route table sanity) and returns 503
// while any of them fails, so load balancers hold traffic until the
// gateway can actually serve it. /version reports build information.
package health
