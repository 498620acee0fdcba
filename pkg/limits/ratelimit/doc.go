// Package ratelimit implements per-client-IP admission control for the
// gateway using the token bucket algorithm.
//
// The token bucket was chosen over a fixed window because it admits bursty
// legitimate traffic smoothly: a client that was quiet can spend up to the
// burst capacity at once, while the sustained rate stays at the configured
// quota per window.
//
// Buckets are created lazily on a client's first request and evicted by a
// periodic sweep once the client has been idle longer than the configured
// TTL, so the table stays bounded under scanning or spoofed traffic.
package ratelimit
