// Package gateway routes inbound RPC and indexer requests to upstream
// providers, injecting the server-side credential so clients never see
// an API key.
//
// The route table is built once at startup from the configured provider
// keys and chain list. Requests to unregistered routes are rejected with
// 404 without touching any upstream. Forwarding strips hop-by-hop
// headers, caps request bodies, and maps upstream failures to 502 and
// timeouts to 504.
package gateway
