// Zenogate is an edge gateway that terminates TLS for a public domain
// and fronts blockchain RPC and indexer providers.
//
// It provides:
//   - Automated certificate issuance and renewal via ACME HTTP-01
//   - Reverse proxying with server-side credential injection
//   - Per-client-IP rate limiting
//   - A cached exchange-rate endpoint
//   - Prometheus metrics and health probes
//
// Usage:
//
//	# Start with default configuration
//	zenogate run
//
//	# Start with a custom configuration file
//	zenogate run --config /etc/zenogate/config.yaml
//
//	# Show version information
//	zenogate version
package main

func main() {
	Execute()
}
