package middleware

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
)

// MetricsGuard restricts /metrics to the allowed networks. With no
// CIDRs configured only loopback may scrape. Other paths pass through.
func MetricsGuard(allowedCIDRs []string) (func(http.Handler) http.Handler, error) {
	var networks []*net.IPNet
	for _, cidr := range allowedCIDRs {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			return nil, fmt.Errorf("parsing metrics allow-list entry %q: %w", cidr, err)
		}
		networks = append(networks, network)
	}

	allowed := func(ip net.IP) bool {
		if len(networks) == 0 {
			return ip.IsLoopback()
		}
		for _, n := range networks {
			if n.Contains(ip) {
				return true
			}
		}
		return false
	}

	mw := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/metrics" {
				next.ServeHTTP(w, r)
				return
			}

			// The socket address, not forwarding headers: the guard
			// protects against external scrapes and headers are
			// client-controlled.
			host, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				host = r.RemoteAddr
			}
			ip := net.ParseIP(host)
			if ip == nil || !allowed(ip) {
				slog.WarnContext(r.Context(), "blocked metrics scrape",
					"remote_addr", r.RemoteAddr,
				)
				http.Error(w, "Access to metrics endpoint forbidden", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}

	return mw, nil
}
