package middleware

import (
	"log/slog"
	"net"
	"net/http"
)

// HostFilter rejects requests whose Host header is not in the allow
// list. A missing Host is a 400; a foreign one is a 403. An empty allow
// list disables the filter.
func HostFilter(allowedHosts []string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(allowedHosts))
	for _, h := range allowedHosts {
		allowed[h] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		if len(allowed) == 0 {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Host == "" {
				http.Error(w, "Bad Request", http.StatusBadRequest)
				return
			}

			host := r.Host
			if h, _, err := net.SplitHostPort(host); err == nil {
				host = h
			}

			if _, ok := allowed[host]; !ok {
				slog.WarnContext(r.Context(), "blocked request for foreign host",
					"host", r.Host,
					"client_ip", GetClientIP(r.Context()),
				)
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
