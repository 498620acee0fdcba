package middleware

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// RequestIDKey stores the unique request ID.
	RequestIDKey contextKey = "request_id"

	// ClientIPKey stores the resolved client IP.
	ClientIPKey contextKey = "client_ip"
)
