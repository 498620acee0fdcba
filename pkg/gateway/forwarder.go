package gateway

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const (
	// maxHeaderCount and maxHeaderValueBytes bound what is copied to the
	// upstream request.
	maxHeaderCount      = 50
	maxHeaderValueBytes = 1024
)

// hopByHopHeaders are stripped in both directions per RFC 9110 §7.6.1.
var hopByHopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// Errors receives forward failures, satisfied by the metrics collector.
type Errors interface {
	RecordUpstreamError(backend, kind string)
}

// Forwarder relays a request to an upstream URL and streams the
// response back.
type Forwarder struct {
	client       *http.Client
	timeout      time.Duration
	maxBodyBytes int64
	metrics      Errors
	logger       *slog.Logger
}

// NewForwarder creates a forwarder. metrics may be nil. client may be
// nil, in which case a default transport is used.
func NewForwarder(timeout time.Duration, maxBodyBytes int64, metrics Errors, logger *slog.Logger) *Forwarder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Forwarder{
		client:       &http.Client{},
		timeout:      timeout,
		maxBodyBytes: maxBodyBytes,
		metrics:      metrics,
		logger:       logger,
	}
}

// Forward relays r to targetURL. backend names the route for logging
// and metrics. The upstream call inherits the request context, so a
// client disconnect cancels it.
func (f *Forwarder) Forward(w http.ResponseWriter, r *http.Request, targetURL, backend string) {
	// Buffer the request body so oversized payloads are rejected before
	// anything reaches the upstream.
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, f.maxBodyBytes))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			http.Error(w, "Request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, r.Method, targetURL, bytes.NewReader(body))
	if err != nil {
		f.logger.Error("Failed to build upstream request", "backend", backend, "error", err)
		http.Error(w, "Bad Gateway", http.StatusBadGateway)
		return
	}
	copyInboundHeaders(req.Header, r.Header)

	resp, err := f.client.Do(req)
	if err != nil {
		f.handleForwardError(w, backend, err)
		return
	}
	defer resp.Body.Close()

	copyOutboundHeaders(w.Header(), resp.Header)
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		f.logger.Warn("Upstream response copy interrupted",
			"backend", backend,
			"error", err,
		)
	}
}

func (f *Forwarder) handleForwardError(w http.ResponseWriter, backend string, err error) {
	kind := "connect"
	status := http.StatusBadGateway
	message := "Bad Gateway"

	if errors.Is(err, context.DeadlineExceeded) {
		kind = "timeout"
		status = http.StatusGatewayTimeout
		message = "Gateway Timeout"
	} else if errors.Is(err, context.Canceled) {
		// Client went away; nothing useful to write.
		f.logger.Debug("Forward cancelled by client", "backend", backend)
		return
	}

	if f.metrics != nil {
		f.metrics.RecordUpstreamError(backend, kind)
	}
	f.logger.Error("Upstream forward failed",
		"backend", backend,
		"kind", kind,
		"error", err,
	)

	http.Error(w, message, status)
}

// copyInboundHeaders copies client headers to the upstream request,
// skipping hop-by-hop headers and anything oversized. Host and
// Content-Length are set by the transport.
func copyInboundHeaders(dst, src http.Header) {
	count := 0
	for name, values := range src {
		if count >= maxHeaderCount {
			return
		}
		if isHopByHop(name) || name == "Host" || name == "Content-Length" {
			continue
		}
		for _, v := range values {
			if len(v) > maxHeaderValueBytes {
				continue
			}
			dst.Add(name, v)
		}
		count++
	}
}

// copyOutboundHeaders copies upstream response headers to the client,
// skipping hop-by-hop headers and framing headers.
func copyOutboundHeaders(dst, src http.Header) {
	count := 0
	for name, values := range src {
		if count >= maxHeaderCount {
			return
		}
		if isHopByHop(name) || name == "Content-Length" {
			continue
		}
		for _, v := range values {
			dst.Add(name, v)
		}
		count++
	}
}

func isHopByHop(name string) bool {
	for _, h := range hopByHopHeaders {
		if http.CanonicalHeaderKey(name) == h {
			return true
		}
	}
	return false
}
