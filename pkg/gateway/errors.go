package gateway

import "fmt"

// UpstreamError wraps a failed forward with the failure kind used for
// status mapping and metrics.
type UpstreamError struct {
	Backend string
	Kind    string // "timeout" or "connect"
	Err     error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream %s: %s: %v", e.Backend, e.Kind, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}
