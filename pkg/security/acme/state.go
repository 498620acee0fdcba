package acme

// State is the lifecycle state of the managed certificate.
type State int

const (
	// StateUninitialized means no certificate has been loaded or ordered yet.
	StateUninitialized State = iota

	// StatePending means an ACME order is in flight and no certificate has
	// ever been issued for the domain.
	StatePending

	// StateValid means the current certificate is usable.
	StateValid

	// StateRenewing means the certificate is inside the renewal window and
	// a renewal order is being attempted; the prior certificate keeps
	// serving meanwhile.
	StateRenewing

	// StateFailed means renewal kept failing and the certificate is past
	// expiry. Handshakes fail closed in this state.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StatePending:
		return "pending"
	case StateValid:
		return "valid"
	case StateRenewing:
		return "renewing"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}
