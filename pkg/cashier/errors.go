package cashier

import "errors"

var (
	// ErrSecurityViolation is returned when a webhook signature does not match
	// the HMAC computed from the configured secret. The whole batch is rejected.
	ErrSecurityViolation = errors.New("message security violation, MAC is wrong")

	// ErrUnknownEvent is returned when no handler is registered for an event's
	// category or activity. Recorded per event; the batch continues.
	ErrUnknownEvent = errors.New("no handler registered for event")

	// ErrGatewayFailure is returned when FastSpring did not report success for
	// the targeted entity. The triggering transition is aborted.
	ErrGatewayFailure = errors.New("gateway did not report success")

	// ErrNotFound is returned when an entity expected to already exist is
	// missing from storage.
	ErrNotFound = errors.New("not found")

	// ErrInvalidConfiguration is returned for unsupported subscription
	// configuration, e.g. an unknown interval unit.
	ErrInvalidConfiguration = errors.New("invalid subscription configuration")

	// ErrIllegalStateTransition is returned when a command is not allowed from
	// the subscription's current state, e.g. resuming a non-canceled
	// subscription. Checked before any gateway call.
	ErrIllegalStateTransition = errors.New("illegal state transition")
)
