package types

import (
	"errors"
	"strings"
)

// Sentinel errors for the streamgroup library.
//
// These errors provide type-safe error checking using errors.Is() and errors.As().
// All components should use these sentinel errors for known error conditions
// and wrap external errors with context using fmt.Errorf("%s: %w", msg, err).

// Client errors - Public API errors returned by the Client.
var (
	// ErrInvalidArgument is returned when a close request carries a negative timeout.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrInvalidConfig is returned when the configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrNATSConnectionRequired is returned when NATS connection is nil.
	ErrNATSConnectionRequired = errors.New("NATS connection is required")

	// ErrProcessorFactoryRequired is returned when no processor factory is supplied.
	ErrProcessorFactoryRequired = errors.New("processor factory is required")

	// ErrAlreadyStarted is returned when Start is called on a client that is not in Created state.
	ErrAlreadyStarted = errors.New("client already started")

	// ErrClientClosed is returned when Start is called after Close.
	ErrClientClosed = errors.New("client closed")

	// ErrCloseTimedOut is returned by Stop when threads were still running at its deadline.
	ErrCloseTimedOut = errors.New("close timed out before all threads stopped")

	// ErrConnectivity indicates a NATS/KV connectivity issue.
	// Used to distinguish network failures from application errors so they can be retried.
	ErrConnectivity = errors.New("connectivity issue")
)

// Membership errors - Group membership session and departure queue errors.
var (
	// ErrMemberExists is returned when joining with a member ID that is already live.
	ErrMemberExists = errors.New("member already exists in group")

	// ErrSessionClosed is returned when operating on a released membership session.
	ErrSessionClosed = errors.New("membership session closed")

	// ErrDepartureQueueFull is returned when the bounded departure queue rejects a request.
	ErrDepartureQueueFull = errors.New("departure queue full")

	// ErrDepartureStopped is returned when a departure is requested after the queue stopped.
	ErrDepartureStopped = errors.New("departure queue stopped")

	// ErrDepartureTimeout is reported when a departure was not confirmed within its budget.
	ErrDepartureTimeout = errors.New("departure not confirmed in time")
)

// Common errors - Shared errors used across multiple components.
var (
	// ErrNoKeysFound is returned when NATS KV returns no keys (expected condition).
	ErrNoKeysFound = errors.New("no keys found")
)

// IsNoKeysFoundError checks if an error indicates that no keys were found in NATS KV.
//
// This function handles NATS-specific "no keys found" errors which may come as:
//   - Direct error: "nats: no keys found"
//   - Wrapped error: "failed to list KV keys: nats: no keys found"
//
// Parameters:
//   - err: The error to check
//
// Returns:
//   - bool: true if the error indicates no keys were found, false otherwise
func IsNoKeysFoundError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNoKeysFound) {
		return true
	}

	return strings.Contains(err.Error(), "no keys found")
}
