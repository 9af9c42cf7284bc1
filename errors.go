package streamgroup

import "github.com/arloliu/streamgroup/types"

// Sentinel errors returned by the Client.
//
// They alias the definitions in the types package so internal packages and
// callers match with errors.Is against the same values.
var (
	// ErrInvalidArgument is returned by Close for a negative timeout.
	ErrInvalidArgument = types.ErrInvalidArgument

	// ErrInvalidConfig is returned when the configuration is invalid.
	ErrInvalidConfig = types.ErrInvalidConfig

	// ErrNATSConnectionRequired is returned when NATS connection is nil.
	ErrNATSConnectionRequired = types.ErrNATSConnectionRequired

	// ErrProcessorFactoryRequired is returned when no processor factory is supplied.
	ErrProcessorFactoryRequired = types.ErrProcessorFactoryRequired

	// ErrAlreadyStarted is returned when Start is called twice.
	ErrAlreadyStarted = types.ErrAlreadyStarted

	// ErrClientClosed is returned when Start is called after Close.
	ErrClientClosed = types.ErrClientClosed

	// ErrCloseTimedOut is returned by Stop when threads were still running at its deadline.
	ErrCloseTimedOut = types.ErrCloseTimedOut

	// ErrDepartureQueueFull is reported when the departure queue rejected a request.
	ErrDepartureQueueFull = types.ErrDepartureQueueFull

	// ErrDepartureTimeout is reported when a departure was not confirmed in time.
	ErrDepartureTimeout = types.ErrDepartureTimeout

	// ErrDepartureStopped is reported when a departure was requested after the queue stopped.
	ErrDepartureStopped = types.ErrDepartureStopped

	// ErrMemberExists is returned when a thread joins with a member ID that is already live.
	ErrMemberExists = types.ErrMemberExists

	// ErrConnectivity indicates a NATS connectivity problem.
	ErrConnectivity = types.ErrConnectivity
)
