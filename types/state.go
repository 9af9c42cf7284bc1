package types

// ClientState represents the client lifecycle state.
//
// States follow a single forward progression:
//
//	StateCreated → StateRunning → StatePendingShutdown → StateDead
//
// A client that is closed before it was started skips StateRunning.
// StateDead is terminal.
type ClientState int

const (
	// StateCreated is the initial state before Start is called.
	StateCreated ClientState = iota

	// StateRunning indicates all worker threads have joined the group and are processing.
	StateRunning

	// StatePendingShutdown indicates the first close call is fanning out stop signals.
	StatePendingShutdown

	// StateDead indicates the close call returned, either cleanly or after its timeout.
	StateDead
)

// String returns the string representation of the state.
func (s ClientState) String() string {
	switch s {
	case StateCreated:
		return "Created"
	case StateRunning:
		return "Running"
	case StatePendingShutdown:
		return "PendingShutdown"
	case StateDead:
		return "Dead"
	default:
		return "Unknown"
	}
}

// IsTerminal reports whether the state accepts no further shutdown work.
func (s ClientState) IsTerminal() bool {
	return s == StatePendingShutdown || s == StateDead
}

// CanTransitionTo reports whether moving from s to next is a legal lifecycle step.
func (s ClientState) CanTransitionTo(next ClientState) bool {
	switch s {
	case StateCreated:
		return next == StateRunning || next == StatePendingShutdown
	case StateRunning:
		return next == StatePendingShutdown
	case StatePendingShutdown:
		return next == StateDead
	default:
		return false
	}
}

// ThreadState represents the lifecycle of a single worker thread.
type ThreadState int32

const (
	// ThreadActive means the thread is running its processing loop.
	ThreadActive ThreadState = iota

	// ThreadStopping means a stop signal was observed and teardown is in progress.
	ThreadStopping

	// ThreadStopped is terminal.
	ThreadStopped
)

// String returns the string representation of the thread state.
func (s ThreadState) String() string {
	switch s {
	case ThreadActive:
		return "Active"
	case ThreadStopping:
		return "Stopping"
	case ThreadStopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}

// CloseOutcome is the final result of a close call, reported to hooks and metrics.
type CloseOutcome int

const (
	// CloseClean means every worker thread confirmed stop within the timeout.
	CloseClean CloseOutcome = iota

	// CloseTimedOut means the timeout elapsed before every thread confirmed stop.
	CloseTimedOut

	// CloseAlreadyClosed means the call was a no-op because shutdown already began.
	CloseAlreadyClosed
)

// String returns the string representation of the outcome.
func (o CloseOutcome) String() string {
	switch o {
	case CloseClean:
		return "clean"
	case CloseTimedOut:
		return "timed-out"
	case CloseAlreadyClosed:
		return "already-closed"
	default:
		return "unknown"
	}
}
