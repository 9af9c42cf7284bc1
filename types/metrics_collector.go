package types

// MetricsCollector defines methods for recording operational metrics.
//
// Implementations should be non-blocking and handle failures gracefully.
// All methods are called from internal goroutines and must be thread-safe.
//
// This interface composes smaller, domain-focused interfaces for better modularity.
type MetricsCollector interface {
	ClientMetrics
	ThreadMetrics
	MembershipMetrics
}

// ClientMetrics defines metrics for client-level lifecycle operations.
type ClientMetrics interface {
	// RecordStateTransition records a client state transition event.
	RecordStateTransition(from, to ClientState, duration float64)

	// RecordCloseOutcome records the result of a close call.
	//
	// Parameters:
	//   - outcome: Final close outcome
	//   - duration: Time the caller was blocked, in seconds
	RecordCloseOutcome(outcome CloseOutcome, duration float64)
}

// ThreadMetrics defines metrics for worker thread execution.
type ThreadMetrics interface {
	// RecordUnitProcessed records the completion of one processing unit.
	//
	// Parameters:
	//   - thread: Thread name
	//   - success: false when the unit returned an error
	RecordUnitProcessed(thread string, success bool)

	// RecordThreadStopped records that a thread reached its terminal state.
	//
	// Parameters:
	//   - thread: Thread name
	//   - teardownFailed: true if releasing resources reported an error
	RecordThreadStopped(thread string, teardownFailed bool)
}

// MembershipMetrics defines metrics for group membership sessions.
type MembershipMetrics interface {
	// RecordHeartbeat records a session keep-alive attempt.
	RecordHeartbeat(memberID string, success bool)

	// RecordDeparture records the result of a departure request.
	RecordDeparture(memberID string, success bool)

	// RecordDepartureQueueDepth sets the number of pending departure requests (gauge).
	RecordDepartureQueueDepth(depth int)
}
