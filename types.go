package streamgroup

import "github.com/arloliu/streamgroup/types"

// Re-export types from the internal types package.
//
// This file provides a stable public API for the library's core types and
// interfaces. It uses type aliases to re-export definitions from the `types`
// subpackage, which internal packages depend on without importing the root
// package.
type (
	ClientState      = types.ClientState
	ThreadState      = types.ThreadState
	CloseOutcome     = types.CloseOutcome
	CloseOptions     = types.CloseOptions
	MemberRecord     = types.MemberRecord
	ThreadInfo       = types.ThreadInfo
	ProcessorFactory = types.ProcessorFactory
)

// Re-export interfaces from the internal types package for convenience.
type (
	Processor        = types.Processor
	MembershipHandle = types.MembershipHandle
	MetricsCollector = types.MetricsCollector
	Logger           = types.Logger
	Hooks            = types.Hooks
)

// Re-export constants from the internal types package.
const (
	StateCreated         = types.StateCreated
	StateRunning         = types.StateRunning
	StatePendingShutdown = types.StatePendingShutdown
	StateDead            = types.StateDead

	ThreadActive   = types.ThreadActive
	ThreadStopping = types.ThreadStopping
	ThreadStopped  = types.ThreadStopped

	CloseClean         = types.CloseClean
	CloseTimedOut      = types.CloseTimedOut
	CloseAlreadyClosed = types.CloseAlreadyClosed

	InfiniteTimeout = types.InfiniteTimeout
)

// NewCloseOptions returns close options with default values: stay in the
// group and wait without a deadline.
func NewCloseOptions() CloseOptions {
	return types.NewCloseOptions()
}
