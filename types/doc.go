// Package types provides core type definitions and interfaces for the streamgroup library.
//
// This package contains shared types that are used across multiple packages in the
// streamgroup library. By keeping these types in a separate package, we avoid import
// cycles between the root streamgroup package and its internal implementations.
//
// Key types:
//   - ClientState: Client lifecycle state (Created, Running, PendingShutdown, Dead)
//   - ThreadState: Worker thread lifecycle state (Active, Stopping, Stopped)
//   - CloseOptions: Immutable close request (leave group, timeout)
//   - MembershipHandle: Per-thread session in the consumer group
//   - Processor: Unit-of-work execution contract for a worker thread
//   - Logger: Structured logging interface
//   - MetricsCollector: Metrics recording interface
package types
