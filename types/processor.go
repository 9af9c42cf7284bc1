package types

import "context"

// Processor executes the work of one worker thread, one unit at a time.
//
// The thread calls ProcessOnce in a loop. The context passed to ProcessOnce is
// cancelled when the thread receives a stop signal; implementations should
// treat cancellation as a wake-up, finish the in-flight unit and return.
// A unit that ignores cancellation keeps the thread in Stopping state.
type Processor interface {
	// ProcessOnce runs a single work unit (e.g. one fetch-and-handle batch).
	ProcessOnce(ctx context.Context) error

	// Close releases resources held by the processor. Called exactly once,
	// after the last ProcessOnce returned.
	Close(ctx context.Context) error
}

// ThreadInfo identifies the worker thread a processor is built for.
type ThreadInfo struct {
	// ID is the stable thread index, starting at 1.
	ID int
	// Name is "<clientID>-StreamThread-<ID>".
	Name string
	// MemberID is the group member identity of the thread's session.
	MemberID string
}

// ProcessorFactory builds the processor for one worker thread.
type ProcessorFactory func(ctx context.Context, info ThreadInfo) (Processor, error)
