package types

import "context"

// Hooks defines callbacks for Client lifecycle events.
//
// All hooks are optional. OnStateChanged and OnError run asynchronously in
// background goroutines so they never block the state machine or a worker's
// teardown. OnCloseCompleted is invoked synchronously right before the
// transitioning Close call returns.
//
// IMPORTANT: Hook execution behavior:
//   - Asynchronous hooks may still be running after Close returns
//   - Hook errors are logged but never fail client operations
//
// Example:
//
//	hooks := &streamgroup.Hooks{
//	    OnCloseCompleted: func(ctx context.Context, outcome streamgroup.CloseOutcome) error {
//	        log.Printf("close finished: %s", outcome)
//	        return nil
//	    },
//	}
type Hooks struct {
	// OnStateChanged is called when the client state transitions.
	OnStateChanged func(ctx context.Context, from, to ClientState) error

	// OnCloseCompleted reports the final outcome of the close call that performed shutdown.
	OnCloseCompleted func(ctx context.Context, outcome CloseOutcome) error

	// OnError is called when a recoverable error occurs (processing failure,
	// departure notification failure, teardown error).
	OnError func(ctx context.Context, err error) error
}
