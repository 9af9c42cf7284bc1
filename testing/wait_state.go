package testing

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/arloliu/streamgroup/types"
)

// StateWaiter is the subset of Client needed for waiting on its state.
// Real clients and test doubles both satisfy it.
type StateWaiter interface {
	WaitState(expectedState types.ClientState, timeout time.Duration) <-chan error
}

// WaitAllClientsState waits for every client to reach the expected state.
//
// It returns as soon as one client fails, cancelling the remaining waits.
//
// Parameters:
//   - ctx: Context for cancellation (recommended for test cleanup)
//   - clients: Clients to wait on
//   - expectedState: Target state for all clients
//   - timeout: Maximum time to wait for each individual client
//
// Returns:
//   - error: nil if all clients reached the state, first error encountered otherwise
//
// Example:
//
//	err := sgtest.WaitAllClientsState(ctx, []sgtest.StateWaiter{c1, c2}, types.StateRunning, 10*time.Second)
//	require.NoError(t, err)
func WaitAllClientsState(ctx context.Context, clients []StateWaiter, expectedState types.ClientState, timeout time.Duration) error {
	g, gctx := errgroup.WithContext(ctx)
	for i, c := range clients {
		g.Go(func() error {
			select {
			case err := <-c.WaitState(expectedState, timeout):
				if err != nil {
					return fmt.Errorf("client[%d] failed to reach state %s: %w", i, expectedState, err)
				}

				return nil
			case <-gctx.Done():
				return gctx.Err()
			}
		})
	}

	return g.Wait()
}

// WaitClientStates waits for a client to pass through states in order.
//
// Parameters:
//   - ctx: Context for cancellation
//   - client: Client to watch
//   - states: States to wait for, in order
//   - timeout: Maximum time to wait for each state
//
// Returns:
//   - error: nil if all states were reached, error on first failure
func WaitClientStates(ctx context.Context, client StateWaiter, states []types.ClientState, timeout time.Duration) error {
	for i, state := range states {
		select {
		case err := <-client.WaitState(state, timeout):
			if err != nil {
				return fmt.Errorf("failed to reach state[%d] %s: %w", i, state, err)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return nil
}
