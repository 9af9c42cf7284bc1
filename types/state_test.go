package types

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClientStateString(t *testing.T) {
	tests := []struct {
		state ClientState
		want  string
	}{
		{StateCreated, "Created"},
		{StateRunning, "Running"},
		{StatePendingShutdown, "PendingShutdown"},
		{StateDead, "Dead"},
		{ClientState(999), "Unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.state.String(); got != tt.want {
				t.Errorf("ClientState.String() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClientState_CanTransitionTo(t *testing.T) {
	require.True(t, StateCreated.CanTransitionTo(StateRunning))
	require.True(t, StateCreated.CanTransitionTo(StatePendingShutdown))
	require.True(t, StateRunning.CanTransitionTo(StatePendingShutdown))
	require.True(t, StatePendingShutdown.CanTransitionTo(StateDead))

	require.False(t, StateRunning.CanTransitionTo(StateCreated))
	require.False(t, StateRunning.CanTransitionTo(StateDead))
	require.False(t, StateDead.CanTransitionTo(StatePendingShutdown))
	require.False(t, StateDead.CanTransitionTo(StateRunning))
}

func TestClientState_IsTerminal(t *testing.T) {
	require.False(t, StateCreated.IsTerminal())
	require.False(t, StateRunning.IsTerminal())
	require.True(t, StatePendingShutdown.IsTerminal())
	require.True(t, StateDead.IsTerminal())
}

func TestThreadStateString(t *testing.T) {
	require.Equal(t, "Active", ThreadActive.String())
	require.Equal(t, "Stopping", ThreadStopping.String())
	require.Equal(t, "Stopped", ThreadStopped.String())
	require.Equal(t, "Unknown", ThreadState(42).String())
}

func TestCloseOutcomeString(t *testing.T) {
	require.Equal(t, "clean", CloseClean.String())
	require.Equal(t, "timed-out", CloseTimedOut.String())
	require.Equal(t, "already-closed", CloseAlreadyClosed.String())
	require.Equal(t, "unknown", CloseOutcome(7).String())
}
