package metrics

import (
	"testing"

	"github.com/arloliu/streamgroup/types"
	"github.com/stretchr/testify/require"
)

func TestNewNop(t *testing.T) {
	metrics := NewNop()

	require.NotNil(t, metrics)
	require.IsType(t, &NopMetrics{}, metrics)
}

func TestNopMetrics_NoPanics(t *testing.T) {
	metrics := NewNop()

	require.NotPanics(t, func() {
		metrics.RecordStateTransition(types.StateCreated, types.StateRunning, 1.5)
		metrics.RecordStateTransition(types.ClientState(999), types.ClientState(1000), -1.0)
		metrics.RecordCloseOutcome(types.CloseClean, 0.2)
		metrics.RecordCloseOutcome(types.CloseOutcome(42), -1)
		metrics.RecordUnitProcessed("app-StreamThread-1", true)
		metrics.RecordThreadStopped("", false)
		metrics.RecordHeartbeat("m-1", false)
		metrics.RecordDeparture("m-1", true)
		metrics.RecordDepartureQueueDepth(-3)
	})
}

func TestNopMetricsImplementsCollector(_ *testing.T) {
	var _ types.MetricsCollector = (*NopMetrics)(nil)
}
