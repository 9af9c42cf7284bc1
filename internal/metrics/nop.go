// Package metrics provides types.MetricsCollector implementations.
package metrics

import "github.com/arloliu/streamgroup/types"

// NopMetrics implements a no-op metrics collector.
//
// All metrics are discarded. Used as the default when no collector is
// configured, so call sites never need nil checks.
type NopMetrics struct{}

// Compile-time assertion that NopMetrics implements MetricsCollector.
var _ types.MetricsCollector = (*NopMetrics)(nil)

// NewNop creates a new no-op metrics collector.
//
// Example:
//
//	client, _ := streamgroup.NewClient(&cfg, nc, factory, streamgroup.WithMetrics(metrics.NewNop()))
func NewNop() *NopMetrics {
	return &NopMetrics{}
}

// ClientMetrics implementation

// RecordStateTransition discards the state transition metric.
func (n *NopMetrics) RecordStateTransition(_ /* from */, _ /* to */ types.ClientState, _ /* duration */ float64) {
}

// RecordCloseOutcome discards the close outcome metric.
func (n *NopMetrics) RecordCloseOutcome(_ /* outcome */ types.CloseOutcome, _ /* duration */ float64) {
}

// ThreadMetrics implementation

// RecordUnitProcessed discards the processing unit metric.
func (n *NopMetrics) RecordUnitProcessed(_ /* thread */ string, _ /* success */ bool) {}

// RecordThreadStopped discards the thread stop metric.
func (n *NopMetrics) RecordThreadStopped(_ /* thread */ string, _ /* teardownFailed */ bool) {}

// MembershipMetrics implementation

// RecordHeartbeat discards the heartbeat metric.
func (n *NopMetrics) RecordHeartbeat(_ /* memberID */ string, _ /* success */ bool) {}

// RecordDeparture discards the departure metric.
func (n *NopMetrics) RecordDeparture(_ /* memberID */ string, _ /* success */ bool) {}

// RecordDepartureQueueDepth discards the queue depth gauge.
func (n *NopMetrics) RecordDepartureQueueDepth(_ /* depth */ int) {}
