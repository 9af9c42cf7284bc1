// Package testing provides test utilities for the streamgroup library.
//
// This package offers helpers for setting up test environments, particularly
// embedded NATS servers for integration testing. It follows Go's convention
// of providing testing utilities in a dedicated package (similar to net/http/httptest).
//
// Key utilities:
//   - StartEmbeddedNATS: Single NATS server with JetStream
//   - Connect: Extra client connection to the embedded server
//   - CreateJetStreamKV: Convenience wrapper for KV bucket creation
//   - CreateStream: Convenience wrapper for stream creation
//   - NewTestLogger: types.Logger writing to t.Logf
//   - WaitAllClientsState / WaitClientStates: parallel and sequential state waits
//
// Example usage:
//
//	import (
//	    "testing"
//	    sgtest "github.com/arloliu/streamgroup/testing"
//	)
//
//	func TestMyComponent(t *testing.T) {
//	    _, nc := sgtest.StartEmbeddedNATS(t)
//	    // Use nc for your tests
//	}
package testing
