// Package worker runs the processing loop of a single stream thread.
//
// A Thread owns one membership handle and one processor. Its state moves
// forward only:
//
//	Active → Stopping → Stopped
//
// Shutdown performs the Active→Stopping step with a compare-and-swap and
// returns without waiting. Teardown (departure wait, handle release and
// processor close) runs on the thread's own goroutine once the in-flight unit
// returns, and ends in Stopped.
package worker
