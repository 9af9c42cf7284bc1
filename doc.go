// Package streamgroup provides a multi-threaded stream processing client that
// is a member of a NATS-backed consumer group.
//
// A Client runs NumStreamThreads worker threads. Every thread joins the group
// as its own member (a record in a JetStream KV bucket that expires after the
// session timeout unless refreshed) and repeatedly runs a unit of work
// produced by a ProcessorFactory, typically a subscription.StreamProcessor
// pulling from a durable consumer shared by the group.
//
// # Quick Start
//
//	cfg := streamgroup.DefaultConfig()
//	cfg.ApplicationID = "orders"
//	cfg.NumStreamThreads = 2
//
//	factory := func(ctx context.Context, info streamgroup.ThreadInfo) (streamgroup.Processor, error) {
//	    return subscription.NewStreamProcessor(ctx, js, subscription.ProcessorConfig{
//	        StreamName: "INPUT",
//	        GroupID:    cfg.ApplicationID,
//	    }, subscription.ForwardHandler(js, "output.orders"))
//	}
//
//	client, err := streamgroup.NewClient(cfg, nc, factory)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := client.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// # Closing
//
// Close is the single shutdown entry point:
//
//	ok, err := client.Close(ctx, streamgroup.NewCloseOptions().
//	    WithLeaveGroup(true).
//	    WithTimeout(30*time.Second))
//
//   - The first call moves the client to PendingShutdown and signals every
//     thread concurrently; all threads observe the signal before the wait begins
//   - With LeaveGroup each thread asks the group to remove its member right
//     away; otherwise the member record expires at the session timeout
//   - Close waits up to the timeout and returns true only if every thread
//     stopped in time; a zero timeout signals and returns false immediately
//   - The client is Dead when Close returns; later calls return false
//
// # Architecture
//
//	Client ──► worker.Thread ×N ──► Processor (units of work)
//	               │
//	               └──► membership.Session ──► KV member record (heartbeat)
//	                          │
//	                          └──► membership.Departer (bounded departure queue)
//
// The admin package lists live members, e.g. to confirm a group is empty
// after a close that left the group.
//
// See the examples/ directory for complete working examples.
package streamgroup
