// Package subscription provides JetStream-backed stream processors for
// consumer group threads.
//
// The package includes:
//
//   - StreamProcessor: a types.Processor that pulls from a durable consumer
//     shared by every thread of the group, so the threads split the stream
//   - ForwardHandler: a MessageHandler that republishes each message to an
//     output subject (input → output topology)
//
// Every StreamProcessor of a group binds to the same durable consumer, named
// after the sanitized group ID. Closing a processor leaves the durable in
// place; JetStream removes it after InactiveThreshold.
package subscription
