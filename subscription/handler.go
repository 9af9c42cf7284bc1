package subscription

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// MessageHandler defines the contract for processing JetStream messages fetched
// by a StreamProcessor unit.
//
// Behavior summary:
//   - The processor fetches a batch and calls Handle once per message, in order.
//   - When Handle returns nil, the processor ACKs the message.
//     When Handle returns a non-nil error, the processor NAKs the message.
//
// Redelivery semantics:
//   - With AckExplicit policy, failing to ACK within AckWait causes redelivery.
//     Use msg.InProgress() to extend the deadline when work takes longer than AckWait.
//   - Exactly-once is not guaranteed; design handlers to be idempotent.
//
// Parameters:
//   - ctx: Unit context; cancelled when the owning thread is asked to stop
//   - msg: The JetStream message to process
//
// Returns:
//   - error: nil on success; non-nil to NAK the message
//
// Example:
//
//	var h MessageHandler = MessageHandlerFunc(func(ctx context.Context, msg jetstream.Msg) error {
//	    // process msg.Data(); return error to NAK
//	    return nil // processor will ACK
//	})
type MessageHandler interface {
	// Handle processes a single message.
	Handle(ctx context.Context, msg jetstream.Msg) error
}

// MessageHandlerFunc is a function adapter for MessageHandler.
type MessageHandlerFunc func(ctx context.Context, msg jetstream.Msg) error

// Handle implements MessageHandler interface.
func (f MessageHandlerFunc) Handle(ctx context.Context, msg jetstream.Msg) error { return f(ctx, msg) }

// ForwardHandler returns a handler that republishes every message, payload and
// headers, to subject and waits for the JetStream publish acknowledgement.
//
// The publish runs with a context detached from unit cancellation so a stop
// signal never leaves a message half-forwarded.
//
// Example:
//
//	handler := subscription.ForwardHandler(js, "output.events")
func ForwardHandler(js jetstream.JetStream, subject string) MessageHandler {
	return MessageHandlerFunc(func(ctx context.Context, msg jetstream.Msg) error {
		out := nats.NewMsg(subject)
		out.Data = msg.Data()
		for k, vals := range msg.Headers() {
			for _, v := range vals {
				out.Header.Add(k, v)
			}
		}

		if _, err := js.PublishMsg(context.WithoutCancel(ctx), out); err != nil {
			return fmt.Errorf("failed to forward message to %s: %w", subject, err)
		}

		return nil
	})
}
