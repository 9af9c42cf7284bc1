package subscription

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/arloliu/streamgroup/types"
)

// StreamProcessor is a types.Processor that consumes a JetStream stream
// through the durable pull consumer shared by its group.
type StreamProcessor struct {
	js      jetstream.JetStream
	config  ProcessorConfig
	logger  types.Logger
	handler MessageHandler
	durable string

	mu       sync.RWMutex
	consumer jetstream.Consumer
	closed   bool
}

// Compile-time assertion that StreamProcessor implements Processor.
var _ types.Processor = (*StreamProcessor)(nil)

// NewStreamProcessor binds a processor to the group's durable consumer,
// creating or updating the consumer as needed.
//
// Consumer creation is retried with exponential backoff up to MaxRetries.
//
// Parameters:
//   - ctx: Context for consumer creation
//   - js: JetStream context
//   - cfg: Processor configuration with StreamName and GroupID set
//   - handler: Message handler invoked for each fetched message
//
// Returns:
//   - *StreamProcessor: Processor ready for ProcessOnce
//   - error: Configuration or JetStream API error
//
// Example:
//
//	factory := func(ctx context.Context, info types.ThreadInfo) (types.Processor, error) {
//	    return subscription.NewStreamProcessor(ctx, js, subscription.ProcessorConfig{
//	        StreamName: "input",
//	        GroupID:    "orders-app",
//	    }, subscription.ForwardHandler(js, "output.orders"))
//	}
func NewStreamProcessor(ctx context.Context, js jetstream.JetStream, cfg ProcessorConfig, handler MessageHandler) (*StreamProcessor, error) {
	if js == nil {
		return nil, errors.New("JetStream context is required")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if handler == nil {
		return nil, ErrHandlerRequired
	}

	cfg.applyDefaults()

	p := &StreamProcessor{
		js:      js,
		config:  cfg,
		logger:  cfg.Logger,
		handler: handler,
		durable: ConsumerName(cfg.GroupID),
	}

	cons, err := p.ensureConsumer(ctx)
	if err != nil {
		return nil, err
	}
	p.consumer = cons

	return p, nil
}

// ConsumerName returns the durable consumer name used by a group.
//
// NATS consumer name restrictions:
// - Cannot contain whitespace
// - Cannot contain . (dot)
// - Cannot contain * (asterisk)
// - Cannot contain > (greater than)
// - Cannot contain path separators (/ or \)
// - Cannot contain non-printable characters
//
// We replace invalid characters with underscore (_).
func ConsumerName(groupID string) string {
	var result strings.Builder
	result.Grow(len(groupID))

	for _, r := range groupID {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' ||
			r == '.' || r == '*' || r == '>' ||
			r == '/' || r == '\\' ||
			r < 32 || r == 127 {
			result.WriteRune('_')
		} else {
			result.WriteRune(r)
		}
	}

	return result.String()
}

func (p *StreamProcessor) ensureConsumer(ctx context.Context) (jetstream.Consumer, error) {
	cfg := jetstream.ConsumerConfig{
		Name:              p.durable,
		Durable:           p.durable,
		FilterSubjects:    p.config.FilterSubjects,
		AckPolicy:         p.config.AckPolicy,
		AckWait:           p.config.AckWait,
		MaxDeliver:        p.config.MaxDeliver,
		InactiveThreshold: p.config.InactiveThreshold,
		MaxWaiting:        p.config.MaxWaiting,
		DeliverPolicy:     p.config.DeliverPolicy,
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.config.RetryBackoff
	b.MaxElapsedTime = 0

	var cons jetstream.Consumer
	operation := func() error {
		var err error
		cons, err = p.js.CreateOrUpdateConsumer(ctx, p.config.StreamName, cfg)
		if errors.Is(err, jetstream.ErrStreamNotFound) {
			return backoff.Permanent(err)
		}

		return err
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(p.config.MaxRetries)), ctx) //nolint:gosec // MaxRetries is small
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, fmt.Errorf("failed to create/update consumer %s on stream %s: %w", p.durable, p.config.StreamName, err)
	}

	p.logger.Debug("bound to group consumer", "durable", p.durable, "stream", p.config.StreamName)

	return cons, nil
}

// ProcessOnce fetches up to BatchSize messages and hands them to the handler.
//
// It returns nil when the fetch expired without messages. When ctx is
// cancelled the unit stops handling the batch and NAKs every message it has
// not handled yet, so the rest of the group receives them right away. A
// message already passed to the handler is always acknowledged.
func (p *StreamProcessor) ProcessOnce(ctx context.Context) error {
	p.mu.RLock()
	cons, closed := p.consumer, p.closed
	p.mu.RUnlock()
	if closed {
		return ErrProcessorClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	batch, err := cons.Fetch(p.config.BatchSize, jetstream.FetchMaxWait(p.config.FetchTimeout))
	if err != nil {
		return fmt.Errorf("fetch from %s failed: %w", p.durable, err)
	}

	var failed int
	msgs := batch.Messages()
	for {
		if ctx.Err() != nil {
			return p.abandon(ctx, msgs)
		}

		select {
		case <-ctx.Done():
			return p.abandon(ctx, msgs)
		case msg, ok := <-msgs:
			if !ok {
				if err := batch.Error(); err != nil && !errors.Is(err, nats.ErrTimeout) && !errors.Is(err, context.DeadlineExceeded) {
					return fmt.Errorf("fetch from %s failed: %w", p.durable, err)
				}
				if failed > 0 {
					return fmt.Errorf("%d of batch NAKed", failed)
				}

				return nil
			}

			if err := p.handler.Handle(ctx, msg); err != nil {
				failed++
				p.logger.Debug("message handler failed", "subject", msg.Subject(), "error", err)
				if nakErr := msg.Nak(); nakErr != nil {
					p.logger.Warn("failed to NAK message", "error", nakErr)
				}

				continue
			}
			if ackErr := msg.Ack(); ackErr != nil {
				p.logger.Warn("failed to ACK message", "error", ackErr)
			}
		}
	}
}

func (p *StreamProcessor) abandon(ctx context.Context, msgs <-chan jetstream.Msg) error {
	if n := p.release(msgs); n > 0 {
		p.logger.Debug("released unhandled messages of cancelled unit", "durable", p.durable, "count", n)
	}

	return ctx.Err()
}

// release NAKs the remaining messages of a batch. It returns once the fetch
// request completed or no message arrived for releaseIdle.
func (p *StreamProcessor) release(msgs <-chan jetstream.Msg) int {
	idle := time.NewTimer(releaseIdle)
	defer idle.Stop()

	n := 0
	for {
		select {
		case msg, ok := <-msgs:
			if !ok {
				return n
			}
			if err := msg.Nak(); err != nil {
				p.logger.Warn("failed to NAK message", "error", err)
			} else {
				n++
			}
			idle.Reset(releaseIdle)
		case <-idle.C:
			return n
		}
	}
}

// ConsumerInfo returns the JetStream info of the shared durable consumer.
func (p *StreamProcessor) ConsumerInfo(ctx context.Context) (*jetstream.ConsumerInfo, error) {
	p.mu.RLock()
	cons := p.consumer
	p.mu.RUnlock()

	info, err := cons.Info(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get consumer info: %w", err)
	}

	return info, nil
}

// Close marks the processor closed. The durable consumer is left in place
// for the remaining group members.
func (p *StreamProcessor) Close(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	p.logger.Debug("stream processor closed", "durable", p.durable)

	return nil
}
