package streamgroup

import "context"

// Option configures a Client with optional dependencies.
type Option func(*clientOptions)

// clientOptions holds optional Client configuration.
type clientOptions struct {
	hooks      *Hooks
	metrics    MetricsCollector
	logger     Logger
	membership MembershipFactory
}

// MembershipFactory joins one worker thread to the consumer group.
//
// The default factory stores member records in the NATS KV membership bucket.
// A custom factory replaces that layer entirely, for example to plug in a
// different coordination service.
//
// Parameters:
//   - ctx: Bounded by Config.StartupTimeout
//   - rec: Member record with identity fields filled in
//
// Returns:
//   - MembershipHandle: The thread's live session
//   - error: Join failure; aborts Start
type MembershipFactory func(ctx context.Context, rec MemberRecord) (MembershipHandle, error)

// WithHooks sets lifecycle event hooks.
//
// Parameters:
//   - hooks: Hooks structure with callback functions
//
// Returns:
//   - Option: Functional option for NewClient
//
// Example:
//
//	hooks := &streamgroup.Hooks{
//	    OnCloseCompleted: func(ctx context.Context, outcome streamgroup.CloseOutcome) error {
//	        log.Printf("close: %s", outcome)
//	        return nil
//	    },
//	}
//	client, _ := streamgroup.NewClient(cfg, nc, factory, streamgroup.WithHooks(hooks))
func WithHooks(hooks *Hooks) Option {
	return func(o *clientOptions) {
		o.hooks = hooks
	}
}

// WithMetrics sets a metrics collector.
//
// Parameters:
//   - metrics: MetricsCollector implementation
//
// Returns:
//   - Option: Functional option for NewClient
//
// Example:
//
//	collector := streamgroup.NewPrometheusMetrics(prometheus.DefaultRegisterer, "orders")
//	client, _ := streamgroup.NewClient(cfg, nc, factory, streamgroup.WithMetrics(collector))
func WithMetrics(metrics MetricsCollector) Option {
	return func(o *clientOptions) {
		o.metrics = metrics
	}
}

// WithLogger sets a logger.
//
// Parameters:
//   - logger: Logger implementation (compatible with zap.SugaredLogger)
//
// Returns:
//   - Option: Functional option for NewClient
//
// Example:
//
//	client, _ := streamgroup.NewClient(cfg, nc, factory,
//	    streamgroup.WithLogger(streamgroup.NewSlogLogger(slog.Default())))
func WithLogger(logger Logger) Option {
	return func(o *clientOptions) {
		o.logger = logger
	}
}

// WithMembership replaces the NATS KV membership layer.
//
// With a custom factory the client neither creates the membership bucket nor
// runs a departure queue, and the NATS connection passed to NewClient may be nil.
//
// Parameters:
//   - factory: Function joining one thread to the group
//
// Returns:
//   - Option: Functional option for NewClient
func WithMembership(factory MembershipFactory) Option {
	return func(o *clientOptions) {
		o.membership = factory
	}
}
