package subscription

import (
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/arloliu/streamgroup/internal/logging"
	"github.com/arloliu/streamgroup/types"
)

// ProcessorConfig configures a StreamProcessor.
//
// Required fields:
//   - StreamName
//   - GroupID
//
// Optional tuning fields are documented inline below. Zero values are replaced by
// sensible defaults via applyDefaults().
type ProcessorConfig struct {
	StreamName string
	// GroupID names the shared durable consumer (sanitized).
	GroupID string
	// FilterSubjects restricts the consumer to a subset of the stream subjects.
	FilterSubjects []string

	AckPolicy         jetstream.AckPolicy
	AckWait           time.Duration
	MaxDeliver        int
	InactiveThreshold time.Duration
	DeliverPolicy     jetstream.DeliverPolicy

	BatchSize    int
	MaxWaiting   int
	FetchTimeout time.Duration

	MaxRetries   int
	RetryBackoff time.Duration

	Logger types.Logger
}

// applyDefaults fills unset optional fields with project defaults.
func (cfg *ProcessorConfig) applyDefaults() {
	if cfg.AckPolicy == 0 {
		cfg.AckPolicy = jetstream.AckExplicitPolicy
	}
	if cfg.AckWait == 0 {
		cfg.AckWait = DefaultAckWait
	}
	if cfg.MaxDeliver == 0 {
		cfg.MaxDeliver = DefaultMaxDeliver
	}
	if cfg.InactiveThreshold == 0 {
		cfg.InactiveThreshold = DefaultInactiveThreshold
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.MaxWaiting == 0 {
		cfg.MaxWaiting = DefaultMaxWaiting
	}
	if cfg.FetchTimeout == 0 {
		cfg.FetchTimeout = DefaultFetchTimeout
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.RetryBackoff == 0 {
		cfg.RetryBackoff = DefaultRetryBackoff
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NewNop()
	}
}

func (cfg *ProcessorConfig) validate() error {
	if cfg.StreamName == "" {
		return ErrStreamRequired
	}
	if cfg.GroupID == "" {
		return ErrGroupRequired
	}

	return nil
}
