// Package kvutil provides utilities for working with NATS JetStream KeyValue stores.
package kvutil

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/nats-io/nats.go/jetstream"
)

// EnsureKVBucketWithRetry creates or opens a KV bucket with retry logic.
//
// Several clients of the same group race to create the membership bucket at
// startup; losing the race is not an error, the existing bucket is opened
// instead. Transient failures are retried with exponential backoff.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - js: JetStream context
//   - config: KV bucket configuration
//   - maxRetries: Maximum number of attempts (default: 3)
//
// Returns:
//   - jetstream.KeyValue: The KV bucket instance
//   - error: The last error once attempts are exhausted or ctx ends
//
// Example:
//
//	kv, err := kvutil.EnsureKVBucketWithRetry(ctx, js, jetstream.KeyValueConfig{
//	    Bucket: "streamgroup-members",
//	    TTL:    45 * time.Second,
//	}, 5)
func EnsureKVBucketWithRetry(
	ctx context.Context,
	js jetstream.JetStream,
	config jetstream.KeyValueConfig,
	maxRetries int,
) (jetstream.KeyValue, error) {
	if maxRetries <= 0 {
		maxRetries = 3
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 10 * time.Millisecond
	b.Multiplier = 2
	b.MaxInterval = time.Second
	b.MaxElapsedTime = 0
	b.Reset()

	var kv jetstream.KeyValue
	operation := func() error {
		created, err := js.CreateKeyValue(ctx, config)
		if err == nil {
			kv = created
			return nil
		}

		if errors.Is(err, jetstream.ErrBucketExists) {
			existing, openErr := js.KeyValue(ctx, config.Bucket)
			if openErr == nil {
				kv = existing
				return nil
			}

			return fmt.Errorf("bucket exists but failed to open: %w", openErr)
		}

		return err
	}

	//nolint:gosec // maxRetries is small and positive
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(maxRetries-1)), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("context cancelled during KV bucket creation: %w", ctx.Err())
		}

		return nil, fmt.Errorf("failed to create/open KV bucket %s after %d attempts: %w",
			config.Bucket, maxRetries, err)
	}

	return kv, nil
}
