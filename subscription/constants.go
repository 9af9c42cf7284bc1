package subscription

import "time"

// Default configuration values for StreamProcessor.
const (
	// DefaultBatchSize is the default number of messages to fetch per unit.
	DefaultBatchSize = 10

	// DefaultMaxWaiting is the default maximum number of outstanding pull requests.
	DefaultMaxWaiting = 512

	// DefaultFetchTimeout is the default maximum duration to wait for messages.
	// It also bounds how long an idle unit takes to notice a stop signal.
	DefaultFetchTimeout = time.Second

	// DefaultMaxRetries is the default maximum number of consumer creation retries.
	DefaultMaxRetries = 3

	// DefaultRetryBackoff is the initial delay between consumer creation retries.
	DefaultRetryBackoff = 100 * time.Millisecond

	// DefaultAckWait is the default duration to wait for acknowledgment.
	DefaultAckWait = 30 * time.Second

	// DefaultMaxDeliver is the default maximum delivery attempts.
	DefaultMaxDeliver = 3

	// DefaultInactiveThreshold is the default inactive consumer cleanup threshold.
	DefaultInactiveThreshold = 24 * time.Hour
)

// releaseIdle ends the hand-back of a cancelled batch once no further
// message arrived for this long.
const releaseIdle = 100 * time.Millisecond
