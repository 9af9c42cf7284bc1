package types

import (
	"fmt"
	"math"
	"time"
)

// InfiniteTimeout is the default close timeout: close blocks until every
// worker thread has stopped.
const InfiniteTimeout = time.Duration(math.MaxInt64)

// CloseOptions is an immutable close request.
//
// The zero value is valid and equals NewCloseOptions(): do not leave the group
// and wait without a deadline. Builder methods return modified copies.
//
// Example:
//
//	opts := types.NewCloseOptions().
//	    WithLeaveGroup(true).
//	    WithTimeout(30 * time.Second)
//	ok, err := client.Close(ctx, opts)
type CloseOptions struct {
	leaveGroup bool
	timeout    time.Duration
	timeoutSet bool
}

// NewCloseOptions returns close options with default values.
func NewCloseOptions() CloseOptions {
	return CloseOptions{}
}

// WithLeaveGroup returns a copy that requests (or not) a permanent departure
// from the consumer group for every worker thread.
func (o CloseOptions) WithLeaveGroup(leave bool) CloseOptions {
	o.leaveGroup = leave
	return o
}

// WithTimeout returns a copy with the given close timeout.
//
// Zero means "signal all threads and return immediately". Negative values are
// rejected by Validate.
func (o CloseOptions) WithTimeout(timeout time.Duration) CloseOptions {
	o.timeout = timeout
	o.timeoutSet = true

	return o
}

// LeaveGroup reports whether worker threads must request departure.
func (o CloseOptions) LeaveGroup() bool {
	return o.leaveGroup
}

// Timeout returns the close timeout, InfiniteTimeout when unset.
func (o CloseOptions) Timeout() time.Duration {
	if !o.timeoutSet {
		return InfiniteTimeout
	}

	return o.timeout
}

// IsInfinite reports whether the timeout is the "wait forever" sentinel.
func (o CloseOptions) IsInfinite() bool {
	return o.Timeout() == InfiniteTimeout
}

// Validate checks the options.
//
// Returns:
//   - error: wraps ErrInvalidArgument when the timeout is negative
func (o CloseOptions) Validate() error {
	if o.Timeout() < 0 {
		return fmt.Errorf("%w: close timeout must be >= 0, got %v", ErrInvalidArgument, o.timeout)
	}

	return nil
}

// String implements fmt.Stringer for logging.
func (o CloseOptions) String() string {
	if o.IsInfinite() {
		return fmt.Sprintf("CloseOptions{leaveGroup=%t, timeout=infinite}", o.leaveGroup)
	}

	return fmt.Sprintf("CloseOptions{leaveGroup=%t, timeout=%v}", o.leaveGroup, o.timeout)
}
