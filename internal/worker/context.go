package worker

import "context"

type threadKey struct{}

// WithThread returns a context that identifies t as the running thread.
func WithThread(ctx context.Context, t *Thread) context.Context {
	return context.WithValue(ctx, threadKey{}, t)
}

// FromContext returns the thread whose processing path ctx belongs to, or nil.
func FromContext(ctx context.Context) *Thread {
	if ctx == nil {
		return nil
	}
	t, _ := ctx.Value(threadKey{}).(*Thread)

	return t
}
