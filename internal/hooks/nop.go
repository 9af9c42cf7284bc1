// Package hooks provides default lifecycle hook implementations.
package hooks

import (
	"context"

	"github.com/arloliu/streamgroup/types"
)

// NopHooks implements Hooks with no-op callbacks.
//
// This is the default implementation used when no custom hooks are provided,
// eliminating the need for nil checks throughout the codebase.
type NopHooks struct{}

// Compile-time assertions that NopHooks implements hook callbacks.
var (
	_ func(context.Context, types.ClientState, types.ClientState) error = (*NopHooks)(nil).OnStateChanged
	_ func(context.Context, types.CloseOutcome) error                  = (*NopHooks)(nil).OnCloseCompleted
	_ func(context.Context, error) error                               = (*NopHooks)(nil).OnError
)

// NewNop creates a new no-op hooks implementation.
func NewNop() types.Hooks {
	h := &NopHooks{}
	return types.Hooks{
		OnStateChanged:   h.OnStateChanged,
		OnCloseCompleted: h.OnCloseCompleted,
		OnError:          h.OnError,
	}
}

// WithDefaults returns a copy of h where every nil callback is replaced by a no-op.
func WithDefaults(h *types.Hooks) *types.Hooks {
	out := NewNop()
	if h == nil {
		return &out
	}
	if h.OnStateChanged != nil {
		out.OnStateChanged = h.OnStateChanged
	}
	if h.OnCloseCompleted != nil {
		out.OnCloseCompleted = h.OnCloseCompleted
	}
	if h.OnError != nil {
		out.OnError = h.OnError
	}

	return &out
}

// OnStateChanged is a no-op implementation.
func (h *NopHooks) OnStateChanged(_ context.Context, _, _ types.ClientState) error {
	return nil
}

// OnCloseCompleted is a no-op implementation.
func (h *NopHooks) OnCloseCompleted(_ context.Context, _ types.CloseOutcome) error {
	return nil
}

// OnError is a no-op implementation.
func (h *NopHooks) OnError(_ context.Context, _ error) error {
	return nil
}
