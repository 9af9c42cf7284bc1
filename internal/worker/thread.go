package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arloliu/streamgroup/internal/hooks"
	"github.com/arloliu/streamgroup/internal/logging"
	"github.com/arloliu/streamgroup/internal/metrics"
	"github.com/arloliu/streamgroup/types"
)

// Default thread settings.
const (
	DefaultDepartureTimeout = 5 * time.Second
	DefaultErrorBackoff     = 100 * time.Millisecond
	DefaultTeardownTimeout  = 10 * time.Second
)

// Config configures a Thread.
type Config struct {
	ID        int
	Name      string
	Handle    types.MembershipHandle
	Processor types.Processor

	// DepartureTimeout bounds the wait for a departure confirmation after the
	// loop exits.
	DepartureTimeout time.Duration
	// ErrorBackoff is the pause after a failed unit.
	ErrorBackoff time.Duration
	// TeardownTimeout bounds releasing the handle and closing the processor.
	TeardownTimeout time.Duration

	Logger  types.Logger
	Metrics types.MetricsCollector
	Hooks   *types.Hooks

	// OnStopped is invoked exactly once when the thread reaches Stopped, with
	// the joined teardown error (nil when teardown was clean).
	OnStopped func(id int, err error)
}

// Info is a point-in-time view of a thread.
type Info struct {
	ID       int
	Name     string
	MemberID string
	State    types.ThreadState
}

// Thread is one stream thread: a processing loop plus its group session.
type Thread struct {
	cfg     Config
	logger  types.Logger
	metrics types.MetricsCollector
	hooks   *types.Hooks

	state atomic.Int32 // types.ThreadState

	mu       sync.Mutex
	cancel   context.CancelFunc
	departCh <-chan error

	startOnce sync.Once
	doneCh    chan struct{}
}

// New creates a thread in Active state. Call Start to run it.
func New(cfg Config) *Thread {
	if cfg.DepartureTimeout <= 0 {
		cfg.DepartureTimeout = DefaultDepartureTimeout
	}
	if cfg.ErrorBackoff <= 0 {
		cfg.ErrorBackoff = DefaultErrorBackoff
	}
	if cfg.TeardownTimeout <= 0 {
		cfg.TeardownTimeout = DefaultTeardownTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NewNop()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NewNop()
	}

	t := &Thread{
		cfg:     cfg,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
		hooks:   hooks.WithDefaults(cfg.Hooks),
		doneCh:  make(chan struct{}),
	}
	t.state.Store(int32(types.ThreadActive))

	return t
}

// ID returns the stable thread index.
func (t *Thread) ID() int { return t.cfg.ID }

// Name returns the thread name.
func (t *Thread) Name() string { return t.cfg.Name }

// MemberID returns the member identity of the thread's session.
func (t *Thread) MemberID() string { return t.cfg.Handle.MemberID() }

// State returns the current thread state.
func (t *Thread) State() types.ThreadState {
	return types.ThreadState(t.state.Load())
}

// Info returns a snapshot of the thread.
func (t *Thread) Info() Info {
	return Info{ID: t.cfg.ID, Name: t.cfg.Name, MemberID: t.MemberID(), State: t.State()}
}

// Done is closed when the thread reached Stopped.
func (t *Thread) Done() <-chan struct{} {
	return t.doneCh
}

// Start launches the processing loop. Unit contexts derive from ctx and carry
// the thread identity. Calling Start more than once has no effect.
func (t *Thread) Start(ctx context.Context) {
	t.startOnce.Do(func() {
		runCtx, cancel := context.WithCancel(WithThread(ctx, t))

		t.mu.Lock()
		t.cancel = cancel
		t.mu.Unlock()

		// Shutdown may have arrived before Start.
		if t.State() != types.ThreadActive {
			cancel()
		}

		go t.run(runCtx)
	})
}

// Shutdown signals the thread to stop.
//
// Only the first call on an Active thread has an effect; it returns true.
// With leaveGroup the departure request is issued immediately, before the
// in-flight unit finishes. Shutdown never blocks.
func (t *Thread) Shutdown(leaveGroup bool) bool {
	if !t.state.CompareAndSwap(int32(types.ThreadActive), int32(types.ThreadStopping)) {
		return false
	}

	t.mu.Lock()
	if leaveGroup {
		t.departCh = t.cfg.Handle.RequestDeparture()
	}
	cancel := t.cancel
	t.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	t.logger.Debug("thread stopping", "thread", t.cfg.Name, "leave_group", leaveGroup)

	return true
}

func (t *Thread) run(ctx context.Context) {
	t.logger.Info("thread started", "thread", t.cfg.Name, "member_id", t.MemberID())

	for t.State() == types.ThreadActive && ctx.Err() == nil {
		err := t.cfg.Processor.ProcessOnce(ctx)
		if err == nil {
			t.metrics.RecordUnitProcessed(t.cfg.Name, true)
			continue
		}

		if ctx.Err() != nil {
			break
		}

		t.metrics.RecordUnitProcessed(t.cfg.Name, false)
		t.logger.Warn("processing unit failed", "thread", t.cfg.Name, "error", err)
		t.reportError(fmt.Errorf("thread %s: %w", t.cfg.Name, err))

		select {
		case <-ctx.Done():
		case <-time.After(t.cfg.ErrorBackoff):
		}
	}

	// The parent context ended without a Shutdown call.
	t.state.CompareAndSwap(int32(types.ThreadActive), int32(types.ThreadStopping))

	t.teardown()
}

func (t *Thread) teardown() {
	var errs []error

	t.mu.Lock()
	departCh := t.departCh
	cancel := t.cancel
	t.mu.Unlock()
	if cancel != nil {
		cancel()
	}

	if departCh != nil {
		if err := t.awaitDeparture(departCh); err != nil {
			t.logger.Warn("departure notification failed", "thread", t.cfg.Name, "member_id", t.MemberID(), "error", err)
			errs = append(errs, err)
		}
	}

	ctx, cancelTeardown := context.WithTimeout(context.Background(), t.cfg.TeardownTimeout)
	defer cancelTeardown()

	if departCh == nil {
		if err := t.cfg.Handle.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to release membership: %w", err))
		}
	}

	if err := t.cfg.Processor.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("failed to close processor: %w", err))
	}

	err := errors.Join(errs...)
	if err != nil {
		err = fmt.Errorf("thread %s teardown: %w", t.cfg.Name, err)
		t.reportError(err)
	}

	t.state.Store(int32(types.ThreadStopped))
	t.metrics.RecordThreadStopped(t.cfg.Name, err != nil)
	t.logger.Info("thread stopped", "thread", t.cfg.Name)

	if t.cfg.OnStopped != nil {
		t.cfg.OnStopped(t.cfg.ID, err)
	}
	close(t.doneCh)
}

func (t *Thread) awaitDeparture(departCh <-chan error) error {
	timer := time.NewTimer(t.cfg.DepartureTimeout)
	defer timer.Stop()

	select {
	case err := <-departCh:
		if err != nil {
			return fmt.Errorf("member %s departure: %w", t.MemberID(), err)
		}

		return nil
	case <-timer.C:
		return fmt.Errorf("member %s departure after %s: %w", t.MemberID(), t.cfg.DepartureTimeout, types.ErrDepartureTimeout)
	}
}

func (t *Thread) reportError(err error) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if hookErr := t.hooks.OnError(ctx, err); hookErr != nil {
			t.logger.Error("OnError hook failed", "thread", t.cfg.Name, "error", hookErr)
		}
	}()
}
