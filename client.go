package streamgroup

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"golang.org/x/sync/errgroup"

	"github.com/arloliu/streamgroup/internal/hooks"
	"github.com/arloliu/streamgroup/internal/kvutil"
	"github.com/arloliu/streamgroup/internal/logging"
	"github.com/arloliu/streamgroup/internal/membership"
	"github.com/arloliu/streamgroup/internal/metrics"
	"github.com/arloliu/streamgroup/internal/worker"
)

// Client is a multi-threaded stream processing member of a consumer group.
//
// Each of Config.NumStreamThreads worker threads joins the group as its own
// member and runs units of work produced by the ProcessorFactory.
//
// Thread Safety:
//   - All public methods are safe for concurrent use
//   - Only the first Close call performs shutdown; later calls return false
//
// Lifecycle:
//
//	Created → Running → PendingShutdown → Dead
//
//   - Create with NewClient()
//   - Call Start() to join the group and start the threads
//   - Call Close() to stop, optionally leaving the group
//
// Testing:
// Consumers can define minimal interfaces for mocking:
//
//	type StreamClient interface {
//	    Start(ctx context.Context) error
//	    Close(ctx context.Context, opts streamgroup.CloseOptions) (bool, error)
//	}
type Client struct {
	cfg     Config
	conn    *nats.Conn
	factory ProcessorFactory

	// Optional dependencies
	hooks      *Hooks
	metrics    MetricsCollector
	logger     Logger
	membership MembershipFactory

	// NATS membership layer, nil with a custom MembershipFactory
	departer *membership.Departer

	// State management
	state          atomic.Int32 // ClientState
	stateChangedAt atomic.Int64 // unix nanos

	// Lifecycle management
	mu          sync.Mutex
	threads     []*worker.Thread
	runCancel   context.CancelFunc
	startCancel context.CancelFunc
	startDone   chan struct{} // closed when Start returns
	abortLeave  bool          // leaveGroup of a Close that interrupted Start
	stopped   sync.WaitGroup
	done      chan struct{}
	doneOnce  sync.Once
}

// ThreadSnapshot describes one worker thread at a point in time.
type ThreadSnapshot struct {
	ID       int
	Name     string
	MemberID string
	State    ThreadState
}

// NewClient creates a new stream group client.
//
// The configuration is completed with SetDefaults and validated. The client
// owns no process-wide state; any number of clients may coexist.
//
// Parameters:
//   - cfg: Client configuration; ApplicationID is required
//   - conn: NATS connection (may be nil only together with WithMembership)
//   - factory: Builds the processor of each worker thread
//   - opts: Optional configuration (WithLogger, WithMetrics, WithHooks, WithMembership)
//
// Returns:
//   - *Client: Client in Created state
//   - error: ErrNATSConnectionRequired, ErrProcessorFactoryRequired or ErrInvalidConfig
//
// Example:
//
//	cfg := streamgroup.DefaultConfig()
//	cfg.ApplicationID = "orders"
//	cfg.NumStreamThreads = 2
//	client, err := streamgroup.NewClient(cfg, nc, factory)
func NewClient(cfg Config, conn *nats.Conn, factory ProcessorFactory, opts ...Option) (*Client, error) {
	options := &clientOptions{}
	for _, opt := range opts {
		opt(options)
	}

	if conn == nil && options.membership == nil {
		return nil, ErrNATSConnectionRequired
	}
	if factory == nil {
		return nil, ErrProcessorFactoryRequired
	}

	SetDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Provide safe defaults for optional dependencies to avoid nil checks everywhere
	metricsCollector := options.metrics
	if metricsCollector == nil {
		metricsCollector = metrics.NewNop()
	}

	loggerInstance := options.logger
	if loggerInstance == nil {
		loggerInstance = logging.NewNop()
	}

	cfg.ValidateWithWarnings(loggerInstance)

	c := &Client{
		cfg:        cfg,
		conn:       conn,
		factory:    factory,
		hooks:      hooks.WithDefaults(options.hooks),
		metrics:    metricsCollector,
		logger:     loggerInstance,
		membership: options.membership,
		done:       make(chan struct{}),
	}
	c.state.Store(int32(StateCreated))
	c.stateChangedAt.Store(time.Now().UnixNano())

	return c, nil
}

// Start joins every worker thread to the group and starts processing.
//
// The client lock is not held while threads join, so Close stays responsive
// during startup: a Close issued before Start finishes cancels the startup,
// and Start then tears down what it built and returns ErrClientClosed. On any
// other failure everything started so far is torn down and the client ends
// Dead.
//
// Parameters:
//   - ctx: Context for startup; additionally bounded by Config.StartupTimeout
//
// Returns:
//   - error: ErrAlreadyStarted, ErrClientClosed or the startup failure
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	switch c.State() {
	case StateCreated:
		if c.startDone != nil {
			c.mu.Unlock()
			return ErrAlreadyStarted
		}
	case StateRunning:
		c.mu.Unlock()
		return ErrAlreadyStarted
	default:
		c.mu.Unlock()
		return ErrClientClosed
	}

	startCtx, cancel := context.WithTimeout(ctx, c.cfg.StartupTimeout)
	done := make(chan struct{})
	c.startCancel = cancel
	c.startDone = done
	c.mu.Unlock()

	defer close(done)
	defer cancel()

	c.logger.Info("starting client",
		"client_id", c.cfg.ClientID,
		"group", c.cfg.ApplicationID,
		"threads", c.cfg.NumStreamThreads,
	)

	if err := c.startMembership(startCtx); err != nil {
		return c.abortStart(nil, nil, err)
	}

	// Thread contexts outlive the Start call; Close cancels them.
	runCtx, runCancel := context.WithCancel(context.WithoutCancel(ctx))

	host, _ := os.Hostname()
	threads := make([]*worker.Thread, 0, c.cfg.NumStreamThreads)
	for id := 1; id <= c.cfg.NumStreamThreads; id++ {
		th, err := c.startThread(startCtx, id, host)
		if err != nil {
			c.logError("failed to start thread", "thread_id", id, "error", err)
			return c.abortStart(threads, runCancel, fmt.Errorf("failed to start thread %d: %w", id, err))
		}
		threads = append(threads, th)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.State() != StateCreated {
		c.logger.Info("close requested during startup, aborting", "client_id", c.cfg.ClientID)
		c.abortLocked(threads, runCancel)

		return ErrClientClosed
	}

	c.threads = threads
	c.runCancel = runCancel
	for _, th := range threads {
		th.Start(runCtx)
	}

	c.transitionState(StateCreated, StateRunning)
	c.logger.Info("client started", "client_id", c.cfg.ClientID)

	return nil
}

func (c *Client) startMembership(ctx context.Context) error {
	if c.membership != nil {
		return nil
	}

	js, err := jetstream.New(c.conn)
	if err != nil {
		return fmt.Errorf("failed to create JetStream context: %w", err)
	}

	kv, err := kvutil.EnsureKVBucketWithRetry(ctx, js, jetstream.KeyValueConfig{
		Bucket:   c.cfg.KVBuckets.MembershipBucket,
		TTL:      c.cfg.SessionTimeout,
		Replicas: c.cfg.KVBuckets.Replicas,
		Storage:  jetstream.FileStorage,
	}, 3)
	if err != nil {
		return fmt.Errorf("failed to ensure membership bucket: %w", err)
	}

	c.departer = membership.NewDeparter(kv, membership.DeparterConfig{
		QueueSize:        c.cfg.DepartureQueueSize,
		OperationTimeout: c.cfg.OperationTimeout,
		Logger:           c.logger,
		Metrics:          c.metrics,
	})
	c.departer.Start()

	sessionCfg := membership.SessionConfig{
		HeartbeatInterval: c.cfg.HeartbeatInterval,
		Logger:            c.logger,
		Metrics:           c.metrics,
	}
	c.membership = func(ctx context.Context, rec MemberRecord) (MembershipHandle, error) {
		return membership.Join(ctx, kv, c.departer, rec, sessionCfg)
	}

	return nil
}

func (c *Client) startThread(ctx context.Context, id int, host string) (*worker.Thread, error) {
	name := fmt.Sprintf("%s-StreamThread-%d", c.cfg.ClientID, id)
	rec := MemberRecord{
		MemberID:        membership.NewMemberID(c.cfg.ClientID, id),
		GroupID:         c.cfg.ApplicationID,
		GroupInstanceID: membership.InstanceID(c.cfg.GroupInstanceID, id),
		ClientID:        c.cfg.ClientID,
		ThreadID:        id,
		Host:            host,
	}

	handle, err := c.membership(ctx, rec)
	if err != nil {
		return nil, fmt.Errorf("failed to join group %s: %w", c.cfg.ApplicationID, err)
	}

	processor, err := c.factory(ctx, ThreadInfo{ID: id, Name: name, MemberID: handle.MemberID()})
	if err != nil {
		if closeErr := handle.Close(ctx); closeErr != nil {
			c.logError("failed to release membership", "member_id", handle.MemberID(), "error", closeErr)
		}

		return nil, fmt.Errorf("failed to build processor: %w", err)
	}

	c.stopped.Add(1)
	th := worker.New(worker.Config{
		ID:               id,
		Name:             name,
		Handle:           handle,
		Processor:        processor,
		DepartureTimeout: c.cfg.DepartureTimeout,
		TeardownTimeout:  c.cfg.OperationTimeout,
		Logger:           c.logger,
		Metrics:          c.metrics,
		Hooks:            c.hooks,
		OnStopped:        c.onThreadStopped,
	})

	c.logger.Debug("thread joined group", "thread", name, "member_id", handle.MemberID())

	return th, nil
}

// abortStart tears down a partial start after a failure. When a Close
// arrived meanwhile the failure is reported as ErrClientClosed.
func (c *Client) abortStart(threads []*worker.Thread, runCancel context.CancelFunc, err error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	closing := c.State() != StateCreated
	c.abortLocked(threads, runCancel)

	if closing {
		return fmt.Errorf("%w: %w", ErrClientClosed, err)
	}

	return err
}

// abortLocked stops threads that never ran and moves the client to Dead.
// A Close waiting on the startup decides whether they leave the group.
// Caller holds c.mu.
func (c *Client) abortLocked(threads []*worker.Thread, runCancel context.CancelFunc) {
	c.threads = threads
	for _, th := range threads {
		th.Shutdown(c.abortLeave)
		th.Start(context.Background())
	}
	if runCancel != nil {
		runCancel()
	}

	if c.State() == StateCreated {
		c.transitionState(StateCreated, StatePendingShutdown)
	}
	if c.State() == StatePendingShutdown {
		c.transitionState(StatePendingShutdown, StateDead)
	}
	c.finishWhenStopped()
}

// Close stops every worker thread.
//
// Only the first call on a Created or Running client does any work. It moves
// the client to PendingShutdown, signals all threads concurrently (requesting
// departure from the group when opts.LeaveGroup() is set), and then waits up to
// opts.Timeout() for the threads to stop. When it returns the client is Dead,
// whether or not every thread confirmed; unconfirmed threads keep stopping in
// the background.
//
// A Close issued while Start is still running cancels the startup and waits,
// within the same timeout, for Start to tear down the threads it built.
//
// The timeout is the only bound on the wait. ctx is handed to hooks and
// identifies the caller: a worker thread closing its own client from a unit
// context is not waited for.
//
// Parameters:
//   - ctx: Caller context
//   - opts: Close options; the zero value waits forever and stays in the group
//
// Returns:
//   - bool: true if every thread stopped within the timeout
//   - error: ErrInvalidArgument for a negative timeout, nil otherwise
//
// Example:
//
//	ok, err := client.Close(ctx, streamgroup.NewCloseOptions().
//	    WithLeaveGroup(true).
//	    WithTimeout(30*time.Second))
func (c *Client) Close(ctx context.Context, opts CloseOptions) (bool, error) {
	if err := opts.Validate(); err != nil {
		return false, err
	}

	began := time.Now()

	c.mu.Lock()
	current := c.State()
	switch current {
	case StatePendingShutdown, StateDead:
		c.mu.Unlock()
		c.logger.Debug("close ignored, client already closing", "client_id", c.cfg.ClientID, "state", current.String())
		c.metrics.RecordCloseOutcome(CloseAlreadyClosed, 0)

		return false, nil
	case StateCreated:
		c.transitionState(StateCreated, StatePendingShutdown)
		if c.startDone != nil {
			return c.closeStarting(ctx, opts, began)
		}
		c.transitionState(StatePendingShutdown, StateDead)
		c.finishWhenStopped()
		c.mu.Unlock()
		c.completeClose(ctx, CloseClean, began)

		return true, nil
	}

	c.transitionState(StateRunning, StatePendingShutdown)
	threads := c.threads
	c.mu.Unlock()

	c.logger.Info("closing client",
		"client_id", c.cfg.ClientID,
		"leave_group", opts.LeaveGroup(),
		"timeout", opts.String(),
	)

	c.signalThreads(threads, opts.LeaveGroup())

	// Stop the departure queue only once every thread is done with it.
	c.finishWhenStopped()

	clean := c.awaitThreads(c.waitSet(ctx, threads), opts)

	return c.finishClose(ctx, clean, opts, began), nil
}

// closeStarting closes a client whose Start is still running. It cancels the
// startup and waits, within the close timeout, for Start to tear down the
// threads it built. Caller holds c.mu; it is released here.
func (c *Client) closeStarting(ctx context.Context, opts CloseOptions, began time.Time) (bool, error) {
	c.abortLeave = opts.LeaveGroup()
	c.startCancel()
	startDone := c.startDone
	c.mu.Unlock()

	c.logger.Info("closing client during startup",
		"client_id", c.cfg.ClientID,
		"leave_group", opts.LeaveGroup(),
		"timeout", opts.String(),
	)

	allStopped := make(chan struct{})
	go func() {
		<-startDone
		// Start no longer adds threads, so waiting on the group is safe.
		c.stopped.Wait()
		close(allStopped)
	}()

	clean := c.awaitThreads(allStopped, opts)

	return c.finishClose(ctx, clean, opts, began), nil
}

// finishClose moves the client to Dead and reports the outcome.
func (c *Client) finishClose(ctx context.Context, clean bool, opts CloseOptions, began time.Time) bool {
	c.mu.Lock()
	if c.State() == StatePendingShutdown {
		c.transitionState(StatePendingShutdown, StateDead)
	}
	c.mu.Unlock()

	outcome := CloseClean
	if !clean {
		outcome = CloseTimedOut
		c.logger.Warn("close timed out before all threads stopped", "client_id", c.cfg.ClientID, "timeout", opts.String())
	} else {
		c.logger.Info("client closed", "client_id", c.cfg.ClientID)
	}
	c.completeClose(ctx, outcome, began)

	return clean
}

// Stop closes the client without leaving the group, waiting up to
// Config.DefaultCloseTimeout.
//
// Returns:
//   - error: ErrCloseTimedOut if threads were still stopping at the deadline,
//     ErrClientClosed if the client was already closing
func (c *Client) Stop(ctx context.Context) error {
	if c.State().IsTerminal() {
		return ErrClientClosed
	}

	clean, err := c.Close(ctx, NewCloseOptions().WithTimeout(c.cfg.DefaultCloseTimeout))
	if err != nil {
		return err
	}
	if !clean {
		return ErrCloseTimedOut
	}

	return nil
}

// signalThreads fans Shutdown out concurrently and returns once every thread
// observed it.
func (c *Client) signalThreads(threads []*worker.Thread, leaveGroup bool) {
	var g errgroup.Group
	for _, th := range threads {
		g.Go(func() error {
			th.Shutdown(leaveGroup)
			return nil
		})
	}
	_ = g.Wait()

	if c.runCancel != nil {
		c.runCancel()
	}
}

// waitSet returns a channel closed once every thread except the caller's own
// has stopped.
func (c *Client) waitSet(ctx context.Context, threads []*worker.Thread) <-chan struct{} {
	self := worker.FromContext(ctx)

	var wg sync.WaitGroup
	for _, th := range threads {
		if th == self {
			c.logger.Debug("close called from worker thread, not waiting for it", "thread", th.Name())
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-th.Done()
		}()
	}

	ch := make(chan struct{})
	go func() {
		wg.Wait()
		close(ch)
	}()

	return ch
}

func (c *Client) awaitThreads(allStopped <-chan struct{}, opts CloseOptions) bool {
	timeout := opts.Timeout()
	if timeout == 0 {
		return false
	}

	if opts.IsInfinite() {
		<-allStopped
		return true
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-allStopped:
		return true
	case <-timer.C:
		return false
	}
}

func (c *Client) onThreadStopped(id int, err error) {
	if err != nil {
		c.logger.Warn("thread stopped with errors", "thread_id", id, "error", err)
	}
	c.stopped.Done()
}

// finishWhenStopped stops the departure queue and closes Done once all
// threads have stopped. Safe to call more than once.
func (c *Client) finishWhenStopped() {
	c.doneOnce.Do(func() {
		go func() {
			c.stopped.Wait()

			if c.departer != nil {
				ctx, cancel := context.WithTimeout(context.Background(), c.cfg.OperationTimeout)
				if err := c.departer.Stop(ctx); err != nil {
					c.logError("departure queue did not drain", "error", err)
				}
				cancel()
			}

			close(c.done)
		}()
	})
}

func (c *Client) completeClose(ctx context.Context, outcome CloseOutcome, began time.Time) {
	c.metrics.RecordCloseOutcome(outcome, time.Since(began).Seconds())

	if err := c.hooks.OnCloseCompleted(context.WithoutCancel(ctx), outcome); err != nil {
		c.logError("close completed hook error", "outcome", outcome.String(), "error", err)
	}
}

// State returns the current client state.
func (c *Client) State() ClientState {
	return ClientState(c.state.Load())
}

// Threads returns a snapshot of the worker threads, ordered by ID.
func (c *Client) Threads() []ThreadSnapshot {
	c.mu.Lock()
	threads := c.threads
	c.mu.Unlock()

	out := make([]ThreadSnapshot, 0, len(threads))
	for _, th := range threads {
		info := th.Info()
		out = append(out, ThreadSnapshot{ID: info.ID, Name: info.Name, MemberID: info.MemberID, State: info.State})
	}

	return out
}

// Config returns the effective configuration, defaults applied.
func (c *Client) Config() Config {
	return c.cfg
}

// Done returns a channel closed once the client is Dead and every worker
// thread has stopped.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// WaitState waits for the client to reach the expected state.
//
// Parameters:
//   - expectedState: The state to wait for
//   - timeout: Maximum time to wait
//
// Returns:
//   - <-chan error: Receives nil on success or context.DeadlineExceeded on timeout
//
// Example:
//
//	if err := <-client.WaitState(streamgroup.StateRunning, 10*time.Second); err != nil {
//	    log.Fatal(err)
//	}
func (c *Client) WaitState(expectedState ClientState, timeout time.Duration) <-chan error {
	ch := make(chan error, 1) // Buffered to prevent goroutine leak

	go func() {
		defer close(ch)

		if c.State() == expectedState {
			ch <- nil
			return
		}

		ticker := time.NewTicker(20 * time.Millisecond)
		defer ticker.Stop()

		timeoutTimer := time.NewTimer(timeout)
		defer timeoutTimer.Stop()

		for {
			select {
			case <-ticker.C:
				if c.State() == expectedState {
					ch <- nil
					return
				}
			case <-timeoutTimer.C:
				ch <- context.DeadlineExceeded
				return
			}
		}
	}()

	return ch
}

// transitionState moves the state machine. Caller holds c.mu.
func (c *Client) transitionState(from, to ClientState) {
	if !from.CanTransitionTo(to) || c.State() != from {
		c.logError("invalid state transition attempted",
			"from", from.String(),
			"to", to.String(),
			"current", c.State().String(),
		)

		return
	}

	c.state.Store(int32(to)) //nolint:gosec // ClientState values are a controlled enum

	now := time.Now().UnixNano()
	elapsed := time.Duration(now - c.stateChangedAt.Swap(now))

	c.logger.Info("state transition",
		"from", from.String(),
		"to", to.String(),
		"client_id", c.cfg.ClientID,
	)

	// Run hook in background to avoid blocking state machine
	go func() {
		if err := c.hooks.OnStateChanged(context.Background(), from, to); err != nil {
			c.logError("state change hook error", "from", from, "to", to, "error", err)
		}
	}()

	c.metrics.RecordStateTransition(from, to, elapsed.Seconds())
}

func (c *Client) logError(msg string, keysAndValues ...any) {
	// Logger is always non-nil (defaults to nopLogger)
	c.logger.Error(msg, keysAndValues...)
}

// Compile-time assertion that the session satisfies the public handle type.
var _ MembershipHandle = (*membership.Session)(nil)
