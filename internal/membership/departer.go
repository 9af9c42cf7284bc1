package membership

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/puzpuzpuz/xsync/v4"

	"github.com/arloliu/streamgroup/internal/logging"
	"github.com/arloliu/streamgroup/internal/metrics"
	"github.com/arloliu/streamgroup/internal/natsutil"
	"github.com/arloliu/streamgroup/types"
)

// Default departer settings.
const (
	DefaultQueueSize        = 64
	DefaultOperationTimeout = 5 * time.Second
)

// DeparterConfig configures a Departer.
type DeparterConfig struct {
	// QueueSize bounds the number of pending departure requests.
	QueueSize int
	// OperationTimeout bounds one delete including its retries.
	OperationTimeout time.Duration
	// Logger receives departure events. Defaults to a no-op logger.
	Logger types.Logger
	// Metrics receives departure results. Defaults to no-op metrics.
	Metrics types.MetricsCollector
}

type departure struct {
	memberID string
	key      string
	quiesced <-chan struct{}
	revision func() uint64
	result   chan error
}

// Departer removes member records from the membership bucket on request.
//
// Requests are queued on a bounded channel and processed by a single
// goroutine. Submit never blocks.
type Departer struct {
	kv      jetstream.KeyValue
	cfg     DeparterConfig
	logger  types.Logger
	metrics types.MetricsCollector

	queue     chan *departure
	submitted *xsync.Map[string, struct{}]

	mu      sync.RWMutex
	started bool
	stopped bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewDeparter creates a departure queue over the given membership bucket.
//
// Parameters:
//   - kv: Membership KV bucket
//   - cfg: Queue configuration; zero values fall back to defaults
//
// Returns:
//   - *Departer: Departer ready to Start
func NewDeparter(kv jetstream.KeyValue, cfg DeparterConfig) *Departer {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.OperationTimeout <= 0 {
		cfg.OperationTimeout = DefaultOperationTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NewNop()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NewNop()
	}

	return &Departer{
		kv:        kv,
		cfg:       cfg,
		logger:    cfg.Logger,
		metrics:   cfg.Metrics,
		queue:     make(chan *departure, cfg.QueueSize),
		submitted: xsync.NewMap[string, struct{}](),
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// Start launches the consumer goroutine. Calling Start twice is a no-op.
func (d *Departer) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.started || d.stopped {
		return
	}
	d.started = true

	go d.run()
}

// Submit enqueues the removal of a member record.
//
// The returned channel receives exactly one result and is then closed. A
// member already submitted resolves to nil without a second delete. When the
// queue is full or stopped the result is available immediately.
//
// Parameters:
//   - memberID: Member identity used for deduplication
//   - key: KV key of the member record
//   - quiesced: Closed once the member's keep-alive stopped writing; may be nil
//   - revision: Reports the member's last written revision once quiesced. The
//     delete only applies while the record is still at that revision; a record
//     rewritten by someone else counts as already gone. May be nil.
//
// Returns:
//   - <-chan error: Departure result
func (d *Departer) Submit(memberID, key string, quiesced <-chan struct{}, revision func() uint64) <-chan error {
	result := make(chan error, 1)

	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.stopped {
		return resolved(result, errStopped(memberID))
	}

	if _, loaded := d.submitted.LoadOrStore(memberID, struct{}{}); loaded {
		return resolved(result, nil)
	}

	req := &departure{memberID: memberID, key: key, quiesced: quiesced, revision: revision, result: result}

	select {
	case d.queue <- req:
		d.metrics.RecordDepartureQueueDepth(len(d.queue))

		return result
	default:
		d.submitted.Delete(memberID)
		d.metrics.RecordDeparture(memberID, false)
		d.logger.Warn("departure queue full", "member_id", memberID, "capacity", cap(d.queue))

		return resolved(result, fmt.Errorf("member %s: %w", memberID, types.ErrDepartureQueueFull))
	}
}

func errStopped(memberID string) error {
	return fmt.Errorf("member %s: %w", memberID, types.ErrDepartureStopped)
}

// Pending returns the number of queued requests.
func (d *Departer) Pending() int {
	return len(d.queue)
}

// Stop rejects new requests, drains the queued ones and waits for the
// consumer goroutine to exit.
//
// Parameters:
//   - ctx: Bounds the wait for the drain
//
// Returns:
//   - error: ctx.Err() if the drain did not finish in time
func (d *Departer) Stop(ctx context.Context) error {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return d.waitDone(ctx)
	}
	d.stopped = true
	started := d.started
	close(d.stopCh)
	d.mu.Unlock()

	if !started {
		// Nothing consumes the queue; fail whatever is pending.
		d.drain(func(req *departure) {
			d.complete(req, errStopped(req.memberID))
		})
		close(d.doneCh)

		return nil
	}

	return d.waitDone(ctx)
}

func (d *Departer) waitDone(ctx context.Context) error {
	select {
	case <-d.doneCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Departer) run() {
	defer close(d.doneCh)

	for {
		select {
		case req := <-d.queue:
			d.process(req)
		case <-d.stopCh:
			d.drain(d.process)
			return
		}
	}
}

func (d *Departer) drain(fn func(*departure)) {
	for {
		select {
		case req := <-d.queue:
			fn(req)
		default:
			return
		}
	}
}

func (d *Departer) process(req *departure) {
	d.metrics.RecordDepartureQueueDepth(len(d.queue))

	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.OperationTimeout)
	defer cancel()

	if req.quiesced != nil {
		select {
		case <-req.quiesced:
		case <-ctx.Done():
			d.complete(req, fmt.Errorf("member %s keep-alive did not stop: %w", req.memberID, types.ErrDepartureTimeout))
			return
		}
	}

	var rev uint64
	if req.revision != nil {
		rev = req.revision()
	}

	err := d.delete(ctx, req.key, rev)
	if errors.Is(err, errRecordReplaced) {
		d.logger.Debug("member record no longer owned, nothing to remove", "member_id", req.memberID, "key", req.key)
		err = nil
	}
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = errors.Join(types.ErrDepartureTimeout, err)
		}
		d.complete(req, fmt.Errorf("failed to remove member %s: %w", req.memberID, err))

		return
	}

	d.complete(req, nil)
}

var errRecordReplaced = errors.New("member record rewritten since last write")

// delete removes the record, retrying connectivity failures until ctx ends.
// A non-zero revision makes the delete conditional on the record being
// unchanged since that revision.
func (d *Departer) delete(ctx context.Context, key string, revision uint64) error {
	var opts []jetstream.KVDeleteOpt
	if revision != 0 {
		opts = append(opts, jetstream.LastRevision(revision))
	}

	operation := func() error {
		err := d.kv.Delete(ctx, key, opts...)
		if err == nil || errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil
		}
		if isWrongRevision(err) {
			return backoff.Permanent(errRecordReplaced)
		}
		if natsutil.IsConnectivityError(err) {
			return err
		}

		return backoff.Permanent(err)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Millisecond
	b.MaxInterval = time.Second
	b.MaxElapsedTime = 0

	return backoff.Retry(operation, backoff.WithContext(b, ctx))
}

func isWrongRevision(err error) bool {
	if errors.Is(err, jetstream.ErrKeyExists) {
		return true
	}

	var apiErr *jetstream.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode == jetstream.JSErrCodeStreamWrongLastSequence
	}

	return false
}

func (d *Departer) complete(req *departure, err error) {
	if err != nil {
		d.logger.Warn("departure failed", "member_id", req.memberID, "error", err)
	} else {
		d.logger.Debug("member departed", "member_id", req.memberID)
	}
	d.metrics.RecordDeparture(req.memberID, err == nil)

	req.result <- err
	close(req.result)
}

func resolved(ch chan error, err error) <-chan error {
	ch <- err
	close(ch)

	return ch
}
