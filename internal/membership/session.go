package membership

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/arloliu/streamgroup/internal/logging"
	"github.com/arloliu/streamgroup/internal/metrics"
	"github.com/arloliu/streamgroup/types"
)

// DefaultHeartbeatInterval is used when SessionConfig.HeartbeatInterval is zero.
const DefaultHeartbeatInterval = time.Second

const heartbeatWriteTimeout = 5 * time.Second

// SessionConfig configures a membership session.
type SessionConfig struct {
	// HeartbeatInterval is the keep-alive period. Must be well below the bucket TTL.
	HeartbeatInterval time.Duration
	Logger            types.Logger
	Metrics           types.MetricsCollector
}

// Session is one thread's membership in a consumer group.
//
// It implements types.MembershipHandle. The member record is refreshed by a
// background keep-alive loop until Close or RequestDeparture is called.
type Session struct {
	kv       jetstream.KeyValue
	departer *Departer
	key      string
	interval time.Duration
	logger   types.Logger
	metrics  types.MetricsCollector

	mu       sync.Mutex
	record   types.MemberRecord
	revision uint64
	fenced   bool

	stopOnce   sync.Once
	stopCh     chan struct{}
	doneCh     chan struct{}
	departOnce sync.Once
	departCh   <-chan error
}

// Compile-time assertion that Session implements MembershipHandle.
var _ types.MembershipHandle = (*Session)(nil)

// Join registers rec in the membership bucket and starts the keep-alive loop.
//
// Dynamic members (empty GroupInstanceID) are created exclusively, so joining
// with a live member ID fails with types.ErrMemberExists. Static members
// overwrite the record of their previous incarnation.
//
// Parameters:
//   - ctx: Bounds the initial write
//   - kv: Membership bucket; its TTL acts as the session timeout
//   - departer: Departure queue used by RequestDeparture
//   - rec: Member record; JoinedAt and HeartbeatAt are set here
//   - cfg: Session configuration
//
// Returns:
//   - *Session: Live session
//   - error: types.ErrMemberExists or a wrapped KV error
func Join(ctx context.Context, kv jetstream.KeyValue, departer *Departer, rec types.MemberRecord, cfg SessionConfig) (*Session, error) {
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NewNop()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NewNop()
	}

	now := time.Now().UTC()
	rec.JoinedAt = now
	rec.HeartbeatAt = now

	s := &Session{
		kv:       kv,
		departer: departer,
		key:      MemberKey(rec),
		interval: cfg.HeartbeatInterval,
		logger:   cfg.Logger,
		metrics:  cfg.Metrics,
		record:   rec,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}

	value, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to encode member record: %w", err)
	}

	var rev uint64
	if rec.GroupInstanceID != "" {
		rev, err = kv.Put(ctx, s.key, value)
	} else {
		rev, err = kv.Create(ctx, s.key, value)
	}
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyExists) {
			return nil, fmt.Errorf("member %s: %w", rec.MemberID, types.ErrMemberExists)
		}

		return nil, fmt.Errorf("failed to join group %s: %w", rec.GroupID, err)
	}
	s.revision = rev

	s.logger.Debug("joined group", "group", rec.GroupID, "member_id", rec.MemberID, "key", s.key)

	go s.keepAlive()

	return s, nil
}

// MemberID returns the member identity of this session.
func (s *Session) MemberID() string {
	return s.record.MemberID
}

// Key returns the KV key of the member record.
func (s *Session) Key() string {
	return s.key
}

// RequestDeparture stops the keep-alive and enqueues removal of the member
// record. It never blocks and always returns the channel of the first call.
//
// Only the record this session last wrote is removed. A fenced session, whose
// key now belongs to a newer incarnation, departs without touching it.
func (s *Session) RequestDeparture() <-chan error {
	s.departOnce.Do(func() {
		s.stop()
		if s.Fenced() {
			s.logger.Debug("fenced member departs without removing the record", "member_id", s.record.MemberID, "key", s.key)
			s.departCh = resolved(make(chan error, 1), nil)

			return
		}
		if s.departer == nil {
			s.departCh = resolved(make(chan error, 1), errStopped(s.record.MemberID))
			return
		}
		s.departCh = s.departer.Submit(s.record.MemberID, s.key, s.doneCh, s.lastRevision)
	})

	return s.departCh
}

// lastRevision returns the revision of the session's last successful write.
func (s *Session) lastRevision() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.revision
}

// Close stops the keep-alive without removing the member record, which then
// expires at the session timeout. It waits for the loop to exit or ctx to end.
func (s *Session) Close(ctx context.Context) error {
	s.stop()

	select {
	case <-s.doneCh:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("member %s keep-alive still running: %w", s.record.MemberID, ctx.Err())
	}
}

// Fenced reports whether another incarnation took over the member record.
func (s *Session) Fenced() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.fenced
}

func (s *Session) stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

func (s *Session) keepAlive() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), heartbeatWriteTimeout)
			err := s.heartbeat(ctx)
			cancel()

			s.metrics.RecordHeartbeat(s.record.MemberID, err == nil)
			if err != nil {
				if errors.Is(err, errFenced) {
					s.logger.Warn("member record taken over, keep-alive stopped", "member_id", s.record.MemberID, "key", s.key)
					return
				}
				s.logger.Warn("heartbeat failed", "member_id", s.record.MemberID, "error", err)
			}
		}
	}
}

var errFenced = errors.New("member record owned by another member")

// heartbeat refreshes the record with a revision check so a departed or
// replaced member is never resurrected by a late write.
func (s *Session) heartbeat(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.record.HeartbeatAt = time.Now().UTC()
	value, err := json.Marshal(s.record)
	if err != nil {
		return fmt.Errorf("failed to encode member record: %w", err)
	}

	rev, err := s.kv.Update(ctx, s.key, value, s.revision)
	if err == nil {
		s.revision = rev
		return nil
	}

	entry, getErr := s.kv.Get(ctx, s.key)
	switch {
	case errors.Is(getErr, jetstream.ErrKeyNotFound), errors.Is(getErr, jetstream.ErrKeyDeleted):
		// The record expired: rejoin under the same identity.
		rev, err = s.kv.Create(ctx, s.key, value)
		if err != nil {
			return fmt.Errorf("failed to rejoin after session expiry: %w", err)
		}
		s.revision = rev
		s.logger.Info("session expired, rejoined", "member_id", s.record.MemberID)

		return nil
	case getErr != nil:
		return fmt.Errorf("failed to refresh member record: %w", errors.Join(err, getErr))
	}

	var current types.MemberRecord
	if jsonErr := json.Unmarshal(entry.Value(), &current); jsonErr != nil || current.MemberID != s.record.MemberID {
		s.fenced = true
		return errFenced
	}

	// Same member, stale revision: adopt it and retry on the next tick.
	s.revision = entry.Revision()

	return fmt.Errorf("stale member record revision: %w", err)
}
