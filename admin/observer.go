// Package admin provides read-only views of consumer group membership for
// operators and tests.
package admin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/arloliu/streamgroup/internal/logging"
	"github.com/arloliu/streamgroup/internal/membership"
	"github.com/arloliu/streamgroup/types"
)

// DefaultPollInterval is used by the wait helpers when interval is not positive.
const DefaultPollInterval = 100 * time.Millisecond

// DefaultExpiryCheckInterval is how often Watch looks for records that aged
// out of the bucket.
const DefaultExpiryCheckInterval = 5 * time.Second

// Observer lists the live members of consumer groups.
type Observer struct {
	kv          jetstream.KeyValue
	logger      types.Logger
	expiryCheck time.Duration
}

// NewObserver creates an observer over an existing membership bucket.
func NewObserver(kv jetstream.KeyValue, logger types.Logger) *Observer {
	if logger == nil {
		logger = logging.NewNop()
	}

	return &Observer{kv: kv, logger: logger, expiryCheck: DefaultExpiryCheckInterval}
}

// Open binds an observer to the named membership bucket.
//
// Parameters:
//   - ctx: Context for the bucket lookup
//   - nc: NATS connection
//   - bucket: Membership bucket name
//
// Returns:
//   - *Observer: Observer bound to the bucket
//   - error: Lookup error, e.g. jetstream.ErrBucketNotFound
func Open(ctx context.Context, nc *nats.Conn, bucket string) (*Observer, error) {
	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	kv, err := js.KeyValue(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to open membership bucket %s: %w", bucket, err)
	}

	return NewObserver(kv, nil), nil
}

// Members returns the live member records of group, ordered by member ID.
//
// Records that vanish between listing and reading are skipped.
func (o *Observer) Members(ctx context.Context, group string) ([]types.MemberRecord, error) {
	lister, err := o.kv.ListKeysFiltered(ctx, membership.GroupFilter(group))
	if err != nil {
		if types.IsNoKeysFoundError(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to list members of %s: %w", group, err)
	}
	defer func() { _ = lister.Stop() }()

	var members []types.MemberRecord
	for key := range lister.Keys() {
		entry, err := o.kv.Get(ctx, key)
		if err != nil {
			if errors.Is(err, jetstream.ErrKeyNotFound) || errors.Is(err, jetstream.ErrKeyDeleted) {
				continue
			}

			return nil, fmt.Errorf("failed to read member %s: %w", key, err)
		}

		var rec types.MemberRecord
		if err := json.Unmarshal(entry.Value(), &rec); err != nil {
			o.logger.Warn("skipping malformed member record", "key", key, "error", err)
			continue
		}
		members = append(members, rec)
	}

	sort.Slice(members, func(i, j int) bool { return members[i].MemberID < members[j].MemberID })

	return members, nil
}

// WaitForEmptyGroup polls until group has no live members or ctx ends.
func (o *Observer) WaitForEmptyGroup(ctx context.Context, group string, interval time.Duration) error {
	return o.waitFor(ctx, group, interval, func(n int) bool { return n == 0 })
}

// WaitForMembers polls until group has exactly n live members or ctx ends.
func (o *Observer) WaitForMembers(ctx context.Context, group string, n int, interval time.Duration) error {
	return o.waitFor(ctx, group, interval, func(count int) bool { return count == n })
}

func (o *Observer) waitFor(ctx context.Context, group string, interval time.Duration, done func(int) bool) error {
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last := -1
	for {
		members, err := o.Members(ctx, group)
		if err != nil && ctx.Err() == nil {
			return err
		}
		if err == nil {
			last = len(members)
			if done(last) {
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("group %s still has %d members: %w", group, last, ctx.Err())
		case <-ticker.C:
		}
	}
}

// MemberEventKind classifies a MemberEvent.
type MemberEventKind int

const (
	// MemberJoined reports a new record under a previously unseen key.
	MemberJoined MemberEventKind = iota
	// MemberReplaced reports a static member taken over by a new incarnation.
	MemberReplaced
	// MemberLeft reports a record removed by a departure.
	MemberLeft
	// MemberExpired reports a record that aged out at the session timeout.
	MemberExpired
)

// String returns the event kind name.
func (k MemberEventKind) String() string {
	switch k {
	case MemberJoined:
		return "Joined"
	case MemberReplaced:
		return "Replaced"
	case MemberLeft:
		return "Left"
	case MemberExpired:
		return "Expired"
	default:
		return "Unknown"
	}
}

// MemberEvent is one membership change of a group.
type MemberEvent struct {
	Kind MemberEventKind
	Key  string
	// Record is the new record; zero for MemberLeft and MemberExpired.
	Record types.MemberRecord
}

// Watch streams membership changes of group until ctx ends.
//
// Heartbeats are not reported. Departures are reported as MemberLeft. The
// bucket emits nothing when a record expires at the session timeout, so the
// watch checks its known keys every DefaultExpiryCheckInterval and reports
// the vanished ones as MemberExpired. The channel is closed when ctx ends or
// the watcher fails.
//
// Parameters:
//   - ctx: Controls the lifetime of the watch
//   - group: Group whose members are watched
//
// Returns:
//   - <-chan MemberEvent: Membership changes, starting with the current members
//   - error: Watcher creation error
func (o *Observer) Watch(ctx context.Context, group string) (<-chan MemberEvent, error) {
	watcher, err := o.kv.Watch(ctx, membership.GroupFilter(group))
	if err != nil {
		return nil, fmt.Errorf("failed to watch members of %s: %w", group, err)
	}

	events := make(chan MemberEvent, 16)
	go func() {
		defer close(events)
		defer func() { _ = watcher.Stop() }()

		expiry := time.NewTicker(o.expiryCheck)
		defer expiry.Stop()

		owners := make(map[string]string) // key -> member ID
		for {
			select {
			case <-ctx.Done():
				return
			case <-expiry.C:
				for _, ev := range o.expired(ctx, owners) {
					select {
					case events <- ev:
					case <-ctx.Done():
						return
					}
				}
			case entry, ok := <-watcher.Updates():
				if !ok {
					return
				}
				if entry == nil {
					continue // end of initial values
				}

				ev, emit := o.classify(owners, entry)
				if !emit {
					continue
				}

				select {
				case events <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return events, nil
}

// expired drops the keys whose records are gone from the bucket.
func (o *Observer) expired(ctx context.Context, owners map[string]string) []MemberEvent {
	var events []MemberEvent
	for key := range owners {
		_, err := o.kv.Get(ctx, key)
		if err == nil {
			continue
		}
		if !errors.Is(err, jetstream.ErrKeyNotFound) && !errors.Is(err, jetstream.ErrKeyDeleted) {
			o.logger.Debug("member expiry check failed", "key", key, "error", err)
			continue
		}

		delete(owners, key)
		events = append(events, MemberEvent{Kind: MemberExpired, Key: key})
	}

	return events
}

func (o *Observer) classify(owners map[string]string, entry jetstream.KeyValueEntry) (MemberEvent, bool) {
	key := entry.Key()

	switch entry.Operation() {
	case jetstream.KeyValueDelete, jetstream.KeyValuePurge:
		if _, known := owners[key]; !known {
			return MemberEvent{}, false
		}
		delete(owners, key)

		return MemberEvent{Kind: MemberLeft, Key: key}, true
	}

	var rec types.MemberRecord
	if err := json.Unmarshal(entry.Value(), &rec); err != nil {
		o.logger.Warn("skipping malformed member record", "key", key, "error", err)
		return MemberEvent{}, false
	}

	prev, known := owners[key]
	owners[key] = rec.MemberID

	switch {
	case !known:
		return MemberEvent{Kind: MemberJoined, Key: key, Record: rec}, true
	case prev != rec.MemberID:
		return MemberEvent{Kind: MemberReplaced, Key: key, Record: rec}, true
	default:
		return MemberEvent{}, false
	}
}
