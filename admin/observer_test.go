package admin

import (
	"context"
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/streamgroup/internal/membership"
	sgtest "github.com/arloliu/streamgroup/testing"
	"github.com/arloliu/streamgroup/types"
)

func join(t *testing.T, kv jetstream.KeyValue, d *membership.Departer, group string, thread int) *membership.Session {
	t.Helper()

	rec := types.MemberRecord{
		MemberID: membership.NewMemberID("client", thread),
		GroupID:  group,
		ClientID: "client",
		ThreadID: thread,
	}
	s, err := membership.Join(t.Context(), kv, d, rec, membership.SessionConfig{HeartbeatInterval: 100 * time.Millisecond})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close(context.Background()) })

	return s
}

func TestObserver_Members(t *testing.T) {
	_, nc := sgtest.StartEmbeddedNATS(t)
	kv := sgtest.CreateJetStreamKV(t, nc, "observer-members", 10*time.Second)
	obs := NewObserver(kv, sgtest.NewTestLogger(t))

	members, err := obs.Members(t.Context(), "orders")
	require.NoError(t, err)
	require.Empty(t, members)

	a := join(t, kv, nil, "orders", 1)
	b := join(t, kv, nil, "orders", 2)
	join(t, kv, nil, "payments", 1)

	members, err = obs.Members(t.Context(), "orders")
	require.NoError(t, err)
	require.Len(t, members, 2)

	ids := []string{members[0].MemberID, members[1].MemberID}
	require.ElementsMatch(t, []string{a.MemberID(), b.MemberID()}, ids)
	require.LessOrEqual(t, members[0].MemberID, members[1].MemberID)

	_, err = kv.Put(t.Context(), "orders.broken", []byte("not json"))
	require.NoError(t, err)

	members, err = obs.Members(t.Context(), "orders")
	require.NoError(t, err)
	require.Len(t, members, 2)
}

func TestObserver_WaitForEmptyGroup(t *testing.T) {
	t.Run("returns once every member departed", func(t *testing.T) {
		_, nc := sgtest.StartEmbeddedNATS(t)
		kv := sgtest.CreateJetStreamKV(t, nc, "observer-empty", 10*time.Second)
		d := membership.NewDeparter(kv, membership.DeparterConfig{})
		d.Start()
		defer func() { _ = d.Stop(context.Background()) }()

		obs := NewObserver(kv, nil)
		sessions := []*membership.Session{join(t, kv, d, "orders", 1), join(t, kv, d, "orders", 2)}
		require.NoError(t, obs.WaitForMembers(t.Context(), "orders", 2, 10*time.Millisecond))

		for _, s := range sessions {
			s.RequestDeparture()
		}

		ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
		defer cancel()
		require.NoError(t, obs.WaitForEmptyGroup(ctx, "orders", 10*time.Millisecond))
	})

	t.Run("times out while members remain", func(t *testing.T) {
		_, nc := sgtest.StartEmbeddedNATS(t)
		kv := sgtest.CreateJetStreamKV(t, nc, "observer-timeout", 10*time.Second)
		obs := NewObserver(kv, nil)
		join(t, kv, nil, "orders", 1)

		ctx, cancel := context.WithTimeout(t.Context(), 200*time.Millisecond)
		defer cancel()

		err := obs.WaitForEmptyGroup(ctx, "orders", 20*time.Millisecond)
		require.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestOpen(t *testing.T) {
	_, nc := sgtest.StartEmbeddedNATS(t)

	_, err := Open(t.Context(), nc, "missing-bucket")
	require.Error(t, err)

	sgtest.CreateJetStreamKV(t, nc, "observer-open", 10*time.Second)
	obs, err := Open(t.Context(), nc, "observer-open")
	require.NoError(t, err)

	members, err := obs.Members(t.Context(), "orders")
	require.NoError(t, err)
	require.Empty(t, members)
}

func nextEvent(t *testing.T, events <-chan MemberEvent) MemberEvent {
	t.Helper()

	select {
	case ev, ok := <-events:
		require.True(t, ok, "event channel closed")
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("no membership event")
	}

	return MemberEvent{}
}

func TestObserver_Watch(t *testing.T) {
	_, nc := sgtest.StartEmbeddedNATS(t)
	kv := sgtest.CreateJetStreamKV(t, nc, "observer-watch", 10*time.Second)
	d := membership.NewDeparter(kv, membership.DeparterConfig{})
	d.Start()
	defer func() { _ = d.Stop(context.Background()) }()

	existing := join(t, kv, d, "orders", 1)
	join(t, kv, nil, "payments", 1)

	ctx, cancel := context.WithCancel(t.Context())
	obs := NewObserver(kv, nil)
	events, err := obs.Watch(ctx, "orders")
	require.NoError(t, err)

	ev := nextEvent(t, events)
	require.Equal(t, MemberJoined, ev.Kind)
	require.Equal(t, existing.MemberID(), ev.Record.MemberID)

	// Static member and its restarted incarnation share one key.
	static := types.MemberRecord{
		MemberID:        membership.NewMemberID("client", 2),
		GroupID:         "orders",
		GroupInstanceID: "inst-2",
		ClientID:        "client",
		ThreadID:        2,
	}
	cfg := membership.SessionConfig{HeartbeatInterval: 100 * time.Millisecond}
	first, err := membership.Join(t.Context(), kv, nil, static, cfg)
	require.NoError(t, err)
	defer func() { _ = first.Close(context.Background()) }()

	ev = nextEvent(t, events)
	require.Equal(t, MemberJoined, ev.Kind)
	require.Equal(t, first.MemberID(), ev.Record.MemberID)

	static.MemberID = membership.NewMemberID("client-restarted", 2)
	second, err := membership.Join(t.Context(), kv, nil, static, cfg)
	require.NoError(t, err)
	defer func() { _ = second.Close(context.Background()) }()

	ev = nextEvent(t, events)
	require.Equal(t, MemberReplaced, ev.Kind)
	require.Equal(t, second.MemberID(), ev.Record.MemberID)
	require.Equal(t, first.Key(), ev.Key)

	require.NoError(t, <-existing.RequestDeparture())

	ev = nextEvent(t, events)
	require.Equal(t, MemberLeft, ev.Kind)
	require.Equal(t, existing.Key(), ev.Key)

	cancel()
	require.Eventually(t, func() bool {
		select {
		case _, ok := <-events:
			return !ok
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)
}

func TestObserver_WatchExpiry(t *testing.T) {
	_, nc := sgtest.StartEmbeddedNATS(t)
	kv := sgtest.CreateJetStreamKV(t, nc, "observer-expiry", time.Second)

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	obs := NewObserver(kv, nil)
	obs.expiryCheck = 100 * time.Millisecond
	events, err := obs.Watch(ctx, "orders")
	require.NoError(t, err)

	rec := types.MemberRecord{
		MemberID:        membership.NewMemberID("client", 1),
		GroupID:         "orders",
		GroupInstanceID: "inst-1",
		ClientID:        "client",
		ThreadID:        1,
	}
	cfg := membership.SessionConfig{HeartbeatInterval: 100 * time.Millisecond}
	first, err := membership.Join(t.Context(), kv, nil, rec, cfg)
	require.NoError(t, err)

	ev := nextEvent(t, events)
	require.Equal(t, MemberJoined, ev.Kind)

	// Stop heartbeating and let the record age out.
	require.NoError(t, first.Close(t.Context()))

	ev = nextEvent(t, events)
	require.Equal(t, MemberExpired, ev.Kind)
	require.Equal(t, first.Key(), ev.Key)
	require.Empty(t, ev.Record.MemberID)

	// The key is forgotten, so a later incarnation joins afresh.
	rec.MemberID = membership.NewMemberID("client-restarted", 1)
	second, err := membership.Join(t.Context(), kv, nil, rec, cfg)
	require.NoError(t, err)
	defer func() { _ = second.Close(context.Background()) }()

	ev = nextEvent(t, events)
	require.Equal(t, MemberJoined, ev.Kind)
	require.Equal(t, second.MemberID(), ev.Record.MemberID)
	require.Equal(t, first.Key(), ev.Key)
}

func TestMemberEventKind_String(t *testing.T) {
	require.Equal(t, "Joined", MemberJoined.String())
	require.Equal(t, "Replaced", MemberReplaced.String())
	require.Equal(t, "Left", MemberLeft.String())
	require.Equal(t, "Expired", MemberExpired.String())
	require.Equal(t, "Unknown", MemberEventKind(42).String())
}
