package subscription

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/require"

	sgtest "github.com/arloliu/streamgroup/testing"
)

func setupStream(t *testing.T) (*nats.Conn, jetstream.JetStream) {
	t.Helper()

	_, nc := sgtest.StartEmbeddedNATS(t)
	sgtest.CreateStream(t, nc, "INPUT", "input.>")

	js, err := jetstream.New(nc)
	require.NoError(t, err)

	return nc, js
}

func publishN(t *testing.T, js jetstream.JetStream, n int) {
	t.Helper()

	for i := range n {
		_, err := js.Publish(t.Context(), "input.events", fmt.Appendf(nil, "msg-%d", i))
		require.NoError(t, err)
	}
}

func TestConsumerName(t *testing.T) {
	cases := []struct{ in, want string }{
		{"group.tool*001>region/us", "group_tool_001_region_us"},
		{"group\\001", "group_001"},
		{"group tool 001", "group_tool_001"},
		{"valid_name", "valid_name"},
		{"group\t001\n002", "group_001_002"},
		{"group\x00\x01\x1f\x7f001", "group____001"},
	}
	for _, c := range cases {
		require.Equal(t, c.want, ConsumerName(c.in), "input %q", c.in)
	}
}

func TestNewStreamProcessor_Validation(t *testing.T) {
	_, js := setupStream(t)
	h := MessageHandlerFunc(func(context.Context, jetstream.Msg) error { return nil })

	_, err := NewStreamProcessor(t.Context(), js, ProcessorConfig{GroupID: "g"}, h)
	require.ErrorIs(t, err, ErrStreamRequired)

	_, err = NewStreamProcessor(t.Context(), js, ProcessorConfig{StreamName: "INPUT"}, h)
	require.ErrorIs(t, err, ErrGroupRequired)

	_, err = NewStreamProcessor(t.Context(), js, ProcessorConfig{StreamName: "INPUT", GroupID: "g"}, nil)
	require.ErrorIs(t, err, ErrHandlerRequired)

	_, err = NewStreamProcessor(t.Context(), js, ProcessorConfig{StreamName: "MISSING", GroupID: "g"}, h)
	require.ErrorIs(t, err, jetstream.ErrStreamNotFound)
}

func TestStreamProcessor_ProcessOnce(t *testing.T) {
	t.Run("acks handled messages", func(t *testing.T) {
		_, js := setupStream(t)
		publishN(t, js, 5)

		var handled atomic.Int32
		p, err := NewStreamProcessor(t.Context(), js, ProcessorConfig{
			StreamName:   "INPUT",
			GroupID:      "orders.app",
			FetchTimeout: 200 * time.Millisecond,
		}, MessageHandlerFunc(func(context.Context, jetstream.Msg) error {
			handled.Add(1)
			return nil
		}))
		require.NoError(t, err)

		require.NoError(t, p.ProcessOnce(t.Context()))
		require.EqualValues(t, 5, handled.Load())

		info, err := p.ConsumerInfo(t.Context())
		require.NoError(t, err)
		require.Equal(t, "orders_app", info.Name)
		require.EqualValues(t, 0, info.NumAckPending)
		require.EqualValues(t, 0, info.NumPending)
	})

	t.Run("idle fetch returns nil", func(t *testing.T) {
		_, js := setupStream(t)

		p, err := NewStreamProcessor(t.Context(), js, ProcessorConfig{
			StreamName:   "INPUT",
			GroupID:      "idle",
			FetchTimeout: 100 * time.Millisecond,
		}, MessageHandlerFunc(func(context.Context, jetstream.Msg) error { return nil }))
		require.NoError(t, err)

		require.NoError(t, p.ProcessOnce(t.Context()))
	})

	t.Run("handler error naks and is reported", func(t *testing.T) {
		_, js := setupStream(t)
		publishN(t, js, 1)

		var attempts atomic.Int32
		p, err := NewStreamProcessor(t.Context(), js, ProcessorConfig{
			StreamName:   "INPUT",
			GroupID:      "naks",
			FetchTimeout: 200 * time.Millisecond,
			MaxDeliver:   5,
		}, MessageHandlerFunc(func(context.Context, jetstream.Msg) error {
			if attempts.Add(1) == 1 {
				return errors.New("transient")
			}
			return nil
		}))
		require.NoError(t, err)

		require.Error(t, p.ProcessOnce(t.Context()))
		require.NoError(t, p.ProcessOnce(t.Context()))
		require.EqualValues(t, 2, attempts.Load())
	})

	t.Run("cancelled context returns promptly", func(t *testing.T) {
		_, js := setupStream(t)

		p, err := NewStreamProcessor(t.Context(), js, ProcessorConfig{
			StreamName:   "INPUT",
			GroupID:      "cancel",
			FetchTimeout: 10 * time.Second,
		}, MessageHandlerFunc(func(context.Context, jetstream.Msg) error { return nil }))
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(t.Context())
		go func() {
			time.Sleep(50 * time.Millisecond)
			cancel()
		}()

		start := time.Now()
		require.ErrorIs(t, p.ProcessOnce(ctx), context.Canceled)
		require.Less(t, time.Since(start), 2*time.Second)
	})

	t.Run("cancelled unit hands the rest of the batch back", func(t *testing.T) {
		_, js := setupStream(t)
		publishN(t, js, 10)

		ctx, cancel := context.WithCancel(t.Context())
		defer cancel()

		var handled atomic.Int32
		cfg := ProcessorConfig{StreamName: "INPUT", GroupID: "handback", BatchSize: 10, FetchTimeout: 500 * time.Millisecond}
		stopping, err := NewStreamProcessor(t.Context(), js, cfg, MessageHandlerFunc(func(context.Context, jetstream.Msg) error {
			handled.Add(1)
			cancel()

			return nil
		}))
		require.NoError(t, err)

		require.ErrorIs(t, stopping.ProcessOnce(ctx), context.Canceled)
		require.EqualValues(t, 1, handled.Load())

		require.Eventually(t, func() bool {
			info, err := stopping.ConsumerInfo(t.Context())
			return err == nil && info.NumAckPending == 0
		}, 2*time.Second, 20*time.Millisecond, "unhandled messages must not stay pending")

		// Another member picks the remainder up well before AckWait.
		var remaining atomic.Int32
		survivor, err := NewStreamProcessor(t.Context(), js, cfg, MessageHandlerFunc(func(context.Context, jetstream.Msg) error {
			remaining.Add(1)
			return nil
		}))
		require.NoError(t, err)

		require.Eventually(t, func() bool {
			_ = survivor.ProcessOnce(t.Context())
			return remaining.Load() == 9
		}, 5*time.Second, 10*time.Millisecond)

		require.Eventually(t, func() bool {
			info, err := survivor.ConsumerInfo(t.Context())
			return err == nil && info.NumAckPending == 0
		}, 2*time.Second, 20*time.Millisecond)
	})

	t.Run("closed processor rejects units", func(t *testing.T) {
		_, js := setupStream(t)

		p, err := NewStreamProcessor(t.Context(), js, ProcessorConfig{StreamName: "INPUT", GroupID: "closed"},
			MessageHandlerFunc(func(context.Context, jetstream.Msg) error { return nil }))
		require.NoError(t, err)

		require.NoError(t, p.Close(t.Context()))
		require.NoError(t, p.Close(t.Context()))
		require.ErrorIs(t, p.ProcessOnce(t.Context()), ErrProcessorClosed)
	})
}

func TestStreamProcessor_GroupSharesConsumer(t *testing.T) {
	_, js := setupStream(t)
	publishN(t, js, 20)

	var total atomic.Int32
	handler := MessageHandlerFunc(func(context.Context, jetstream.Msg) error {
		total.Add(1)
		return nil
	})
	cfg := ProcessorConfig{StreamName: "INPUT", GroupID: "shared", BatchSize: 5, FetchTimeout: 100 * time.Millisecond}

	p1, err := NewStreamProcessor(t.Context(), js, cfg, handler)
	require.NoError(t, err)
	p2, err := NewStreamProcessor(t.Context(), js, cfg, handler)
	require.NoError(t, err)

	for range 4 {
		require.NoError(t, p1.ProcessOnce(t.Context()))
		require.NoError(t, p2.ProcessOnce(t.Context()))
	}

	// Each message is delivered to exactly one member of the group.
	require.EqualValues(t, 20, total.Load())
}

func TestForwardHandler(t *testing.T) {
	nc, js := setupStream(t)
	sgtest.CreateStream(t, nc, "OUTPUT", "output.>")

	msg := nats.NewMsg("input.events")
	msg.Data = []byte("payload")
	msg.Header.Set("trace-id", "abc")
	_, err := js.PublishMsg(t.Context(), msg)
	require.NoError(t, err)

	p, err := NewStreamProcessor(t.Context(), js, ProcessorConfig{
		StreamName:   "INPUT",
		GroupID:      "forward",
		FetchTimeout: 200 * time.Millisecond,
	}, ForwardHandler(js, "output.events"))
	require.NoError(t, err)
	require.NoError(t, p.ProcessOnce(t.Context()))

	out, err := js.Stream(t.Context(), "OUTPUT")
	require.NoError(t, err)
	got, err := out.GetLastMsgForSubject(t.Context(), "output.events")
	require.NoError(t, err)
	require.Equal(t, []byte("payload"), got.Data)
	require.Equal(t, "abc", got.Header.Get("trace-id"))
}
