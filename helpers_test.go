package streamgroup

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	sgtest "github.com/arloliu/streamgroup/testing"
)

// fakeGroup records every member joined through it. With hold set, each join
// of thread holdFrom or later signals entered and blocks until hold is closed
// or ctx ends.
type fakeGroup struct {
	mu       sync.Mutex
	handles  []*fakeHandle
	joinErr  error
	hold     chan struct{}
	holdFrom int
	entered  chan struct{}
}

func (g *fakeGroup) join(ctx context.Context, rec MemberRecord) (MembershipHandle, error) {
	if g.hold != nil && rec.ThreadID >= g.holdFrom {
		select {
		case g.entered <- struct{}{}:
		default:
		}
		select {
		case <-g.hold:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.joinErr != nil {
		return nil, g.joinErr
	}
	h := &fakeHandle{rec: rec}
	g.handles = append(g.handles, h)

	return h, nil
}

func (g *fakeGroup) all() []*fakeHandle {
	g.mu.Lock()
	defer g.mu.Unlock()

	return append([]*fakeHandle(nil), g.handles...)
}

func (g *fakeGroup) departures() int {
	total := 0
	for _, h := range g.all() {
		total += int(h.departures.Load())
	}

	return total
}

type fakeHandle struct {
	rec        MemberRecord
	departures atomic.Int32
	closes     atomic.Int32
	once       sync.Once
	departCh   chan error
}

func (h *fakeHandle) MemberID() string { return h.rec.MemberID }

func (h *fakeHandle) RequestDeparture() <-chan error {
	h.departures.Add(1)
	h.once.Do(func() {
		h.departCh = make(chan error, 1)
		h.departCh <- nil
		close(h.departCh)
	})

	return h.departCh
}

func (h *fakeHandle) Close(context.Context) error {
	h.closes.Add(1)
	return nil
}

// fakeProcessor blocks each unit until cancelled. A hung processor ignores
// cancellation until release is closed.
type fakeProcessor struct {
	hung    bool
	release chan struct{}
	unit    func(ctx context.Context)
	closed  atomic.Bool
}

func (p *fakeProcessor) ProcessOnce(ctx context.Context) error {
	if p.unit != nil {
		p.unit(ctx)
	}
	if p.hung {
		<-p.release
		return nil
	}
	<-ctx.Done()

	return ctx.Err()
}

func (p *fakeProcessor) Close(context.Context) error {
	p.closed.Store(true)
	return nil
}

type fakeFactory struct {
	mu         sync.Mutex
	processors []*fakeProcessor
	build      func(info ThreadInfo) (*fakeProcessor, error)
}

func (f *fakeFactory) create(_ context.Context, info ThreadInfo) (Processor, error) {
	p := &fakeProcessor{release: make(chan struct{})}
	if f.build != nil {
		var err error
		p, err = f.build(info)
		if err != nil {
			return nil, err
		}
	}

	f.mu.Lock()
	f.processors = append(f.processors, p)
	f.mu.Unlock()

	return p, nil
}

func testClientConfig(threads int) Config {
	cfg := TestConfig()
	cfg.ApplicationID = "test-app"
	cfg.ClientID = "test-client"
	cfg.NumStreamThreads = threads

	return cfg
}

// newFakeClient builds a client whose membership and processors are fakes.
func newFakeClient(t *testing.T, threads int, factory *fakeFactory, opts ...Option) (*Client, *fakeGroup) {
	t.Helper()

	group := &fakeGroup{}
	if factory == nil {
		factory = &fakeFactory{}
	}
	opts = append([]Option{WithMembership(group.join), WithLogger(sgtest.NewTestLogger(t))}, opts...)

	c, err := NewClient(testClientConfig(threads), nil, factory.create, opts...)
	require.NoError(t, err)

	return c, group
}

func startFakeClient(t *testing.T, threads int, factory *fakeFactory, opts ...Option) (*Client, *fakeGroup) {
	t.Helper()

	c, group := newFakeClient(t, threads, factory, opts...)
	require.NoError(t, c.Start(t.Context()))
	require.Equal(t, StateRunning, c.State())

	return c, group
}
