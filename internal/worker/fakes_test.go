package worker

import (
	"context"
	"sync"
	"sync/atomic"
)

type fakeHandle struct {
	memberID string

	mu          sync.Mutex
	departures  int
	closes      int
	departCh    chan error
	departErr   error
	holdDepart  bool
	closeErr    error
	departedAny atomic.Bool
}

func newFakeHandle(memberID string) *fakeHandle {
	return &fakeHandle{memberID: memberID}
}

func (h *fakeHandle) MemberID() string { return h.memberID }

func (h *fakeHandle) RequestDeparture() <-chan error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.departures++
	h.departedAny.Store(true)
	if h.departCh == nil {
		h.departCh = make(chan error, 1)
		if !h.holdDepart {
			h.departCh <- h.departErr
		}
	}

	return h.departCh
}

func (h *fakeHandle) Close(_ context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closes++

	return h.closeErr
}

func (h *fakeHandle) counts() (departures, closes int) {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.departures, h.closes
}

// fakeProcessor runs units until its context is cancelled. A blocking
// processor ignores cancellation until release is closed.
type fakeProcessor struct {
	units    atomic.Int64
	closes   atomic.Int32
	closeErr error
	unitErr  error
	block    bool
	release  chan struct{}
	onUnit   func(ctx context.Context)
	entered  chan struct{}
	once     sync.Once
}

func newFakeProcessor() *fakeProcessor {
	return &fakeProcessor{release: make(chan struct{}), entered: make(chan struct{})}
}

func (p *fakeProcessor) ProcessOnce(ctx context.Context) error {
	p.units.Add(1)
	p.once.Do(func() { close(p.entered) })

	if p.onUnit != nil {
		p.onUnit(ctx)
	}

	if p.block {
		<-p.release
		return nil
	}

	if p.unitErr != nil {
		return p.unitErr
	}

	<-ctx.Done()

	return ctx.Err()
}

func (p *fakeProcessor) Close(_ context.Context) error {
	p.closes.Add(1)
	return p.closeErr
}
