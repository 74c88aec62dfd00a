package event

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) handle(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) snapshot() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func TestDeliveryOrderSingleProducer(t *testing.T) {
	e := New(time.Hour)
	e.Start()
	defer e.Stop()

	rec := &recorder{}
	e.Register("order", rec.handle)

	const n = 100
	for i := 0; i < n; i++ {
		require.NoError(t, e.Put(Event{Type: "order", Data: i}))
	}

	require.Eventually(t, func() bool { return rec.count() == n }, time.Second, time.Millisecond)
	for i, ev := range rec.snapshot() {
		require.Equal(t, i, ev.Data)
	}
}

func TestRegisterIdempotent(t *testing.T) {
	e := New(time.Hour)
	e.Start()
	defer e.Stop()

	rec := &recorder{}
	e.Register("tick", rec.handle)
	e.Register("tick", rec.handle)

	require.NoError(t, e.Put(Event{Type: "tick"}))
	require.Eventually(t, func() bool { return rec.count() >= 1 }, time.Second, time.Millisecond)

	// a second registration must not produce a second delivery
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, rec.count())
}

func TestUnregisterSilences(t *testing.T) {
	e := New(time.Hour)
	e.Start()
	defer e.Stop()

	rec := &recorder{}
	e.Register("tick", rec.handle)
	require.NoError(t, e.Put(Event{Type: "tick"}))
	require.Eventually(t, func() bool { return rec.count() == 1 }, time.Second, time.Millisecond)

	e.Unregister("tick", rec.handle)
	require.NoError(t, e.Put(Event{Type: "tick"}))
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, rec.count())

	// unregistering again is a no-op
	e.Unregister("tick", rec.handle)
}

func TestHandlerPanicIsolated(t *testing.T) {
	e := New(time.Hour)
	e.Start()
	defer e.Stop()

	rec := &recorder{}
	e.Register("tick", func(Event) { panic("boom") })
	e.Register("tick", rec.handle)

	require.NoError(t, e.Put(Event{Type: "tick"}))
	require.NoError(t, e.Put(Event{Type: "tick"}))
	require.Eventually(t, func() bool { return rec.count() == 2 }, time.Second, time.Millisecond)
}

func TestGeneralHandlerSeesGlobalOrder(t *testing.T) {
	e := New(time.Hour)
	e.Start()
	defer e.Stop()

	rec := &recorder{}
	e.RegisterGeneral(rec.handle)

	types := []string{"tick", "order", "tick", "trade", "log"}
	for i, typ := range types {
		require.NoError(t, e.Put(Event{Type: typ, Data: i}))
	}

	require.Eventually(t, func() bool { return rec.count() == len(types) }, time.Second, time.Millisecond)
	for i, ev := range rec.snapshot() {
		require.Equal(t, types[i], ev.Type)
		require.Equal(t, i, ev.Data)
	}

	e.UnregisterGeneral(rec.handle)
	require.NoError(t, e.Put(Event{Type: "tick"}))
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, len(types), rec.count())
}

func TestTypedBeforeGeneral(t *testing.T) {
	e := New(time.Hour)
	e.Start()
	defer e.Stop()

	rec := &recorder{}
	e.Register("tick", func(Event) { rec.handle(Event{Type: "typed"}) })
	e.RegisterGeneral(func(Event) { rec.handle(Event{Type: "general"}) })

	require.NoError(t, e.Put(Event{Type: "tick"}))
	require.Eventually(t, func() bool { return rec.count() == 2 }, time.Second, time.Millisecond)

	got := rec.snapshot()
	assert.Equal(t, "typed", got[0].Type)
	assert.Equal(t, "general", got[1].Type)
}

func TestStopDrainsQueuedEvents(t *testing.T) {
	e := New(time.Hour)
	e.Start()

	rec := &recorder{}
	e.Register("order", rec.handle)

	const n = 500
	for i := 0; i < n; i++ {
		require.NoError(t, e.Put(Event{Type: "order", Data: i}))
	}

	e.Stop()
	assert.Equal(t, n, rec.count())
	assert.Equal(t, 0, e.QueueDepth())

	err := e.Put(Event{Type: "order"})
	require.ErrorIs(t, err, ErrEngineStopped)

	// idempotent
	e.Stop()
}

func TestTimerEmitsOnInterval(t *testing.T) {
	e := New(5 * time.Millisecond)
	e.Start()
	defer e.Stop()

	rec := &recorder{}
	e.Register(EventTimer, rec.handle)

	require.Eventually(t, func() bool { return rec.count() >= 3 }, time.Second, time.Millisecond)
	for _, ev := range rec.snapshot() {
		require.Equal(t, EventTimer, ev.Type)
	}
}

func TestStartIdempotent(t *testing.T) {
	e := New(time.Hour)
	e.Start()
	e.Start()

	rec := &recorder{}
	e.Register("tick", rec.handle)
	require.NoError(t, e.Put(Event{Type: "tick"}))
	require.Eventually(t, func() bool { return rec.count() == 1 }, time.Second, time.Millisecond)
	e.Stop()
}
