/*
Package event implements the process-wide publish/subscribe engine.

# Module
  - delivery loop: single goroutine draining the queue, invoking handlers in enqueue order
  - timer source: injects EventTimer on a fixed interval while the engine runs
  - wildcard channel: handlers receiving every event in strict global enqueue order

The engine has no knowledge of trading semantics; typed payloads are opaque.
*/
package event

import (
	"reflect"
	"sync"
	"time"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
)

// EventTimer is the type of the synthetic event injected by the timer source.
const EventTimer = "eTimer"

const defaultTimerInterval = time.Second

var ErrEngineStopped = errors.New("event engine stopped")

// Event is the unit passed through the engine. Type selects the subscriber
// set; Data carries the payload and is opaque to the engine.
type Event struct {
	Type string
	Data any
}

// HandlerFunc consumes one event. Handlers run on the single delivery
// goroutine and must not block; blocking work belongs on the consumer's own
// worker.
type HandlerFunc func(Event)

type registration struct {
	id uintptr
	fn HandlerFunc
}

type engineState uint32

const (
	stateIdle engineState = iota
	stateRunning
	stateStopped
)

// Engine is a typed pub/sub dispatcher with one delivery goroutine and one
// timer goroutine. The zero value is not usable; construct with New.
type Engine struct {
	interval time.Duration

	mu    sync.Mutex
	cond  *sync.Cond
	queue []Event
	state engineState

	hmu      sync.RWMutex
	handlers map[string][]registration
	general  []registration

	timerDone chan struct{}
	wg        sync.WaitGroup
}

// New allocates an engine. A non-positive interval falls back to one second.
func New(interval time.Duration) *Engine {
	if interval <= 0 {
		interval = defaultTimerInterval
	}
	e := &Engine{
		interval:  interval,
		handlers:  make(map[string][]registration),
		timerDone: make(chan struct{}),
	}
	e.cond = sync.NewCond(&e.mu)
	return e
}

// Start spins up the delivery and timer goroutines. Calling Start on a
// running or stopped engine is a no-op.
func (e *Engine) Start() {
	e.mu.Lock()
	if e.state != stateIdle {
		e.mu.Unlock()
		return
	}
	e.state = stateRunning
	e.mu.Unlock()

	e.wg.Add(2)
	go e.runDelivery()
	go e.runTimer()
}

// Stop refuses new events, drains everything already queued through
// delivery, then stops the timer and returns. Idempotent.
func (e *Engine) Stop() {
	e.mu.Lock()
	if e.state != stateRunning {
		e.mu.Unlock()
		return
	}
	e.state = stateStopped
	e.cond.Broadcast()
	e.mu.Unlock()

	close(e.timerDone)
	e.wg.Wait()
}

// Put enqueues an event for asynchronous delivery. It never blocks on
// handler execution and returns ErrEngineStopped once Stop has begun.
func (e *Engine) Put(ev Event) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == stateStopped {
		return ErrEngineStopped
	}
	e.queue = append(e.queue, ev)
	e.cond.Signal()
	return nil
}

// QueueDepth reports the number of events waiting for delivery.
func (e *Engine) QueueDepth() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.queue)
}

// Register subscribes handler to eventType. Registration is idempotent:
// handler identity is the function's code pointer, resolved here, so
// registering the same function twice yields a single delivery per event.
func (e *Engine) Register(eventType string, handler HandlerFunc) {
	if handler == nil {
		return
	}
	id := handlerID(handler)
	e.hmu.Lock()
	defer e.hmu.Unlock()
	for _, reg := range e.handlers[eventType] {
		if reg.id == id {
			return
		}
	}
	e.handlers[eventType] = append(e.handlers[eventType], registration{id: id, fn: handler})
}

// Unregister removes one subscription. Removing a handler that is not
// registered is a no-op. After Unregister returns, the handler receives no
// event enqueued afterwards.
func (e *Engine) Unregister(eventType string, handler HandlerFunc) {
	if handler == nil {
		return
	}
	id := handlerID(handler)
	e.hmu.Lock()
	defer e.hmu.Unlock()
	regs := e.handlers[eventType]
	for i, reg := range regs {
		if reg.id == id {
			e.handlers[eventType] = append(regs[:i:i], regs[i+1:]...)
			break
		}
	}
	if len(e.handlers[eventType]) == 0 {
		delete(e.handlers, eventType)
	}
}

// RegisterGeneral subscribes handler to every event regardless of type,
// delivered in strict global enqueue order. Same idempotency as Register.
func (e *Engine) RegisterGeneral(handler HandlerFunc) {
	if handler == nil {
		return
	}
	id := handlerID(handler)
	e.hmu.Lock()
	defer e.hmu.Unlock()
	for _, reg := range e.general {
		if reg.id == id {
			return
		}
	}
	e.general = append(e.general, registration{id: id, fn: handler})
}

// UnregisterGeneral removes a wildcard subscription.
func (e *Engine) UnregisterGeneral(handler HandlerFunc) {
	if handler == nil {
		return
	}
	id := handlerID(handler)
	e.hmu.Lock()
	defer e.hmu.Unlock()
	for i, reg := range e.general {
		if reg.id == id {
			e.general = append(e.general[:i:i], e.general[i+1:]...)
			return
		}
	}
}

func (e *Engine) runDelivery() {
	defer e.wg.Done()
	for {
		e.mu.Lock()
		for len(e.queue) == 0 && e.state == stateRunning {
			e.cond.Wait()
		}
		if len(e.queue) == 0 {
			// stopped and drained
			e.mu.Unlock()
			return
		}
		ev := e.queue[0]
		e.queue = e.queue[1:]
		e.mu.Unlock()

		e.process(ev)
	}
}

func (e *Engine) process(ev Event) {
	e.hmu.RLock()
	typed := make([]registration, len(e.handlers[ev.Type]))
	copy(typed, e.handlers[ev.Type])
	general := make([]registration, len(e.general))
	copy(general, e.general)
	e.hmu.RUnlock()

	for _, reg := range typed {
		safeInvoke(reg.fn, ev)
	}
	for _, reg := range general {
		safeInvoke(reg.fn, ev)
	}
}

// safeInvoke isolates handler failures: a panicking handler must not take
// down the delivery goroutine or starve the remaining handlers.
func safeInvoke(fn HandlerFunc, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			logs.Errorf("event handler panic, type: %s, recovered: %+v", ev.Type, r)
		}
	}()
	fn(ev)
}

func (e *Engine) runTimer() {
	defer e.wg.Done()
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()
	for {
		select {
		case <-e.timerDone:
			return
		case <-ticker.C:
			// Put fails once Stop has begun; the tick is skipped, never queued twice.
			_ = e.Put(Event{Type: EventTimer})
		}
	}
}

func handlerID(fn HandlerFunc) uintptr {
	return reflect.ValueOf(fn).Pointer()
}
