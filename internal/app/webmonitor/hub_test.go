package webmonitor

import (
	"testing"
	"time"

	"github.com/Quantix-Lab/vnpy/pkg/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHubFansOutToClients(t *testing.T) {
	h := newHub()
	cl := &client{id: "a", send: make(chan envelope, 4)}
	h.add(cl)

	h.onEvent(event.Event{Type: "eTick.", Data: "payload"})

	select {
	case msg := <-cl.send:
		assert.Equal(t, "eTick.", msg.Type)
		assert.Equal(t, "payload", msg.Data)
	case <-time.After(time.Second):
		t.Fatal("no message delivered")
	}
}

func TestHubSkipsTimerEvents(t *testing.T) {
	h := newHub()
	cl := &client{id: "a", send: make(chan envelope, 1)}
	h.add(cl)

	h.onEvent(event.Event{Type: event.EventTimer})
	assert.Empty(t, cl.send)
}

func TestHubDropsForSlowClientOnly(t *testing.T) {
	h := newHub()
	slow := &client{id: "slow", send: make(chan envelope, 1)}
	fast := &client{id: "fast", send: make(chan envelope, 8)}
	h.add(slow)
	h.add(fast)

	for i := 0; i < 5; i++ {
		h.onEvent(event.Event{Type: "eTick.", Data: i})
	}

	// never blocked; the slow client kept only its buffer's worth
	assert.Len(t, slow.send, 1)
	assert.Len(t, fast.send, 5)
}

func TestHubRemoveClosesChannel(t *testing.T) {
	h := newHub()
	cl := &client{id: "a", send: make(chan envelope, 1)}
	h.add(cl)
	h.remove("a")

	_, open := <-cl.send
	require.False(t, open)

	// events after removal go nowhere
	h.onEvent(event.Event{Type: "eTick."})

	// removing twice is safe
	h.remove("a")
}

func TestHubCloseAll(t *testing.T) {
	h := newHub()
	a := &client{id: "a", send: make(chan envelope, 1)}
	b := &client{id: "b", send: make(chan envelope, 1)}
	h.add(a)
	h.add(b)

	h.closeAll()
	_, open := <-a.send
	require.False(t, open)
	_, open = <-b.send
	require.False(t, open)
}
