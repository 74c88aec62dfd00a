package webmonitor

import (
	"net/http"
	"sync"

	"github.com/Quantix-Lab/vnpy/pkg/event"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/yanun0323/logs"
)

// clientQueueSize bounds each websocket client's outbound buffer. A client
// that falls behind loses events rather than stalling the delivery
// goroutine; the dashboard refetches state over REST on reconnect.
const clientQueueSize = 256

// envelope is the wire format pushed to dashboard clients.
type envelope struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type client struct {
	id   string
	conn *websocket.Conn
	send chan envelope
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.send)
	})
}

// hub fans events out to websocket clients. The event handler only ever
// performs a non-blocking channel send; each client's writer goroutine owns
// its connection.
type hub struct {
	mu      sync.Mutex
	clients map[string]*client
}

func newHub() *hub {
	return &hub{clients: make(map[string]*client)}
}

func (h *hub) onEvent(ev event.Event) {
	if ev.Type == event.EventTimer {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, cl := range h.clients {
		select {
		case cl.send <- envelope{Type: ev.Type, Data: ev.Data}:
		default:
			// slow client, drop for this client only
		}
	}
}

func (h *hub) add(cl *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[cl.id] = cl
}

func (h *hub) remove(id string) {
	h.mu.Lock()
	cl, ok := h.clients[id]
	if ok {
		delete(h.clients, id)
	}
	h.mu.Unlock()
	if ok {
		cl.close()
	}
}

func (h *hub) closeAll() {
	h.mu.Lock()
	clients := make([]*client, 0, len(h.clients))
	for _, cl := range h.clients {
		clients = append(clients, cl)
	}
	h.clients = make(map[string]*client)
	h.mu.Unlock()
	for _, cl := range clients {
		cl.close()
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

func (e *WebEngine) handleWebsocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logs.Errorf("websocket upgrade, err: %+v", err)
		return
	}

	cl := &client{
		id:   uuid.New().String(),
		conn: conn,
		send: make(chan envelope, clientQueueSize),
	}
	e.hub.add(cl)

	go writePump(cl)
	go readPump(e.hub, cl)
}

func writePump(cl *client) {
	defer cl.conn.Close()
	for msg := range cl.send {
		if err := cl.conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

// readPump discards inbound frames; its job is detecting disconnects.
func readPump(h *hub, cl *client) {
	for {
		if _, _, err := cl.conn.ReadMessage(); err != nil {
			h.remove(cl.id)
			return
		}
	}
}
