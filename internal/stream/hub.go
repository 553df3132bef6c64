package stream

import (
	"context"
	"sync"

	"github.com/gorilla/websocket"
)

// observerSendBuffer bounds how many frames an observer can have queued.
// Once its buffer is full, further frames for it are dropped rather than
// stalling the broadcast loop; the observer itself stays registered.
const observerSendBuffer = 32

// Observer is one connected WebSocket client of a single machine's Hub.
type Observer struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

// Conn exposes the underlying connection for a caller's own read pump.
func (o *Observer) Conn() *websocket.Conn { return o.conn }

// ID returns the observer's registration id.
func (o *Observer) ID() string { return o.id }

// Hub fans broadcast frames out to every observer of one machine
// instance. It owns no global state — a Manager constructs one Hub per
// connected machine and discards it on disconnect.
type Hub struct {
	observers map[string]*Observer

	register   chan *Observer
	unregister chan *Observer
	broadcast  chan []byte
	relay      chan relayMessage

	mu    sync.RWMutex
	count int
}

// relayMessage is a broadcast targeted at every observer except one —
// used to echo a session-command result to every other subscriber
// while the requesting connection gets its own direct reply.
type relayMessage struct {
	data      []byte
	excludeID string
}

// NewHub builds an idle hub. Call Run in its own goroutine to start it.
func NewHub() *Hub {
	return &Hub{
		observers:  make(map[string]*Observer),
		register:   make(chan *Observer),
		unregister: make(chan *Observer),
		broadcast:  make(chan []byte, 256),
		relay:      make(chan relayMessage, 256),
	}
}

// Run drives the hub's register/unregister/broadcast loop until ctx is
// canceled. All currently registered observers are dropped on exit.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for _, o := range h.observers {
				close(o.send)
			}
			h.observers = make(map[string]*Observer)
			h.count = 0
			h.mu.Unlock()
			return
		case o := <-h.register:
			h.mu.Lock()
			h.observers[o.id] = o
			h.count = len(h.observers)
			h.mu.Unlock()
		case o := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.observers[o.id]; ok {
				delete(h.observers, o.id)
				close(o.send)
				h.count = len(h.observers)
			}
			h.mu.Unlock()
		case data := <-h.broadcast:
			h.mu.RLock()
			for _, o := range h.observers {
				select {
				case o.send <- data:
				default:
					// Observer's buffer is full; drop the frame for it
					// rather than block the whole broadcast on one
					// slow reader. The observer stays registered
					// until Unregister is called for it.
				}
			}
			h.mu.RUnlock()
		case msg := <-h.relay:
			h.mu.RLock()
			for id, o := range h.observers {
				if id == msg.excludeID {
					continue
				}
				select {
				case o.send <- msg.data:
				default:
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Register admits a new observer and starts its write pump. Caller is
// responsible for running its own read pump against conn and calling
// Unregister when it returns.
func (h *Hub) Register(id string, conn *websocket.Conn) *Observer {
	o := &Observer{id: id, conn: conn, send: make(chan []byte, observerSendBuffer)}
	h.register <- o
	go o.writePump()
	return o
}

// Unregister removes an observer, closing its send channel and
// terminating its write pump.
func (h *Hub) Unregister(o *Observer) {
	h.unregister <- o
}

// Broadcast fans data out to every currently registered observer.
func (h *Hub) Broadcast(data []byte) {
	h.broadcast <- data
}

// BroadcastExcept fans data out to every observer except the one
// identified by excludeID.
func (h *Hub) BroadcastExcept(data []byte, excludeID string) {
	h.relay <- relayMessage{data: data, excludeID: excludeID}
}

// ObserverCount reports how many observers are currently registered.
func (h *Hub) ObserverCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.count
}

func (o *Observer) writePump() {
	for data := range o.send {
		if err := o.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
	_ = o.conn.WriteMessage(websocket.CloseMessage, []byte{})
}
