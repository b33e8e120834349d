package dash

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const writeWait = 2 * time.Second

// Event is pushed to live widget connections. Clients answer a "refresh"
// by sending a fresh UpdateRequest.
type Event struct {
	Type   string    `json:"type"`
	Reason string    `json:"reason,omitempty"`
	At     time.Time `json:"at"`
}

// liveConn serializes writes; the read loop and Broadcast share the socket.
type liveConn struct {
	mu  sync.Mutex
	app string
	ws  *websocket.Conn
}

func (l *liveConn) writeJSON(v any) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	_ = l.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return l.ws.WriteJSON(v)
}

// Hub tracks open widget connections so data changes reach them.
type Hub struct {
	mu    sync.Mutex
	conns map[*liveConn]struct{}
}

type HubStats struct {
	Connections int            `json:"connections"`
	PerApp      map[string]int `json:"per_app"`
}

func NewHub() *Hub {
	return &Hub{conns: make(map[*liveConn]struct{})}
}

func (h *Hub) add(app string, ws *websocket.Conn) *liveConn {
	lc := &liveConn{app: app, ws: ws}
	h.mu.Lock()
	h.conns[lc] = struct{}{}
	h.mu.Unlock()
	return lc
}

func (h *Hub) remove(lc *liveConn) {
	h.mu.Lock()
	delete(h.conns, lc)
	h.mu.Unlock()
	_ = lc.ws.Close()
}

// Refresh tells every connected widget to re-run its callbacks.
func (h *Hub) Refresh(reason string) {
	h.Broadcast(Event{Type: "refresh", Reason: reason, At: time.Now().UTC()})
}

// Broadcast sends ev to every connection, dropping the ones that fail.
func (h *Hub) Broadcast(ev Event) {
	h.mu.Lock()
	conns := make([]*liveConn, 0, len(h.conns))
	for lc := range h.conns {
		conns = append(conns, lc)
	}
	h.mu.Unlock()

	for _, lc := range conns {
		if err := lc.writeJSON(ev); err != nil {
			h.remove(lc)
		}
	}
}

func (h *Hub) Stats() HubStats {
	h.mu.Lock()
	defer h.mu.Unlock()
	s := HubStats{Connections: len(h.conns), PerApp: map[string]int{}}
	for lc := range h.conns {
		s.PerApp[lc.app]++
	}
	return s
}
