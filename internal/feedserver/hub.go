package feedserver

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// subKey is a canonical subscription scope. The zero value is the global
// feed; DriverID empty means "everything on this route".
type subKey struct {
	RouteID  string
	DriverID string
}

type client struct {
	id   string
	key  subKey
	conn *websocket.Conn
	send chan []byte
}

func newClient(conn *websocket.Conn, key subKey) *client {
	return &client{
		id:   uuid.NewString(),
		key:  key,
		conn: conn,
		send: make(chan []byte, 64),
	}
}

// hub tracks which clients listen at which scope and fans accepted
// updates out to every scope that covers them.
type hub struct {
	mu      sync.RWMutex
	clients map[subKey]map[*client]struct{}
}

func newHub() *hub {
	return &hub{clients: make(map[subKey]map[*client]struct{})}
}

func (h *hub) add(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.clients[c.key]
	if !ok {
		set = make(map[*client]struct{})
		h.clients[c.key] = set
	}
	set[c] = struct{}{}
}

func (h *hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.clients[c.key]; ok {
		if _, present := set[c]; present {
			delete(set, c)
			close(c.send)
		}
	}
}

// fanout delivers one update to the driver-scoped, route-scoped, and
// global subscribers that cover it. A client with a full send buffer is
// skipped; positions are absolute and the next update supersedes this one.
func (h *hub) fanout(routeID, driverID string, msg []byte) {
	keys := []subKey{
		{},
		{RouteID: routeID},
	}
	if driverID != "" {
		keys = append(keys, subKey{RouteID: routeID, DriverID: driverID})
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, k := range keys {
		for c := range h.clients[k] {
			select {
			case c.send <- msg:
			default:
			}
		}
	}
}

// count reports connected clients, for the health endpoint.
func (h *hub) count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, set := range h.clients {
		n += len(set)
	}
	return n
}

// writePump drains the send buffer onto the socket and keeps the
// connection alive with pings.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
