package httpapi

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const maxStreamConnections = 200

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// statsHub pushes a snapshot of outbox stats to every connected operator
// dashboard on a fixed tick. Single broadcaster pattern avoids one
// ticker per connection.
type statsHub struct {
	api     *API
	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
}

func newStatsHub(api *API) *statsHub {
	return &statsHub{api: api, clients: make(map[*websocket.Conn]struct{})}
}

func (h *statsHub) run() {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	for range ticker.C {
		h.broadcast()
	}
}

func (h *statsHub) broadcast() {
	stats, err := h.api.store.OutboxStats(context.Background())
	if err != nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteJSON(stats); err != nil {
			delete(h.clients, conn)
			conn.Close()
		}
	}
}

func (h *statsHub) add(conn *websocket.Conn) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.clients) >= maxStreamConnections {
		return false
	}
	h.clients[conn] = struct{}{}
	return true
}

func (h *statsHub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, conn)
}

// handleOutboxStream upgrades the request on /debug/outbox/stream to a
// WebSocket and pushes periodic outbox stat snapshots until the client
// disconnects.
func (a *API) handleOutboxStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("httpapi: websocket upgrade failed: %v", err)
		return
	}

	if !a.hub.add(conn) {
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "too many stream connections"))
		conn.Close()
		return
	}
	defer func() {
		a.hub.remove(conn)
		conn.Close()
	}()

	// A stream connection only ever pushes; the read loop just detects
	// client disconnects and drops pings/pongs.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
