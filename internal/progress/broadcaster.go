// Package progress streams build progress snapshots to websocket clients
// so a host UI can watch a training run without polling the process.
package progress

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/lawnchairsociety/tilegen/internal/obslog"
)

// Broadcaster accepts websocket connections and pushes JSON-encoded
// BuildProgress snapshots to every connected client.
type Broadcaster struct {
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*websocket.Conn]bool
	closed  bool
}

// NewBroadcaster creates a broadcaster. allowAll disables the origin check,
// for local tooling; a host embedding this should leave it off and serve
// same-origin.
func NewBroadcaster(allowAll bool) *Broadcaster {
	b := &Broadcaster{
		clients: make(map[*websocket.Conn]bool),
	}
	if allowAll {
		b.upgrader.CheckOrigin = func(*http.Request) bool { return true }
	}
	return b
}

// ServeHTTP upgrades the request and registers the client. The connection
// is read-drained in the background so close frames are processed; clients
// are not expected to send anything.
func (b *Broadcaster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		obslog.Warning("progress client upgrade failed", "error", err)
		return
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		conn.Close()
		return
	}
	b.clients[conn] = true
	b.mu.Unlock()

	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				b.drop(conn)
				return
			}
		}
	}()
}

// Publish sends a snapshot to every connected client, dropping clients
// whose writes fail.
func (b *Broadcaster) Publish(snapshot any) {
	data, err := json.Marshal(snapshot)
	if err != nil {
		obslog.Error("progress snapshot marshal failed", "error", err)
		return
	}

	b.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(b.clients))
	for conn := range b.clients {
		conns = append(conns, conn)
	}
	b.mu.Unlock()

	for _, conn := range conns {
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			b.drop(conn)
		}
	}
}

// ClientCount returns the number of connected clients.
func (b *Broadcaster) ClientCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}

// Close disconnects every client and refuses new ones.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	b.closed = true
	for conn := range b.clients {
		conn.Close()
		delete(b.clients, conn)
	}
	b.mu.Unlock()
}

func (b *Broadcaster) drop(conn *websocket.Conn) {
	b.mu.Lock()
	if b.clients[conn] {
		delete(b.clients, conn)
	}
	b.mu.Unlock()
	conn.Close()
}
