// Package hub fans session snapshots out to connected websocket viewers.
package hub

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/Brownie44l1/fer-demo/internal/session"
)

const writeWait = 5 * time.Second

type Hub struct {
	clients    map[*websocket.Conn]bool
	broadcast  chan struct{}
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	done       chan struct{}
	mutex      sync.RWMutex
	log        *logrus.Logger

	// pending holds the newest unsent snapshot; older ones are overwritten.
	pendingMu sync.Mutex
	pending   []byte
	version   uint64
}

func New(log *logrus.Logger) *Hub {
	return &Hub{
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan struct{}, 1),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		done:       make(chan struct{}),
		log:        log,
	}
}

// Run serves register, unregister and broadcast requests until ctx is done,
// then closes every remaining connection.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mutex.Lock()
			for client := range h.clients {
				client.Close()
				delete(h.clients, client)
			}
			h.mutex.Unlock()
			return

		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mutex.Unlock()
			h.log.WithField("clients", total).Info("Viewer connected")

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.Close()
			}
			total := len(h.clients)
			h.mutex.Unlock()
			h.log.WithField("clients", total).Info("Viewer disconnected")

		case <-h.broadcast:
			message := h.takePending()
			if message == nil {
				continue
			}
			h.mutex.Lock()
			for client := range h.clients {
				_ = client.SetWriteDeadline(time.Now().Add(writeWait))
				if err := client.WriteMessage(websocket.TextMessage, message); err != nil {
					h.log.WithField("error", err.Error()).Warn("Dropping viewer after failed write")
					delete(h.clients, client)
					client.Close()
				}
			}
			h.mutex.Unlock()
		}
	}
}

func (h *Hub) Register(client *websocket.Conn) {
	select {
	case h.register <- client:
	case <-h.done:
		client.Close()
	}
}

func (h *Hub) Unregister(client *websocket.Conn) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Publish hands snap to the viewers without blocking. Unsent snapshots are
// replaced by newer ones, and a snapshot older than one already published
// is ignored. Unversioned snapshots are always accepted.
func (h *Hub) Publish(snap session.Snapshot) {
	message, err := json.Marshal(snap)
	if err != nil {
		h.log.WithField("error", err.Error()).Error("Failed to encode snapshot")
		return
	}

	h.pendingMu.Lock()
	if snap.Version != 0 && snap.Version <= h.version {
		h.pendingMu.Unlock()
		h.log.WithField("version", snap.Version).Debug("Stale snapshot ignored")
		return
	}
	if snap.Version != 0 {
		h.version = snap.Version
	}
	h.pending = message
	h.pendingMu.Unlock()

	select {
	case h.broadcast <- struct{}{}:
	default:
	}
}

func (h *Hub) takePending() []byte {
	h.pendingMu.Lock()
	defer h.pendingMu.Unlock()
	message := h.pending
	h.pending = nil
	return message
}

func (h *Hub) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}
