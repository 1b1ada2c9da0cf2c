package ws

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"echobox/internal/constants"
)

const (
	// maxDroppedMessagesBeforeDisconnect is the threshold for disconnecting slow clients
	maxDroppedMessagesBeforeDisconnect = 100
)

// registerRequest is used for synchronous registration with a callback
type registerRequest struct {
	client *Client
	done   chan struct{}
}

// Hub fans dispatch events out to every registered listener. There is no
// backlog: a listener only sees events published while it is registered.
type Hub struct {
	clients      map[*Client]bool
	broadcast    chan *WSMessage
	registerSync chan registerRequest
	unregister   chan *Client
	shutdown     chan struct{}
	shutdownOnce sync.Once
	sequence     atomic.Int64
	mu           sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		clients:      make(map[*Client]bool),
		broadcast:    make(chan *WSMessage, constants.WSBroadcastBufferSize),
		registerSync: make(chan registerRequest),
		unregister:   make(chan *Client),
		shutdown:     make(chan struct{}),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case <-h.shutdown:
			h.mu.Lock()
			for client := range h.clients {
				client.CloseSend()
				delete(h.clients, client)
			}
			h.mu.Unlock()
			slog.Info("shutdown complete", "component", "hub")
			return

		case req := <-h.registerSync:
			h.mu.Lock()
			h.clients[req.client] = true
			h.mu.Unlock()
			close(req.done)
			slog.Debug("listener registered", "component", "hub", "session_id", req.client.sessionID, "user_id", req.client.getUserID())

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.CloseSend()
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			h.mu.RLock()
			for client := range h.clients {
				h.sendToClientLocked(client, message)
			}
			h.mu.RUnlock()
		}
	}
}

// Caller must hold at least a read lock on h.mu.
func (h *Hub) sendToClientLocked(client *Client, msg *WSMessage) {
	if !client.IsListening() {
		return
	}
	select {
	case client.send <- msg:
	default:
		dropped := atomic.AddInt64(&client.DroppedMessages, 1)

		// Log warning periodically (every 10 drops)
		if dropped%10 == 1 {
			slog.Warn("dropped messages for slow client", "component", "hub", "dropped", dropped, "session_id", client.sessionID)
		}

		if dropped >= maxDroppedMessagesBeforeDisconnect {
			slog.Warn("disconnecting slow client", "component", "hub", "session_id", client.sessionID, "dropped", dropped)
			// Close will be handled by the client's pumps
			client.Close()
		}
	}
}

// Publish broadcasts a DISPATCH event to every listener. It never blocks
// once the hub has shut down.
func (h *Hub) Publish(event string, payload any) {
	seq := h.sequence.Add(1)
	msg := &WSMessage{
		Op:   OpDispatch,
		Type: event,
		Data: payload,
		Seq:  &seq,
	}

	select {
	case h.broadcast <- msg:
	case <-h.shutdown:
	}
}

// ClientCount reports how many listeners are registered.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) Shutdown() {
	h.shutdownOnce.Do(func() { close(h.shutdown) })
}
