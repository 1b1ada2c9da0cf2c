package ws

import (
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"echobox/internal/constants"
	"echobox/internal/models"
)

// ClientState represents the lifecycle state of a WebSocket client
type ClientState int32

const (
	ClientStateConnected ClientState = iota // WS connected, not yet registered
	ClientStateListening                    // Registered with the hub, receiving events
	ClientStateClosing                      // Shutdown initiated
	ClientStateClosed                       // Terminal
)

func (s ClientState) String() string {
	switch s {
	case ClientStateConnected:
		return "connected"
	case ClientStateListening:
		return "listening"
	case ClientStateClosing:
		return "closing"
	case ClientStateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 15 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = 10 * time.Second

	// Listeners only send control frames; anything larger is a misbehaving peer.
	maxMessageSize = 4096

	// Timeout for hub registration
	registerTimeout = 5 * time.Second
)

var ErrRegisterTimeout = errors.New("hub registration timed out")

// Client is a single listener connection.
type Client struct {
	hub           *Hub
	conn          *websocket.Conn
	send          chan *WSMessage
	connCloseOnce sync.Once

	state atomic.Int32

	// Optional; nil for anonymous listeners.
	user      *models.User
	sessionID string

	// DroppedMessages tracks how many messages have been dropped due to full buffer
	DroppedMessages int64
}

func NewClient(hub *Hub, conn *websocket.Conn, user *models.User) *Client {
	c := &Client{
		hub:       hub,
		conn:      conn,
		send:      make(chan *WSMessage, constants.WSClientSendBufferSize),
		user:      user,
		sessionID: uuid.NewString(),
	}
	c.state.Store(int32(ClientStateConnected))
	return c
}

// Register adds the client to the hub and waits for the hub to accept it.
func (c *Client) Register() error {
	if !c.transitionTo(ClientStateListening) {
		return errors.New("client is not in connected state")
	}

	done := make(chan struct{})
	select {
	case c.hub.registerSync <- registerRequest{client: c, done: done}:
	case <-time.After(registerTimeout):
		return ErrRegisterTimeout
	}

	select {
	case <-done:
		return nil
	case <-time.After(registerTimeout):
		return ErrRegisterTimeout
	}
}

// Close performs cleanup for the client, ensuring it only happens once
func (c *Client) Close() {
	if !c.transitionTo(ClientStateClosing) {
		// Already closing/closed, but still ensure conn is closed
		c.connCloseOnce.Do(func() { c.conn.Close() })
		return
	}
	c.connCloseOnce.Do(func() { c.conn.Close() })
	c.transitionTo(ClientStateClosed)
}

// ReadPump keeps the read side alive for pong handling and detects
// disconnects. Listeners have no commands, so frames are discarded.
func (c *Client) ReadPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.shutdown:
		}
		c.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Debug("websocket read error", "component", "ws", "session_id", c.sessionID, "error", err)
			}
			break
		}

		var msg WSMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			slog.Debug("ignoring malformed frame", "component", "ws", "session_id", c.sessionID, "error", err)
			continue
		}
		slog.Debug("ignoring listener frame", "component", "ws", "session_id", c.sessionID, "op", msg.Op, "type", msg.Type)
	}
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if c.IsClosed() {
				return
			}

			if err := c.conn.WriteJSON(message); err != nil {
				slog.Debug("websocket write error", "component", "ws", "session_id", c.sessionID, "error", err)
				return
			}

		case <-ticker.C:
			if c.IsClosed() {
				return
			}

			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// SendHello queues the HELLO frame. Call before starting WritePump.
func (c *Client) SendHello() {
	c.send <- &WSMessage{
		Op: OpHello,
		Data: HelloPayload{
			ProtocolVersion: ProtocolVersion,
			SessionID:       c.sessionID,
			Authenticated:   c.user != nil,
			ServerTime:      time.Now().UTC(),
		},
	}
}

// getUserID returns the user ID or "anonymous" if not set
func (c *Client) getUserID() string {
	if c.user != nil {
		return c.user.ID
	}
	return "anonymous"
}

func (c *Client) SessionID() string {
	return c.sessionID
}

func (c *Client) State() ClientState {
	return ClientState(c.state.Load())
}

func (c *Client) IsListening() bool {
	return c.State() == ClientStateListening
}

// IsClosed returns true if the client is closing or closed
func (c *Client) IsClosed() bool {
	state := c.State()
	return state == ClientStateClosing || state == ClientStateClosed
}

func isValidClientTransition(from, to ClientState) bool {
	switch from {
	case ClientStateConnected:
		return to == ClientStateListening || to == ClientStateClosing
	case ClientStateListening:
		return to == ClientStateClosing
	case ClientStateClosing:
		return to == ClientStateClosed
	case ClientStateClosed:
		return false
	}
	return false
}

// transitionTo atomically transitions to a new state if valid
func (c *Client) transitionTo(newState ClientState) bool {
	for {
		current := ClientState(c.state.Load())
		if !isValidClientTransition(current, newState) {
			return false
		}
		if c.state.CompareAndSwap(int32(current), int32(newState)) {
			return true
		}
	}
}

// CloseSend closes the send channel (called by hub during cleanup)
func (c *Client) CloseSend() {
	if c.transitionTo(ClientStateClosing) {
		close(c.send)
		c.connCloseOnce.Do(func() { c.conn.Close() })
		c.transitionTo(ClientStateClosed)
	}
}
