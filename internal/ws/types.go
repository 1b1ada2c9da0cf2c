package ws

import "time"

// OpCode identifies the kind of frame carried by a WSMessage.
type OpCode int

// ProtocolVersion is the server/client realtime protocol version.
// Bump this only for breaking wire-contract changes.
const ProtocolVersion = 1

const (
	// DISPATCH - server events with a type field
	OpDispatch OpCode = 0

	// Sent once on connection
	OpHello OpCode = 1
)

// WSMessage is the envelope for every frame sent to listeners.
type WSMessage struct {
	Op   OpCode `json:"op"`
	Type string `json:"t,omitempty"` // Event type (only for DISPATCH)
	Data any    `json:"d,omitempty"`
	Seq  *int64 `json:"s,omitempty"` // Sequence number (only for DISPATCH)
}

type HelloPayload struct {
	ProtocolVersion int       `json:"protocolVersion"`
	SessionID       string    `json:"sessionId"`
	Authenticated   bool      `json:"authenticated"`
	ServerTime      time.Time `json:"serverTime"`
}
