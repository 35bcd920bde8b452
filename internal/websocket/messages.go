package websocket

import (
	"encoding/json"
	"time"
)

// MessageType names a server push.
type MessageType string

const (
	TypeSyncCompleted       MessageType = "sync.completed"
	TypeConnectivityChanged MessageType = "connectivity.changed"
	TypeCheckinRecorded     MessageType = "checkin.recorded"
	TypeSessionExpired      MessageType = "session.expired"
)

// Message is the envelope pushed to clients.
type Message struct {
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload,omitempty"`
}

// NewMessage stamps a message with the current time.
func NewMessage(msgType MessageType, payload interface{}) Message {
	return Message{Type: msgType, Timestamp: time.Now().UTC(), Payload: payload}
}

// JSON encodes the message.
func (m Message) JSON() ([]byte, error) {
	return json.Marshal(m)
}
