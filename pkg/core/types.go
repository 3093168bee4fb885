package core

import (
	"encoding/json"
	"time"
)

// Message kinds carried in the Envelope "type" field.
const (
	MsgAuth         = "auth"
	MsgPong         = "pong"
	MsgAuthSuccess  = "auth_success"
	MsgConfigUpdate = "config_update"
	MsgPing         = "ping"
	MsgError        = "error"
)

// Envelope is the bidirectional wire format shared by every transport.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Message string          `json:"message,omitempty"`
}

// AuthPayload is the payload of a client "auth" message. An empty Shop
// falls back to the hub's configured default shop.
type AuthPayload struct {
	Shop  string `json:"shop"`
	Token string `json:"token"`
}

// ChangeEvent is the unit republished to external brokers after an admin
// write. Section is empty when the whole document was replaced.
type ChangeEvent struct {
	ID        string          `json:"id"`
	Shop      string          `json:"shop"`
	Section   string          `json:"section,omitempty"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewEnvelope marshals payload into a ready-to-send envelope.
func NewEnvelope(kind string, payload any) ([]byte, error) {
	env := Envelope{Type: kind}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		env.Payload = raw
	}
	return json.Marshal(env)
}

// NewErrorEnvelope builds an "error" envelope with a human-readable message.
func NewErrorEnvelope(message string) []byte {
	data, _ := json.Marshal(Envelope{Type: MsgError, Message: message})
	return data
}

// PingEnvelope is the keep-alive probe sent to open connections.
func PingEnvelope() []byte {
	data, _ := json.Marshal(Envelope{Type: MsgPing})
	return data
}
