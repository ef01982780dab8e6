// Package protocol defines the wire messages exchanged over the persistent
// WebSocket connection. Every frame is a Message envelope whose Data payload
// is decoded into one of the typed structs in messages.go based on Type.
package protocol

import (
	"bytes"
	"encoding/json"
	"time"
)

// Inbound message types (client -> server).
const (
	TypePlayerUpdate = "player_update"
	TypeWhisper      = "whisper"
	TypeSing         = "sing"
	TypePulse        = "pulse"
	TypeEmote        = "emote"
	TypeEcho         = "echo"
	TypeStarLit      = "star_lit"
	TypeEchoIgnite   = "echo_ignite"
	TypeSignal       = "signal"
	TypePing         = "ping"
)

// Outbound message types (server -> client).
const (
	TypeWorldState   = "world_state"
	TypePlayerJoined = "player_joined"
	TypePlayerLeave  = "player_leave"
	TypePong         = "pong"
)

// Message is the envelope for every frame in both directions.
type Message struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

// New builds an outbound message with the current wall-clock timestamp.
func New(msgType string, data interface{}) (Message, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Message{}, err
	}
	return Message{
		Type:      msgType,
		Data:      raw,
		Timestamp: time.Now().UnixMilli(),
	}, nil
}

// Parse decodes a raw frame into a Message envelope. The payload stays raw
// until DecodeData is called with the type-appropriate struct.
func Parse(raw []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return Message{}, err
	}
	return msg, nil
}

// DecodeData unmarshals the payload into the given struct. Unknown fields are
// rejected so a malformed or hostile payload fails loudly instead of being
// silently dropped field by field.
func (m Message) DecodeData(into interface{}) error {
	if len(m.Data) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(m.Data))
	dec.DisallowUnknownFields()
	return dec.Decode(into)
}

// Encode marshals the full envelope for the wire.
func (m Message) Encode() ([]byte, error) {
	return json.Marshal(m)
}
