package protocol

import "encoding/json"

// PLAYER_UPDATE (client -> server). Pointer fields are merged into the
// session only when present; absent fields keep their previous value.
type PlayerUpdate struct {
	X           *float64 `json:"x,omitempty"`
	Y           *float64 `json:"y,omitempty"`
	Name        *string  `json:"name,omitempty"`
	Hue         *float64 `json:"hue,omitempty"`
	XP          *float64 `json:"xp,omitempty"`
	RealmChange bool     `json:"realmChange,omitempty"`
	Realm       string   `json:"realm,omitempty"`
}

// WHISPER (client -> server). With TargetID set it is delivered to exactly
// one connection; without it the server falls back to a radius broadcast.
type Whisper struct {
	Text     string `json:"text"`
	TargetID string `json:"targetId,omitempty"`
}

// SING / PULSE (client -> server). No payload beyond the envelope.
type Sing struct{}
type Pulse struct{}

// EMOTE (client -> server).
type Emote struct {
	Emoji string `json:"emoji"`
}

// ECHO (client -> server): plant an ephemeral content item at a position.
type Echo struct {
	Text string  `json:"text"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Hue  float64 `json:"hue,omitempty"`
	Name string  `json:"name,omitempty"`
}

// STAR_LIT (client -> server): activate a world fixture, monotone per realm.
type StarLit struct {
	StarID string `json:"starId"`
}

// ECHO_IGNITE (client -> server): peer interaction with an existing echo.
type EchoIgnite struct {
	EchoID string `json:"echoId"`
}

// SIGNAL (client -> server): opaque voice-signaling payload relayed verbatim
// to one target connection. The server never inspects Payload.
type Signal struct {
	TargetID string          `json:"targetId"`
	Payload  json.RawMessage `json:"payload"`
}

// Entity is one occupant (player or guardian) in a world_state snapshot.
type Entity struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Hue     float64 `json:"hue"`
	XP      float64 `json:"xp"`
	Singing float64 `json:"singing,omitempty"`
	Pulsing float64 `json:"pulsing,omitempty"`
	Emoting string  `json:"emoting,omitempty"`
	IsBot   bool    `json:"isBot"`
}

// EchoItem is one ephemeral content item as it appears in world_state.
type EchoItem struct {
	ID        string  `json:"id"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Text      string  `json:"text"`
	Hue       float64 `json:"hue"`
	Name      string  `json:"name"`
	Realm     string  `json:"realm"`
	Ignited   int     `json:"ignited"`
	Timestamp int64   `json:"timestamp"`
}

// WORLD_STATE (server -> client): the full per-realm snapshot broadcast every
// tick and sent point-to-point on connect and realm change.
type WorldState struct {
	Entities  []Entity   `json:"entities"`
	LitStars  []string   `json:"litStars"`
	Echoes    []EchoItem `json:"echoes"`
	Timestamp int64      `json:"timestamp"`
}

// PLAYER_JOINED / PLAYER_LEAVE (server -> client).
type PlayerEvent struct {
	PlayerID string `json:"playerId"`
}

// Action broadcasts (server -> client): the inbound payload annotated with
// the originating player so every client, sender included, applies the same
// authoritative effect.
type SingEvent struct {
	PlayerID string `json:"playerId"`
}

type PulseEvent struct {
	PlayerID string `json:"playerId"`
}

type EmoteEvent struct {
	Emoji    string `json:"emoji"`
	PlayerID string `json:"playerId"`
}

type WhisperEvent struct {
	Text     string `json:"text"`
	TargetID string `json:"targetId,omitempty"`
	PlayerID string `json:"playerId"`
}

type EchoEvent struct {
	Echo     EchoItem `json:"echo"`
	PlayerID string   `json:"playerId"`
}

type StarLitEvent struct {
	StarID   string `json:"starId"`
	PlayerID string `json:"playerId"`
}

type EchoIgniteEvent struct {
	EchoID   string `json:"echoId"`
	Ignited  int    `json:"ignited"`
	PlayerID string `json:"playerId"`
}

type SignalEvent struct {
	From    string          `json:"from"`
	Payload json.RawMessage `json:"payload"`
}

// PONG (server -> client).
type Pong struct{}
