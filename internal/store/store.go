// Package store is the persistence collaborator behind the realtime engine.
// It holds durable player profiles, planted echoes, and lit markers. The
// engine keeps operating if the store fails; callers degrade to warn-level
// no-ops instead of propagating store errors into the session layer.
package store

import (
	"context"
	"errors"

	"aura-server/internal/world"
)

// ErrNotFound is returned when a player record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrBadField is returned for a stat field outside the known set.
var ErrBadField = errors.New("unknown stat field")

// PlayerRecord is the durable profile for one player identity.
type PlayerRecord struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Hue       float64 `json:"hue"`
	XP        float64 `json:"xp"`
	Stars     int     `json:"stars"`
	Echoes    int     `json:"echoes"`
	LastSeen  int64   `json:"lastSeen"`
	CreatedAt int64   `json:"createdAt"`
}

// Stat fields accepted by IncrementStat and ListTopByField.
const (
	FieldXP     = "xp"
	FieldStars  = "stars"
	FieldEchoes = "echoes"
)

// Store is the persistence interface. All operations are simple key-value or
// append reads/writes; no cross-call transactions are needed.
type Store interface {
	GetPlayer(ctx context.Context, id string) (PlayerRecord, error)
	UpsertPlayer(ctx context.Context, rec PlayerRecord) error
	IncrementStat(ctx context.Context, id, field string, amount int) error
	ListTopByField(ctx context.Context, field string, limit int) ([]PlayerRecord, error)

	AddContentItem(ctx context.Context, echo world.Echo) error
	ListContentByRealm(ctx context.Context, realm string) ([]world.Echo, error)

	MarkLit(ctx context.Context, realm, markerID string) error
	ListLitMarkers(ctx context.Context, realm string) ([]string, error)

	Close() error
}

func validField(field string) bool {
	switch field {
	case FieldXP, FieldStars, FieldEchoes:
		return true
	}
	return false
}
