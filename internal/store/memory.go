package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"aura-server/internal/world"
)

// MemoryStore is an in-process Store used in tests and as a degraded fallback
// when the SQLite file cannot be opened. Nothing survives a restart.
type MemoryStore struct {
	mu      sync.RWMutex
	players map[string]PlayerRecord
	echoes  map[string][]world.Echo
	markers map[string]map[string]struct{}
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		players: make(map[string]PlayerRecord),
		echoes:  make(map[string][]world.Echo),
		markers: make(map[string]map[string]struct{}),
	}
}

// GetPlayer fetches one player record.
func (s *MemoryStore) GetPlayer(_ context.Context, id string) (PlayerRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.players[id]
	if !ok {
		return PlayerRecord{}, ErrNotFound
	}
	return rec, nil
}

// UpsertPlayer inserts or updates a player record.
func (s *MemoryStore) UpsertPlayer(_ context.Context, rec PlayerRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UnixMilli()
	if existing, ok := s.players[rec.ID]; ok {
		rec.CreatedAt = existing.CreatedAt
		rec.Stars = existing.Stars
		rec.Echoes = existing.Echoes
	} else if rec.CreatedAt == 0 {
		rec.CreatedAt = now
	}
	rec.LastSeen = now
	s.players[rec.ID] = rec
	return nil
}

// IncrementStat adds amount to one of the known stat fields.
func (s *MemoryStore) IncrementStat(_ context.Context, id, field string, amount int) error {
	if !validField(field) {
		return ErrBadField
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.players[id]
	if !ok {
		return ErrNotFound
	}
	switch field {
	case FieldXP:
		rec.XP += float64(amount)
	case FieldStars:
		rec.Stars += amount
	case FieldEchoes:
		rec.Echoes += amount
	}
	rec.LastSeen = time.Now().UnixMilli()
	s.players[id] = rec
	return nil
}

// ListTopByField returns the top players ordered by a known stat field.
func (s *MemoryStore) ListTopByField(_ context.Context, field string, limit int) ([]PlayerRecord, error) {
	if !validField(field) {
		return nil, ErrBadField
	}
	if limit <= 0 {
		limit = 10
	}

	s.mu.RLock()
	out := make([]PlayerRecord, 0, len(s.players))
	for _, rec := range s.players {
		out = append(out, rec)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		a, b := statOf(out[i], field), statOf(out[j], field)
		if a != b {
			return a > b
		}
		return out[i].ID < out[j].ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// AddContentItem stores a planted echo.
func (s *MemoryStore) AddContentItem(_ context.Context, e world.Echo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.echoes[e.Realm] = append(s.echoes[e.Realm], e)
	return nil
}

// ListContentByRealm returns the realm's echoes, oldest first.
func (s *MemoryStore) ListContentByRealm(_ context.Context, realm string) ([]world.Echo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := s.echoes[realm]
	out := make([]world.Echo, len(items))
	copy(out, items)
	return out, nil
}

// MarkLit records a lit marker.
func (s *MemoryStore) MarkLit(_ context.Context, realm, markerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.markers[realm]
	if !ok {
		set = make(map[string]struct{})
		s.markers[realm] = set
	}
	set[markerID] = struct{}{}
	return nil
}

// ListLitMarkers returns the realm's lit marker IDs in sorted order.
func (s *MemoryStore) ListLitMarkers(_ context.Context, realm string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	set := s.markers[realm]
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error {
	return nil
}

func statOf(rec PlayerRecord, field string) float64 {
	switch field {
	case FieldXP:
		return rec.XP
	case FieldStars:
		return float64(rec.Stars)
	case FieldEchoes:
		return float64(rec.Echoes)
	}
	return 0
}
