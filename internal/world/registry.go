package world

import (
	"errors"
	"log"
	"sort"
	"sync"
	"time"
)

// ErrDuplicateSession is returned by Register when the player already has a
// live session. The gateway resolves this by tearing down the old connection
// and registering again.
var ErrDuplicateSession = errors.New("session already registered")

// ErrSessionNotFound is returned by operations that need an existing session.
var ErrSessionNotFound = errors.New("session not found")

// Session is the server-side record of one connected client: identity, realm,
// liveness, and the last-known display state used to build snapshots.
type Session struct {
	PlayerID string
	Realm    string
	LastSeen time.Time
	X, Y     float64
	Name     string
	Hue      float64
	XP       float64
}

// DisplayUpdate carries a partial update of a session's display state.
// Nil fields keep their previous value.
type DisplayUpdate struct {
	X    *float64
	Y    *float64
	Name *string
	Hue  *float64
	XP   *float64
}

// Registry owns the set of live sessions, keyed by player ID. All access goes
// through the mutex; methods never return internal pointers, only copies, so
// callers can hold snapshots across network writes without blocking mutation.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry creates an empty session registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Register inserts a new session with liveness set to now.
func (r *Registry) Register(playerID, realm string, display DisplayUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[playerID]; ok {
		return ErrDuplicateSession
	}

	s := &Session{
		PlayerID: playerID,
		Realm:    realm,
		LastSeen: time.Now(),
		Name:     "Wanderer",
		Hue:      200,
	}
	applyDisplay(s, display)
	r.sessions[playerID] = s
	return nil
}

// Touch refreshes the session's liveness timestamp. A touch for an absent
// session is harmless; it just means the player disconnected moments ago.
func (r *Registry) Touch(playerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[playerID]
	if !ok {
		log.Printf("👻 Touch for unknown session: %s", playerID)
		return
	}
	s.LastSeen = time.Now()
}

// UpdateDisplay merges the provided fields into the session. A late-arriving
// update for an already-removed session is a silent no-op.
func (r *Registry) UpdateDisplay(playerID string, display DisplayUpdate) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[playerID]
	if !ok {
		return
	}
	applyDisplay(s, display)
}

// Get returns a copy of the session.
func (r *Registry) Get(playerID string) (Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[playerID]
	if !ok {
		return Session{}, false
	}
	return *s, true
}

// ChangeRealm atomically moves the session to a new realm and returns the old
// one. Notifying either realm is the caller's responsibility.
func (r *Registry) ChangeRealm(playerID, newRealm string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[playerID]
	if !ok {
		return "", ErrSessionNotFound
	}
	old := s.Realm
	s.Realm = newRealm
	return old, nil
}

// Remove deletes the session. Idempotent.
func (r *Registry) Remove(playerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, playerID)
}

// SnapshotByRealm returns copies of every session in the realm, ordered by
// player ID for deterministic broadcasts.
func (r *Registry) SnapshotByRealm(realm string) []Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Session, 0, 8)
	for _, s := range r.sessions {
		if s.Realm == realm {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PlayerID < out[j].PlayerID })
	return out
}

// CountByRealm returns the number of live sessions in the realm.
func (r *Registry) CountByRealm(realm string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, s := range r.sessions {
		if s.Realm == realm {
			n++
		}
	}
	return n
}

// Count returns the total number of live sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Realms returns every realm with at least one live session.
func (r *Registry) Realms() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, s := range r.sessions {
		seen[s.Realm] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for realm := range seen {
		out = append(out, realm)
	}
	sort.Strings(out)
	return out
}

// SweepStale removes every session whose last inbound traffic is older than
// the timeout and returns copies of the evicted records. A session removed by
// one sweep can never be returned by a later one.
func (r *Registry) SweepStale(timeout time.Duration) []Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	var evicted []Session
	for id, s := range r.sessions {
		if now.Sub(s.LastSeen) > timeout {
			evicted = append(evicted, *s)
			delete(r.sessions, id)
		}
	}
	return evicted
}

func applyDisplay(s *Session, d DisplayUpdate) {
	if d.X != nil {
		s.X = *d.X
	}
	if d.Y != nil {
		s.Y = *d.Y
	}
	if d.Name != nil {
		s.Name = *d.Name
	}
	if d.Hue != nil {
		s.Hue = *d.Hue
	}
	if d.XP != nil {
		s.XP = *d.XP
	}
}
