package world

import (
	"sort"
	"sync"
)

// Echo is one ephemeral content item planted in a realm. Immutable after
// creation except for the Ignited counter, which only grows.
type Echo struct {
	ID        string
	Realm     string
	X, Y      float64
	Text      string
	Hue       float64
	Author    string
	CreatedAt int64 // unix milliseconds
	Ignited   int
}

// EchoBoard holds the per-realm echo lists, capped at maxPerRealm. When a
// realm is full the oldest echo is evicted to make room for the new one.
type EchoBoard struct {
	mu          sync.RWMutex
	byRealm     map[string][]Echo
	maxPerRealm int
}

// NewEchoBoard creates an empty board with the given per-realm cap.
func NewEchoBoard(maxPerRealm int) *EchoBoard {
	return &EchoBoard{
		byRealm:     make(map[string][]Echo),
		maxPerRealm: maxPerRealm,
	}
}

// Add appends an echo to its realm, evicting the oldest item first if the
// realm is at capacity. Returns the evicted echo, if any.
func (b *EchoBoard) Add(e Echo) (Echo, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	items := b.byRealm[e.Realm]
	var evicted Echo
	var didEvict bool
	for len(items) >= b.maxPerRealm && len(items) > 0 {
		evicted, didEvict = items[0], true
		items = items[1:]
	}
	b.byRealm[e.Realm] = append(items, e)
	return evicted, didEvict
}

// Ignite increments an echo's ignite counter and returns the new count.
func (b *EchoBoard) Ignite(realm, echoID string) (int, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	items := b.byRealm[realm]
	for i := range items {
		if items[i].ID == echoID {
			items[i].Ignited++
			return items[i].Ignited, true
		}
	}
	return 0, false
}

// Get returns a copy of one echo by ID.
func (b *EchoBoard) Get(realm, echoID string) (Echo, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, e := range b.byRealm[realm] {
		if e.ID == echoID {
			return e, true
		}
	}
	return Echo{}, false
}

// ListByRealm returns copies of every echo in the realm, oldest first.
func (b *EchoBoard) ListByRealm(realm string) []Echo {
	b.mu.RLock()
	defer b.mu.RUnlock()

	items := b.byRealm[realm]
	out := make([]Echo, len(items))
	copy(out, items)
	return out
}

// Recent returns copies of the n most recent echoes in the realm, oldest
// first among those returned.
func (b *EchoBoard) Recent(realm string, n int) []Echo {
	b.mu.RLock()
	defer b.mu.RUnlock()

	items := b.byRealm[realm]
	if len(items) > n {
		items = items[len(items)-n:]
	}
	out := make([]Echo, len(items))
	copy(out, items)
	return out
}

// Count returns the number of echoes in the realm.
func (b *EchoBoard) Count(realm string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.byRealm[realm])
}

// Seed loads echoes without capacity eviction, used to hydrate a realm from
// the persistence store at startup.
func (b *EchoBoard) Seed(realm string, echoes []Echo) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.byRealm[realm]) > 0 {
		return
	}
	items := make([]Echo, len(echoes))
	copy(items, echoes)
	if len(items) > b.maxPerRealm {
		items = items[len(items)-b.maxPerRealm:]
	}
	b.byRealm[realm] = items
}

// StarField tracks the lit-marker set per realm. Markers only ever turn on;
// within a server run the set is append-only.
type StarField struct {
	mu      sync.RWMutex
	byRealm map[string]map[string]struct{}
}

// NewStarField creates an empty lit-marker set.
func NewStarField() *StarField {
	return &StarField{byRealm: make(map[string]map[string]struct{})}
}

// Light marks the fixture as lit. Returns false if it was already lit.
func (f *StarField) Light(realm, starID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	set, ok := f.byRealm[realm]
	if !ok {
		set = make(map[string]struct{})
		f.byRealm[realm] = set
	}
	if _, lit := set[starID]; lit {
		return false
	}
	set[starID] = struct{}{}
	return true
}

// IsLit reports whether the fixture has been lit.
func (f *StarField) IsLit(realm, starID string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()

	_, lit := f.byRealm[realm][starID]
	return lit
}

// List returns the realm's lit markers in sorted order.
func (f *StarField) List(realm string) []string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	set := f.byRealm[realm]
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Seed loads lit markers from the persistence store at startup.
func (f *StarField) Seed(realm string, starIDs []string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	set, ok := f.byRealm[realm]
	if !ok {
		set = make(map[string]struct{})
		f.byRealm[realm] = set
	}
	for _, id := range starIDs {
		set[id] = struct{}{}
	}
}
