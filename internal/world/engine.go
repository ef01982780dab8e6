package world

import (
	"log"
	"sync"
	"sync/atomic"
	"time"

	"aura-server/internal/config"
	"aura-server/internal/protocol"
)

// Broadcaster fans a composed realm snapshot out to every connection in that
// realm. The engine composes the snapshot with no locks held across the call,
// so implementations are free to do slow network writes.
type Broadcaster interface {
	BroadcastWorldState(realm string, state protocol.WorldState)
}

// Engine is the authoritative world state: the session registry, the guardian
// population, the echo board, and the lit-marker set, driven by a fixed-rate
// tick loop plus a slower liveness sweep. The two cadences run on independent
// goroutines so a slow sweep can never delay a tick.
type Engine struct {
	Sessions  *Registry
	Guardians *Population
	Echoes    *EchoBoard
	Stars     *StarField

	cfg config.WorldConfig

	mu      sync.Mutex
	running bool

	stopChan chan struct{}
	wg       sync.WaitGroup

	broadcaster Broadcaster
	onEvict     func(Session)
	onTickDone  func(time.Duration)

	tickCount atomic.Int64
}

// NewEngine creates an engine with empty state. Call SetBroadcaster before
// Start, then Start to begin ticking.
func NewEngine(cfg config.WorldConfig, seed int64) *Engine {
	return &Engine{
		Sessions:  NewRegistry(),
		Guardians: NewPopulation(cfg, seed),
		Echoes:    NewEchoBoard(cfg.MaxEchoesRealm),
		Stars:     NewStarField(),
		cfg:       cfg,
	}
}

// Config returns the engine's world configuration.
func (e *Engine) Config() config.WorldConfig {
	return e.cfg
}

// SetBroadcaster wires the fan-out sink for tick snapshots.
func (e *Engine) SetBroadcaster(b Broadcaster) {
	e.broadcaster = b
}

// SetOnEvict wires the callback invoked for each session removed by the
// liveness sweep. The session is already gone from the registry when the
// callback runs.
func (e *Engine) SetOnEvict(fn func(Session)) {
	e.onEvict = fn
}

// SetOnTickDone wires an observer for tick duration, used for metrics.
func (e *Engine) SetOnTickDone(fn func(time.Duration)) {
	e.onTickDone = fn
}

// Start launches the tick loop and the sweep loop. Calling Start on a running
// engine is a no-op.
func (e *Engine) Start() {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return
	}
	e.running = true
	e.stopChan = make(chan struct{})
	e.mu.Unlock()

	e.wg.Add(2)
	go e.tickLoop()
	go e.sweepLoop()

	log.Printf("🎮 World engine started: tick %v, sweep %v", e.cfg.TickInterval, e.cfg.SweepInterval)
}

// Stop halts both loops. When Stop returns, no further tick or sweep will
// fire. Safe to call more than once.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	close(e.stopChan)
	e.mu.Unlock()

	e.wg.Wait()
	log.Println("🛑 World engine stopped")
}

func (e *Engine) tickLoop() {
	defer e.wg.Done()
	ticker := time.NewTicker(e.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			e.Tick()
		case <-e.stopChan:
			return
		}
	}
}

func (e *Engine) sweepLoop() {
	defer e.wg.Done()
	ticker := time.NewTicker(e.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			e.Sweep()
		case <-e.stopChan:
			return
		}
	}
}

// Tick runs one simulation step: population control per live realm, guardian
// advancement, then a snapshot broadcast to every realm with at least one
// session. Exported so tests can single-step instead of sleeping.
func (e *Engine) Tick() {
	start := time.Now()
	e.tickCount.Add(1)

	// Population control iterates realms that actually have occupants, so a
	// realm empties out naturally once its last session and guardian leave.
	realms := e.activeRealms()
	positions := make(map[string][]Vec, len(realms))
	for _, realm := range realms {
		sessions := e.Sessions.SnapshotByRealm(realm)
		e.Guardians.ManagePopulation(realm, len(sessions))

		pts := make([]Vec, 0, len(sessions))
		for _, s := range sessions {
			pts = append(pts, Vec{X: s.X, Y: s.Y})
		}
		positions[realm] = pts
	}

	e.Guardians.AdvanceAll(positions)

	if e.broadcaster != nil {
		for _, realm := range e.Sessions.Realms() {
			e.broadcaster.BroadcastWorldState(realm, e.ComposeSnapshot(realm, ""))
		}
	}

	if e.onTickDone != nil {
		e.onTickDone(time.Since(start))
	}
}

// Sweep evicts sessions with no inbound traffic inside the timeout window and
// reports each eviction through the OnEvict callback. Exported for tests.
func (e *Engine) Sweep() {
	evicted := e.Sessions.SweepStale(e.cfg.SessionTimeout)
	for _, s := range evicted {
		log.Printf("🧹 Cleaning up stale session: %s (realm %s)", s.PlayerID, s.Realm)
		if e.onEvict != nil {
			e.onEvict(s)
		}
	}
}

// TickCount returns how many ticks have run.
func (e *Engine) TickCount() int64 {
	return e.tickCount.Load()
}

// ComposeSnapshot builds the full world_state payload for one realm: players
// and guardians as one ordered entity list, the lit-marker set, and the most
// recent echoes. excludePlayerID drops one player from the entity list, used
// for the point-to-point snapshot sent to a client that just arrived and has
// no authoritative position yet.
func (e *Engine) ComposeSnapshot(realm, excludePlayerID string) protocol.WorldState {
	sessions := e.Sessions.SnapshotByRealm(realm)
	guardians := e.Guardians.ListByRealm(realm)

	entities := make([]protocol.Entity, 0, len(sessions)+len(guardians))
	for _, s := range sessions {
		if s.PlayerID == excludePlayerID {
			continue
		}
		entities = append(entities, protocol.Entity{
			ID:   s.PlayerID,
			Name: s.Name,
			X:    s.X,
			Y:    s.Y,
			Hue:  s.Hue,
			XP:   s.XP,
		})
	}
	for _, g := range guardians {
		entities = append(entities, protocol.Entity{
			ID:      g.ID,
			Name:    "Guardian",
			X:       g.X,
			Y:       g.Y,
			Hue:     g.Hue,
			XP:      g.XP,
			Singing: g.Singing,
			Pulsing: g.Pulsing,
			Emoting: g.Emoting,
			IsBot:   true,
		})
	}

	echoes := e.Echoes.Recent(realm, e.cfg.SnapshotEchoes)
	items := make([]protocol.EchoItem, 0, len(echoes))
	for _, ec := range echoes {
		items = append(items, protocol.EchoItem{
			ID:        ec.ID,
			X:         ec.X,
			Y:         ec.Y,
			Text:      ec.Text,
			Hue:       ec.Hue,
			Name:      ec.Author,
			Realm:     ec.Realm,
			Ignited:   ec.Ignited,
			Timestamp: ec.CreatedAt,
		})
	}

	return protocol.WorldState{
		Entities:  entities,
		LitStars:  e.Stars.List(realm),
		Echoes:    items,
		Timestamp: time.Now().UnixMilli(),
	}
}

func (e *Engine) activeRealms() []string {
	seen := make(map[string]struct{})
	for _, realm := range e.Sessions.Realms() {
		seen[realm] = struct{}{}
	}
	for _, realm := range e.Guardians.Realms() {
		seen[realm] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for realm := range seen {
		out = append(out, realm)
	}
	return out
}
