package world

import (
	"sync"
	"testing"
	"time"

	"aura-server/internal/config"
	"aura-server/internal/protocol"
)

// fakeBroadcaster records every snapshot fan-out.
type fakeBroadcaster struct {
	mu     sync.Mutex
	states map[string][]protocol.WorldState
}

func newFakeBroadcaster() *fakeBroadcaster {
	return &fakeBroadcaster{states: make(map[string][]protocol.WorldState)}
}

func (f *fakeBroadcaster) BroadcastWorldState(realm string, state protocol.WorldState) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states[realm] = append(f.states[realm], state)
}

func (f *fakeBroadcaster) last(realm string) (protocol.WorldState, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	states := f.states[realm]
	if len(states) == 0 {
		return protocol.WorldState{}, false
	}
	return states[len(states)-1], true
}

// TestTickBroadcastsPerRealm tests that each tick fans out one snapshot per
// realm with sessions
func TestTickBroadcastsPerRealm(t *testing.T) {
	e := NewEngine(config.DefaultWorld(), 1)
	fb := newFakeBroadcaster()
	e.SetBroadcaster(fb)

	_ = e.Sessions.Register("p1", "genesis", DisplayUpdate{X: floatPtr(10), Y: floatPtr(20)})
	_ = e.Sessions.Register("p2", "nebula", DisplayUpdate{})

	e.Tick()

	state, ok := fb.last("genesis")
	if !ok {
		t.Fatal("genesis should receive a snapshot")
	}
	found := false
	for _, ent := range state.Entities {
		if ent.ID == "p1" {
			found = true
			if ent.X != 10 || ent.Y != 20 {
				t.Errorf("p1 should be at (10,20), got (%f,%f)", ent.X, ent.Y)
			}
		}
		if ent.ID == "p2" {
			t.Error("nebula session must not appear in genesis snapshot")
		}
	}
	if !found {
		t.Error("p1 should appear in the genesis snapshot")
	}

	if _, ok := fb.last("nebula"); !ok {
		t.Error("nebula should receive its own snapshot")
	}
	if e.TickCount() != 1 {
		t.Errorf("TickCount should be 1, got %d", e.TickCount())
	}
}

// TestTickIncludesEchoesAndStars tests snapshot composition
func TestTickIncludesEchoesAndStars(t *testing.T) {
	e := NewEngine(config.DefaultWorld(), 1)
	fb := newFakeBroadcaster()
	e.SetBroadcaster(fb)

	_ = e.Sessions.Register("p1", "genesis", DisplayUpdate{})
	e.Echoes.Add(Echo{ID: "e1", Realm: "genesis", Text: "hi"})
	e.Stars.Light("genesis", "star-1")

	e.Tick()

	state, _ := fb.last("genesis")
	if len(state.Echoes) != 1 || state.Echoes[0].ID != "e1" {
		t.Errorf("Snapshot should carry the echo, got %v", state.Echoes)
	}
	if len(state.LitStars) != 1 || state.LitStars[0] != "star-1" {
		t.Errorf("Snapshot should carry the lit star, got %v", state.LitStars)
	}
	if state.Timestamp == 0 {
		t.Error("Snapshot timestamp should be set")
	}
}

// TestComposeSnapshotExcludesPlayer tests the point-to-point join snapshot
func TestComposeSnapshotExcludesPlayer(t *testing.T) {
	e := NewEngine(config.DefaultWorld(), 1)
	_ = e.Sessions.Register("p1", "genesis", DisplayUpdate{})
	_ = e.Sessions.Register("p2", "genesis", DisplayUpdate{})

	state := e.ComposeSnapshot("genesis", "p1")
	for _, ent := range state.Entities {
		if ent.ID == "p1" {
			t.Error("Excluded player should not appear in the snapshot")
		}
	}

	full := e.ComposeSnapshot("genesis", "")
	if len(full.Entities) != len(state.Entities)+1 {
		t.Errorf("Full snapshot should have one more entity, got %d vs %d",
			len(full.Entities), len(state.Entities))
	}
}

// TestGuardiansAppearAsBots tests that guardians are flagged in snapshots
func TestGuardiansAppearAsBots(t *testing.T) {
	e := NewEngine(config.DefaultWorld(), 1)
	_ = e.Sessions.Register("p1", "genesis", DisplayUpdate{})

	// Run ticks until population control has spawned guardians.
	for i := 0; i < 5000 && e.Guardians.CountByRealm("genesis") < 2; i++ {
		e.Tick()
	}
	if e.Guardians.CountByRealm("genesis") < 2 {
		t.Fatal("Population control should have spawned guardians")
	}

	state := e.ComposeSnapshot("genesis", "")
	bots := 0
	for _, ent := range state.Entities {
		if ent.IsBot {
			bots++
			if ent.Name != "Guardian" {
				t.Errorf("Guardian name should be Guardian, got %s", ent.Name)
			}
		}
	}
	if bots != e.Guardians.CountByRealm("genesis") {
		t.Errorf("Snapshot bots (%d) should match guardian count (%d)",
			bots, e.Guardians.CountByRealm("genesis"))
	}
}

// TestGuardianOnlyRealmKeepsTicking tests that a realm with no sessions but
// live guardians still gets population control
func TestGuardianOnlyRealmKeepsTicking(t *testing.T) {
	e := NewEngine(config.DefaultWorld(), 1)
	_ = e.Sessions.Register("p1", "genesis", DisplayUpdate{})

	for i := 0; i < 5000 && e.Guardians.CountByRealm("genesis") == 0; i++ {
		e.Tick()
	}
	if e.Guardians.CountByRealm("genesis") == 0 {
		t.Fatal("Setup: expected at least one guardian")
	}

	// Last session leaves; guardians must keep being simulated.
	e.Sessions.Remove("p1")
	before := e.Guardians.ListByRealm("genesis")
	for i := 0; i < 100; i++ {
		e.Tick()
	}
	after := e.Guardians.ListByRealm("genesis")
	if len(after) == 0 {
		t.Fatal("Guardians should persist without sessions")
	}
	if len(before) == len(after) && before[0].X == after[0].X && before[0].Y == after[0].Y {
		t.Error("Guardians should keep moving in a session-less realm")
	}
}

// TestSweepEvictsAndNotifies tests timeout eviction through the engine
func TestSweepEvictsAndNotifies(t *testing.T) {
	cfg := config.DefaultWorld()
	e := NewEngine(cfg, 1)

	var evicted []Session
	e.SetOnEvict(func(s Session) { evicted = append(evicted, s) })

	_ = e.Sessions.Register("stale", "genesis", DisplayUpdate{})
	e.Sessions.mu.Lock()
	e.Sessions.sessions["stale"].LastSeen = time.Now().Add(-time.Minute)
	e.Sessions.mu.Unlock()

	e.Sweep()

	if len(evicted) != 1 || evicted[0].PlayerID != "stale" {
		t.Fatalf("OnEvict should fire once for stale, got %v", evicted)
	}
	if e.Sessions.Count() != 0 {
		t.Errorf("Registry should be empty after sweep, got %d", e.Sessions.Count())
	}
}

// TestStartStopIdempotent tests loop lifecycle
func TestStartStopIdempotent(t *testing.T) {
	cfg := config.DefaultWorld()
	cfg.TickInterval = time.Millisecond
	cfg.SweepInterval = time.Millisecond
	e := NewEngine(cfg, 1)

	e.Start()
	e.Start() // second Start is a no-op

	time.Sleep(20 * time.Millisecond)
	if e.TickCount() == 0 {
		t.Error("Running engine should have ticked")
	}

	e.Stop()
	count := e.TickCount()
	time.Sleep(10 * time.Millisecond)
	if e.TickCount() != count {
		t.Error("Stopped engine must not tick")
	}

	e.Stop() // second Stop is a no-op
}
