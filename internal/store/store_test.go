package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"aura-server/internal/world"
)

// openStores returns both Store implementations so every behavior is checked
// against SQLite and the in-memory fallback alike.
func openStores(t *testing.T) map[string]Store {
	t.Helper()

	sq, err := OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("OpenSQLite failed: %v", err)
	}
	t.Cleanup(func() { _ = sq.Close() })

	return map[string]Store{
		"sqlite": sq,
		"memory": NewMemoryStore(),
	}
}

// TestPlayerLifecycle tests create, read, and update of a player record
func TestPlayerLifecycle(t *testing.T) {
	for name, st := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			if _, err := st.GetPlayer(ctx, "p1"); !errors.Is(err, ErrNotFound) {
				t.Errorf("Missing player should return ErrNotFound, got %v", err)
			}

			rec := PlayerRecord{ID: "p1", Name: "Nova", Hue: 220, XP: 50}
			if err := st.UpsertPlayer(ctx, rec); err != nil {
				t.Fatalf("UpsertPlayer failed: %v", err)
			}

			got, err := st.GetPlayer(ctx, "p1")
			if err != nil {
				t.Fatalf("GetPlayer failed: %v", err)
			}
			if got.Name != "Nova" || got.Hue != 220 || got.XP != 50 {
				t.Errorf("Unexpected record: %+v", got)
			}
			if got.CreatedAt == 0 || got.LastSeen == 0 {
				t.Error("CreatedAt and LastSeen should be set")
			}

			// Update must preserve CreatedAt and the counters.
			created := got.CreatedAt
			rec.Name = "Supernova"
			if err := st.UpsertPlayer(ctx, rec); err != nil {
				t.Fatalf("Second upsert failed: %v", err)
			}
			got, _ = st.GetPlayer(ctx, "p1")
			if got.Name != "Supernova" {
				t.Errorf("Name should update, got %s", got.Name)
			}
			if got.CreatedAt != created {
				t.Error("CreatedAt should survive upserts")
			}
		})
	}
}

// TestIncrementStat tests the allow-listed counter updates
func TestIncrementStat(t *testing.T) {
	for name, st := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			_ = st.UpsertPlayer(ctx, PlayerRecord{ID: "p1", Name: "Nova"})

			if err := st.IncrementStat(ctx, "p1", FieldStars, 1); err != nil {
				t.Fatalf("IncrementStat failed: %v", err)
			}
			if err := st.IncrementStat(ctx, "p1", FieldEchoes, 2); err != nil {
				t.Fatalf("IncrementStat failed: %v", err)
			}

			got, _ := st.GetPlayer(ctx, "p1")
			if got.Stars != 1 || got.Echoes != 2 {
				t.Errorf("Counters should be 1 star, 2 echoes, got %d, %d", got.Stars, got.Echoes)
			}

			if err := st.IncrementStat(ctx, "missing", FieldStars, 1); !errors.Is(err, ErrNotFound) {
				t.Errorf("Missing player should return ErrNotFound, got %v", err)
			}
			if err := st.IncrementStat(ctx, "p1", "name", 1); !errors.Is(err, ErrBadField) {
				t.Errorf("Non-stat field should return ErrBadField, got %v", err)
			}
		})
	}
}

// TestLeaderboard tests ordering and limits
func TestLeaderboard(t *testing.T) {
	for name, st := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			_ = st.UpsertPlayer(ctx, PlayerRecord{ID: "low", Name: "Low", XP: 10})
			_ = st.UpsertPlayer(ctx, PlayerRecord{ID: "high", Name: "High", XP: 900})
			_ = st.UpsertPlayer(ctx, PlayerRecord{ID: "mid", Name: "Mid", XP: 500})

			top, err := st.ListTopByField(ctx, FieldXP, 2)
			if err != nil {
				t.Fatalf("ListTopByField failed: %v", err)
			}
			if len(top) != 2 || top[0].ID != "high" || top[1].ID != "mid" {
				t.Errorf("Expected [high mid], got %v", top)
			}

			if _, err := st.ListTopByField(ctx, "id", 10); !errors.Is(err, ErrBadField) {
				t.Errorf("Non-stat field should return ErrBadField, got %v", err)
			}
		})
	}
}

// TestEchoPersistence tests echo append, listing, and ignite upsert
func TestEchoPersistence(t *testing.T) {
	for name, st := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			e1 := world.Echo{ID: "e1", Realm: "genesis", X: 1, Y: 2, Text: "first", Hue: 200, Author: "Nova", CreatedAt: 100}
			e2 := world.Echo{ID: "e2", Realm: "genesis", Text: "second", Author: "Nova", CreatedAt: 200}
			if err := st.AddContentItem(ctx, e1); err != nil {
				t.Fatalf("AddContentItem failed: %v", err)
			}
			_ = st.AddContentItem(ctx, e2)
			_ = st.AddContentItem(ctx, world.Echo{ID: "e3", Realm: "nebula", Text: "elsewhere", CreatedAt: 300})

			got, err := st.ListContentByRealm(ctx, "genesis")
			if err != nil {
				t.Fatalf("ListContentByRealm failed: %v", err)
			}
			if len(got) != 2 {
				t.Fatalf("genesis should have 2 echoes, got %d", len(got))
			}
			if got[0].ID != "e1" || got[1].ID != "e2" {
				t.Errorf("Echoes should be oldest first, got %v", got)
			}
			if got[0].Text != "first" || got[0].X != 1 {
				t.Errorf("Echo fields should round-trip, got %+v", got[0])
			}
		})
	}
}

// TestLitMarkers tests marker persistence and idempotent relighting
func TestLitMarkers(t *testing.T) {
	for name, st := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			if err := st.MarkLit(ctx, "genesis", "star-b"); err != nil {
				t.Fatalf("MarkLit failed: %v", err)
			}
			_ = st.MarkLit(ctx, "genesis", "star-a")
			_ = st.MarkLit(ctx, "genesis", "star-a") // relight is a no-op
			_ = st.MarkLit(ctx, "nebula", "star-c")

			got, err := st.ListLitMarkers(ctx, "genesis")
			if err != nil {
				t.Fatalf("ListLitMarkers failed: %v", err)
			}
			if len(got) != 2 || got[0] != "star-a" || got[1] != "star-b" {
				t.Errorf("Expected sorted [star-a star-b], got %v", got)
			}
		})
	}
}

// TestSQLitePersistsAcrossReopen tests actual durability
func TestSQLitePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "persist.db")
	ctx := context.Background()

	st, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite failed: %v", err)
	}
	_ = st.UpsertPlayer(ctx, PlayerRecord{ID: "p1", Name: "Nova", XP: 42})
	_ = st.MarkLit(ctx, "genesis", "star-1")
	if err := st.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	st2, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	defer st2.Close()

	got, err := st2.GetPlayer(ctx, "p1")
	if err != nil {
		t.Fatalf("GetPlayer after reopen failed: %v", err)
	}
	if got.Name != "Nova" || got.XP != 42 {
		t.Errorf("Record should survive reopen, got %+v", got)
	}
	stars, _ := st2.ListLitMarkers(ctx, "genesis")
	if len(stars) != 1 || stars[0] != "star-1" {
		t.Errorf("Lit markers should survive reopen, got %v", stars)
	}
}
