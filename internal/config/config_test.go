package config

import (
	"testing"
	"time"
)

// TestDefaultWorld tests the baked-in simulation defaults
func TestDefaultWorld(t *testing.T) {
	cfg := DefaultWorld()

	if cfg.TickInterval != 50*time.Millisecond {
		t.Errorf("TickInterval should be 50ms, got %v", cfg.TickInterval)
	}
	if cfg.SessionTimeout != 30*time.Second {
		t.Errorf("SessionTimeout should be 30s, got %v", cfg.SessionTimeout)
	}
	if cfg.MinPopulation != 3 {
		t.Errorf("MinPopulation should be 3, got %d", cfg.MinPopulation)
	}
	if cfg.DefaultRealm != "genesis" {
		t.Errorf("DefaultRealm should be genesis, got %s", cfg.DefaultRealm)
	}
	if cfg.WhisperRange != 500 {
		t.Errorf("WhisperRange should be 500, got %f", cfg.WhisperRange)
	}
}

// TestWorldFromEnv tests environment overrides
func TestWorldFromEnv(t *testing.T) {
	t.Setenv("TICK_INTERVAL", "100ms")
	t.Setenv("MIN_POPULATION", "5")
	t.Setenv("DEFAULT_REALM", "nebula")

	cfg := WorldFromEnv()
	if cfg.TickInterval != 100*time.Millisecond {
		t.Errorf("TICK_INTERVAL override failed, got %v", cfg.TickInterval)
	}
	if cfg.MinPopulation != 5 {
		t.Errorf("MIN_POPULATION override failed, got %d", cfg.MinPopulation)
	}
	if cfg.DefaultRealm != "nebula" {
		t.Errorf("DEFAULT_REALM override failed, got %s", cfg.DefaultRealm)
	}
	// Untouched values keep their defaults.
	if cfg.SweepInterval != 10*time.Second {
		t.Errorf("SweepInterval should keep its default, got %v", cfg.SweepInterval)
	}
}

// TestEnvOverrideIgnoresGarbage tests that malformed values fall back
func TestEnvOverrideIgnoresGarbage(t *testing.T) {
	t.Setenv("TICK_INTERVAL", "not-a-duration")
	t.Setenv("MIN_POPULATION", "many")

	cfg := WorldFromEnv()
	if cfg.TickInterval != 50*time.Millisecond {
		t.Errorf("Garbage duration should keep the default, got %v", cfg.TickInterval)
	}
	if cfg.MinPopulation != 3 {
		t.Errorf("Garbage int should keep the default, got %d", cfg.MinPopulation)
	}
}

// TestServerFromEnv tests the server overrides
func TestServerFromEnv(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("MAX_CONNS_PER_IP", "3")

	cfg := ServerFromEnv()
	if cfg.Port != 8080 {
		t.Errorf("PORT override failed, got %d", cfg.Port)
	}
	if cfg.MaxConnsPerIP != 3 {
		t.Errorf("MAX_CONNS_PER_IP override failed, got %d", cfg.MaxConnsPerIP)
	}
	if cfg.MaxConnections != 500 {
		t.Errorf("MaxConnections should keep its default, got %d", cfg.MaxConnections)
	}
}

// TestStoreFromEnv tests the store path override
func TestStoreFromEnv(t *testing.T) {
	if got := StoreFromEnv().Path; got != "data/aura.db" {
		t.Errorf("Default store path should be data/aura.db, got %s", got)
	}

	t.Setenv("STORE_PATH", "/tmp/other.db")
	if got := StoreFromEnv().Path; got != "/tmp/other.db" {
		t.Errorf("STORE_PATH override failed, got %s", got)
	}
}
