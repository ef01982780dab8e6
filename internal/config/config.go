// Package config provides centralized configuration management.
// All tunables for the simulation, the gateway, and the store live here;
// other packages receive config structs instead of reading the environment.
package config

import (
	"os"
	"strconv"
	"time"
)

// WorldConfig holds the simulation and broadcast tunables.
type WorldConfig struct {
	TickInterval    time.Duration // fixed simulation+broadcast cadence
	SweepInterval   time.Duration // stale-session sweep cadence
	SessionTimeout  time.Duration // no inbound traffic for this long -> evicted
	MinPopulation   int           // target occupancy (sessions + guardians) per realm
	DefaultRealm    string        // realm assigned when the handshake omits one
	WhisperRange    float64       // radius for untargeted whispers
	MaxEchoesRealm  int           // in-memory echo cap per realm (oldest evicted)
	SnapshotEchoes  int           // most recent echoes included per world_state
	ContainRadius   float64       // guardians beyond this drift back to origin
	SpawnRingMin    float64       // guardian spawn ring inner radius
	SpawnRingSpread float64       // spawn ring width beyond SpawnRingMin
}

// DefaultWorld returns the default world configuration. The cadences mirror
// the production deployment: 20Hz simulation, 10s sweep, 30s timeout.
func DefaultWorld() WorldConfig {
	return WorldConfig{
		TickInterval:    50 * time.Millisecond,
		SweepInterval:   10 * time.Second,
		SessionTimeout:  30 * time.Second,
		MinPopulation:   3,
		DefaultRealm:    "genesis",
		WhisperRange:    500,
		MaxEchoesRealm:  100,
		SnapshotEchoes:  50,
		ContainRadius:   2000,
		SpawnRingMin:    300,
		SpawnRingSpread: 700,
	}
}

// WorldFromEnv returns world configuration with environment overrides.
func WorldFromEnv() WorldConfig {
	cfg := DefaultWorld()

	if d := getEnvDuration("TICK_INTERVAL", 0); d > 0 {
		cfg.TickInterval = d
	}
	if d := getEnvDuration("SWEEP_INTERVAL", 0); d > 0 {
		cfg.SweepInterval = d
	}
	if d := getEnvDuration("SESSION_TIMEOUT", 0); d > 0 {
		cfg.SessionTimeout = d
	}
	if n := getEnvInt("MIN_POPULATION", 0); n > 0 {
		cfg.MinPopulation = n
	}
	if r := os.Getenv("DEFAULT_REALM"); r != "" {
		cfg.DefaultRealm = r
	}
	if f := getEnvFloat("WHISPER_RANGE", 0); f > 0 {
		cfg.WhisperRange = f
	}
	if n := getEnvInt("MAX_ECHOES_PER_REALM", 0); n > 0 {
		cfg.MaxEchoesRealm = n
	}

	return cfg
}

// ServerConfig holds HTTP/WebSocket server settings.
type ServerConfig struct {
	Port             int
	MaxConnections   int // hard cap on concurrent WebSocket sessions
	MaxConnsPerIP    int
	InboundPerSecond float64 // per-connection inbound message budget
	InboundBurst     int
}

// DefaultServer returns the default server configuration.
func DefaultServer() ServerConfig {
	return ServerConfig{
		Port:             3001,
		MaxConnections:   500,
		MaxConnsPerIP:    10,
		InboundPerSecond: 40,
		InboundBurst:     80,
	}
}

// ServerFromEnv returns server configuration with environment overrides.
func ServerFromEnv() ServerConfig {
	cfg := DefaultServer()

	if p := getEnvInt("PORT", 0); p > 0 {
		cfg.Port = p
	}
	if n := getEnvInt("MAX_CONNECTIONS", 0); n > 0 {
		cfg.MaxConnections = n
	}
	if n := getEnvInt("MAX_CONNS_PER_IP", 0); n > 0 {
		cfg.MaxConnsPerIP = n
	}

	return cfg
}

// StoreConfig holds persistence settings.
type StoreConfig struct {
	Path string // SQLite database path; empty selects the in-memory store
}

// StoreFromEnv returns store configuration with environment overrides.
func StoreFromEnv() StoreConfig {
	return StoreConfig{
		Path: getEnvWithDefault("STORE_PATH", "data/aura.db"),
	}
}

// AppConfig holds the complete application configuration.
type AppConfig struct {
	World  WorldConfig
	Server ServerConfig
	Store  StoreConfig
}

// Load returns the complete configuration with environment overrides.
func Load() AppConfig {
	return AppConfig{
		World:  WorldFromEnv(),
		Server: ServerFromEnv(),
		Store:  StoreFromEnv(),
	}
}

func getEnvWithDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
