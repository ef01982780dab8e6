package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"aura-server/internal/api"
	"aura-server/internal/config"
	"aura-server/internal/store"
	"aura-server/internal/world"
)

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Println("💡 No .env file found, using environment variables only")
	}

	log.Println("✨ ================================")
	log.Println("✨  AURA - WORLD SERVER")
	log.Println("✨ ================================")

	appConfig := config.Load()
	worldCfg := appConfig.World
	serverCfg := appConfig.Server
	storeCfg := appConfig.Store

	log.Printf("🎮 Config: tick %v, sweep %v, timeout %v, min population %d, default realm %q",
		worldCfg.TickInterval, worldCfg.SweepInterval, worldCfg.SessionTimeout,
		worldCfg.MinPopulation, worldCfg.DefaultRealm)

	st := openStore(storeCfg)
	defer st.Close()

	engine := world.NewEngine(worldCfg, time.Now().UnixNano())
	engine.SetOnTickDone(func(d time.Duration) {
		api.RecordTick(d)
		api.UpdateSessionCount(engine.Sessions.Count())
		api.UpdateGuardianCount(engine.Guardians.Count())
	})

	server := api.NewServer(engine, st, serverCfg)

	if err := api.StartDebugServer(api.DefaultObservabilityConfig()); err != nil {
		log.Printf("⚠️ Debug server failed to start: %v", err)
	}

	engine.Start()

	errChan := make(chan error, 1)
	go func() {
		errChan <- server.Start()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.Printf("🛑 Received signal: %v", sig)
	case err := <-errChan:
		if err != nil {
			log.Printf("❌ Server error: %v", err)
		}
	}

	log.Println("🛑 Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Stop(ctx); err != nil {
		log.Printf("⚠️ Server shutdown error: %v", err)
	}
	engine.Stop()
	log.Println("👋 Shutdown complete")
}

// openStore opens the SQLite store and falls back to the in-memory store if
// the file cannot be opened. The world keeps running either way; only
// durability is lost.
func openStore(cfg config.StoreConfig) store.Store {
	st, err := store.OpenSQLite(cfg.Path)
	if err != nil {
		log.Printf("⚠️ SQLite unavailable at %s, using in-memory store: %v", cfg.Path, err)
		return store.NewMemoryStore()
	}
	log.Printf("💾 SQLite store: %s", cfg.Path)
	return st
}
