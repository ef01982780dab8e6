package api

import (
	"log"
	"net/http"
	"net/http/pprof"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics with bounded cardinality (no per-player or per-realm labels).
var (
	tickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "world_tick_duration_seconds",
		Help:    "Time spent in one simulation tick including broadcast",
		Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05},
	})

	sessionCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "world_session_count",
		Help: "Current number of live sessions",
	})

	guardianCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "world_guardian_count",
		Help: "Current number of synthetic guardians",
	})

	connectionRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "connection_rejected_total",
		Help: "Connections rejected by limits or handshake validation",
	}, []string{"reason"}) // Bounded: "rate_limit", "handshake", "ws_total_limit", "ws_ip_limit"

	wsMessagesInbound = promauto.NewCounter(prometheus.CounterOpts{
		Name: "websocket_messages_inbound_total",
		Help: "Total inbound WebSocket messages processed",
	})

	broadcastSendErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "broadcast_send_errors_total",
		Help: "Per-connection send failures during fan-out",
	})
)

// ObservabilityConfig configures the debug server.
type ObservabilityConfig struct {
	Enabled    bool
	ListenAddr string
}

// DefaultObservabilityConfig returns safe defaults: localhost only.
func DefaultObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		Enabled:    true,
		ListenAddr: "127.0.0.1:6060",
	}
}

// StartDebugServer starts the internal pprof+metrics server. It must stay on
// localhost unless explicitly overridden via ALLOW_DEBUG_EXTERNAL.
func StartDebugServer(cfg ObservabilityConfig) error {
	if !cfg.Enabled {
		log.Println("📊 Debug server disabled")
		return nil
	}

	if cfg.ListenAddr != "127.0.0.1:6060" && cfg.ListenAddr != "localhost:6060" {
		if os.Getenv("ALLOW_DEBUG_EXTERNAL") != "true" {
			log.Println("⚠️ Debug server forced to localhost")
			cfg.ListenAddr = "127.0.0.1:6060"
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	mux.Handle("/metrics", promhttp.Handler())

	go func() {
		log.Printf("📊 Debug server on %s (pprof, metrics)", cfg.ListenAddr)
		if err := http.ListenAndServe(cfg.ListenAddr, mux); err != nil {
			log.Printf("⚠️ Debug server error: %v", err)
		}
	}()

	return nil
}

// RecordTick records one tick duration.
func RecordTick(d time.Duration) {
	tickDuration.Observe(d.Seconds())
}

// UpdateSessionCount updates the session gauge.
func UpdateSessionCount(n int) {
	sessionCount.Set(float64(n))
}

// UpdateGuardianCount updates the guardian gauge.
func UpdateGuardianCount(n int) {
	guardianCount.Set(float64(n))
}

// RecordConnectionRejected increments the rejection counter.
// reason must be one of: "rate_limit", "handshake", "ws_total_limit", "ws_ip_limit".
func RecordConnectionRejected(reason string) {
	connectionRejected.WithLabelValues(reason).Inc()
}

// IncrementInboundMessages counts one processed inbound message.
func IncrementInboundMessages() {
	wsMessagesInbound.Inc()
}

// RecordBroadcastError counts one failed per-connection send during fan-out.
func RecordBroadcastError() {
	broadcastSendErrors.Inc()
}
