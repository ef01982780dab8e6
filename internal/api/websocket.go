package api

import (
	"context"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"aura-server/internal/config"
	"aura-server/internal/protocol"
	"aura-server/internal/store"
	"aura-server/internal/world"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 8192
	storeTimeout   = 3 * time.Second

	// Application-level close codes, matched by the reference clients.
	closePlayerIDRequired = 4000
)

// client is one live WebSocket connection. writeMu serializes writes; gorilla
// connections do not support concurrent writers.
type client struct {
	playerID string
	conn     *websocket.Conn
	ip       string
	limiter  *rate.Limiter

	writeMu sync.Mutex

	// replaced is set under the hub mutex when a newer connection for the
	// same player takes over, so teardown leaves the registry alone.
	replaced bool

	// closeOnce makes teardown idempotent; it can be reached from the read
	// loop, a failed send, eviction, takeover, and shutdown.
	closeOnce sync.Once
}

// Hub owns the set of live connections and bridges them to the world engine:
// inbound frames become engine mutations, engine ticks become world_state
// fan-outs. It implements world.Broadcaster.
type Hub struct {
	engine *world.Engine
	store  store.Store
	cfg    config.ServerConfig

	mu      sync.RWMutex
	clients map[string]*client

	wsLimiter *WebSocketRateLimiter
	upgrader  websocket.Upgrader

	hydrating sync.Map // realm -> *sync.Once

	shutdownOnce sync.Once
}

// NewHub creates a hub bound to the engine and store.
func NewHub(engine *world.Engine, st store.Store, cfg config.ServerConfig) *Hub {
	return &Hub{
		engine:    engine,
		store:     st,
		cfg:       cfg,
		clients:   make(map[string]*client),
		wsLimiter: NewWebSocketRateLimiter(cfg.MaxConnsPerIP),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Browser origin policy is enforced by the CORS layer on the
			// HTTP routes; the socket accepts any origin.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// ClientCount returns the number of live connections.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HandleWS is the HTTP handler for the WebSocket endpoint.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	ip := GetClientIP(r)

	if h.ClientCount() >= h.cfg.MaxConnections {
		RecordConnectionRejected("ws_total_limit")
		http.Error(w, "Server at capacity", http.StatusServiceUnavailable)
		return
	}
	if !h.wsLimiter.Allow(ip) {
		RecordConnectionRejected("ws_ip_limit")
		http.Error(w, "Too many connections from this IP", http.StatusTooManyRequests)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.wsLimiter.Release(ip)
		RecordConnectionRejected("handshake")
		log.Printf("⚠️ WebSocket upgrade failed: %v", err)
		return
	}

	playerID := r.URL.Query().Get("playerId")
	if playerID == "" {
		// The handshake succeeded, so the close code reaches the client.
		deadline := time.Now().Add(writeWait)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(closePlayerIDRequired, "player ID required"), deadline)
		_ = conn.Close()
		h.wsLimiter.Release(ip)
		RecordConnectionRejected("handshake")
		return
	}

	realm := r.URL.Query().Get("realm")
	if realm == "" {
		realm = h.engine.Config().DefaultRealm
	}
	name := r.URL.Query().Get("name")

	h.hydrateRealm(realm)
	h.ensureProfile(playerID, name)

	display := world.DisplayUpdate{}
	if name != "" {
		display.Name = &name
	}
	if err := h.engine.Sessions.Register(playerID, realm, display); err != nil {
		if errors.Is(err, world.ErrDuplicateSession) {
			// A reconnect for the same identity takes over; the old
			// connection is closed without touching the new session.
			h.replaceClient(playerID)
			h.engine.Sessions.Remove(playerID)
			_ = h.engine.Sessions.Register(playerID, realm, display)
		} else {
			log.Printf("⚠️ Session register failed for %s: %v", playerID, err)
			_ = conn.Close()
			h.wsLimiter.Release(ip)
			return
		}
	}

	c := &client{
		playerID: playerID,
		conn:     conn,
		ip:       ip,
		limiter:  rate.NewLimiter(rate.Limit(h.cfg.InboundPerSecond), h.cfg.InboundBurst),
	}

	h.mu.Lock()
	h.clients[playerID] = c
	h.mu.Unlock()

	log.Printf("🔌 Player connected: %s (realm %s, ip %s)", playerID, realm, ip)

	// Initial point-to-point snapshot, then announce to the realm.
	if msg, err := protocol.New(protocol.TypeWorldState, h.engine.ComposeSnapshot(realm, playerID)); err == nil {
		h.send(c, msg)
	}
	if msg, err := protocol.New(protocol.TypePlayerJoined, protocol.PlayerEvent{PlayerID: playerID}); err == nil {
		h.broadcastToRealm(realm, msg, playerID)
	}

	go h.readLoop(c)
}

func (h *Hub) readLoop(c *client) {
	defer h.teardown(c)

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetPongHandler(func(string) error {
		h.engine.Sessions.Touch(c.playerID)
		return nil
	})
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("⚠️ Read error for %s: %v", c.playerID, err)
			}
			return
		}
		if !c.limiter.Allow() {
			continue
		}

		msg, err := protocol.Parse(raw)
		if err != nil {
			log.Printf("⚠️ Malformed frame from %s: %v", c.playerID, err)
			continue
		}

		IncrementInboundMessages()
		h.engine.Sessions.Touch(c.playerID)
		h.dispatch(c, msg)
	}
}

// teardown closes the connection, releases its per-IP slot, and, unless the
// client was replaced by a newer connection, removes the session and
// announces the departure. Idempotent.
func (h *Hub) teardown(c *client) {
	c.closeOnce.Do(func() {
		_ = c.conn.Close()

		h.mu.Lock()
		if h.clients[c.playerID] == c {
			delete(h.clients, c.playerID)
		}
		replaced := c.replaced
		h.mu.Unlock()

		h.wsLimiter.Release(c.ip)

		if replaced {
			return
		}

		s, ok := h.engine.Sessions.Get(c.playerID)
		h.engine.Sessions.Remove(c.playerID)
		if ok {
			log.Printf("🔌 Player disconnected: %s (realm %s)", c.playerID, s.Realm)
			h.persistLastSeen(s)
			if msg, err := protocol.New(protocol.TypePlayerLeave, protocol.PlayerEvent{PlayerID: c.playerID}); err == nil {
				h.broadcastToRealm(s.Realm, msg, c.playerID)
			}
		}
	})
}

// closeWith sends a close frame and tears the client down, leaving the
// registry alone. Used by takeover, eviction, and shutdown, which all manage
// the session themselves.
func (h *Hub) closeWith(c *client, code int, reason string) {
	h.mu.Lock()
	c.replaced = true
	h.mu.Unlock()

	deadline := time.Now().Add(writeWait)
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason), deadline)
	h.teardown(c)
}

// replaceClient closes the current connection for playerID so a reconnect
// can take over the identity.
func (h *Hub) replaceClient(playerID string) {
	h.mu.RLock()
	old, ok := h.clients[playerID]
	h.mu.RUnlock()

	if ok {
		log.Printf("🔁 Replacing connection for %s", playerID)
		h.closeWith(old, websocket.CloseNormalClosure, "replaced by newer connection")
	}
}

// EvictSession closes the connection of a session removed by the liveness
// sweep and announces the departure. The registry entry is already gone.
func (h *Hub) EvictSession(s world.Session) {
	h.mu.RLock()
	c, ok := h.clients[s.PlayerID]
	h.mu.RUnlock()

	if ok {
		h.closeWith(c, websocket.CloseGoingAway, "session timed out")
	}

	h.persistLastSeen(s)
	if msg, err := protocol.New(protocol.TypePlayerLeave, protocol.PlayerEvent{PlayerID: s.PlayerID}); err == nil {
		h.broadcastToRealm(s.Realm, msg, s.PlayerID)
	}
}

// Shutdown closes every connection with a going-away close frame. Safe to
// call more than once.
func (h *Hub) Shutdown() {
	h.shutdownOnce.Do(func() {
		h.mu.RLock()
		all := make([]*client, 0, len(h.clients))
		for _, c := range h.clients {
			all = append(all, c)
		}
		h.mu.RUnlock()

		for _, c := range all {
			h.closeWith(c, websocket.CloseGoingAway, "server shutting down")
		}
		log.Printf("🔌 Closed %d connections on shutdown", len(all))
	})
}

// BroadcastWorldState implements world.Broadcaster. The snapshot is encoded
// once and fanned out to every connection in the realm.
func (h *Hub) BroadcastWorldState(realm string, state protocol.WorldState) {
	msg, err := protocol.New(protocol.TypeWorldState, state)
	if err != nil {
		log.Printf("⚠️ Snapshot encode failed: %v", err)
		return
	}
	h.broadcastToRealm(realm, msg, "")
}

// broadcastToRealm sends one message to every connection whose session is in
// the realm, minus excludeID. Targets are gathered under the read lock, then
// writes happen with no hub lock held.
func (h *Hub) broadcastToRealm(realm string, msg protocol.Message, excludeID string) {
	sessions := h.engine.Sessions.SnapshotByRealm(realm)

	h.mu.RLock()
	targets := make([]*client, 0, len(sessions))
	for _, s := range sessions {
		if s.PlayerID == excludeID {
			continue
		}
		if c, ok := h.clients[s.PlayerID]; ok {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		h.send(c, msg)
	}
}

// sendToPlayer delivers one message to a single connection. Returns false if
// the player has no live connection.
func (h *Hub) sendToPlayer(playerID string, msg protocol.Message) bool {
	h.mu.RLock()
	c, ok := h.clients[playerID]
	h.mu.RUnlock()
	if !ok {
		return false
	}
	h.send(c, msg)
	return true
}

// send writes one frame. A failed write tears the connection down from a
// separate goroutine so broadcast fan-out never blocks on a dead peer.
func (h *Hub) send(c *client, msg protocol.Message) {
	raw, err := msg.Encode()
	if err != nil {
		log.Printf("⚠️ Message encode failed: %v", err)
		return
	}

	c.writeMu.Lock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	err = c.conn.WriteMessage(websocket.TextMessage, raw)
	c.writeMu.Unlock()

	if err != nil {
		RecordBroadcastError()
		go h.teardown(c)
	}
}

// hydrateRealm seeds the realm's echoes and lit markers from the store, once
// per realm per process.
func (h *Hub) hydrateRealm(realm string) {
	onceVal, _ := h.hydrating.LoadOrStore(realm, &sync.Once{})
	onceVal.(*sync.Once).Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()

		echoes, err := h.store.ListContentByRealm(ctx, realm)
		if err != nil {
			log.Printf("⚠️ Echo hydration failed for realm %s: %v", realm, err)
		} else if len(echoes) > 0 {
			h.engine.Echoes.Seed(realm, echoes)
		}

		stars, err := h.store.ListLitMarkers(ctx, realm)
		if err != nil {
			log.Printf("⚠️ Star hydration failed for realm %s: %v", realm, err)
		} else if len(stars) > 0 {
			h.engine.Stars.Seed(realm, stars)
		}
	})
}

// ensureProfile creates the durable player record on first contact. Store
// failures degrade to a warning; the realtime session proceeds regardless.
func (h *Hub) ensureProfile(playerID, name string) {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	_, err := h.store.GetPlayer(ctx, playerID)
	if err == nil {
		return
	}
	if !errors.Is(err, store.ErrNotFound) {
		log.Printf("⚠️ Profile lookup failed for %s: %v", playerID, err)
		return
	}

	if name == "" {
		name = "Wanderer"
	}
	rec := store.PlayerRecord{ID: playerID, Name: name, Hue: 200}
	if err := h.store.UpsertPlayer(ctx, rec); err != nil {
		log.Printf("⚠️ Profile create failed for %s: %v", playerID, err)
	}
}

// persistLastSeen writes the session's final display state back to the
// durable profile on disconnect.
func (h *Hub) persistLastSeen(s world.Session) {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	rec, err := h.store.GetPlayer(ctx, s.PlayerID)
	if err != nil {
		return
	}
	rec.Name = s.Name
	rec.Hue = s.Hue
	rec.XP = s.XP
	if err := h.store.UpsertPlayer(ctx, rec); err != nil {
		log.Printf("⚠️ Profile update failed for %s: %v", s.PlayerID, err)
	}
}
