package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"aura-server/internal/protocol"
	"aura-server/internal/store"
	"aura-server/internal/world"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("⚠️ Response encode failed: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"uptime":    int64(time.Since(s.startedAt).Seconds()),
		"timestamp": time.Now().UnixMilli(),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	realms := s.engine.Sessions.Realms()
	perRealm := make(map[string]interface{}, len(realms))
	for _, realm := range realms {
		perRealm[realm] = map[string]int{
			"sessions":  s.engine.Sessions.CountByRealm(realm),
			"guardians": s.engine.Guardians.CountByRealm(realm),
			"echoes":    s.engine.Echoes.Count(realm),
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"sessions":    s.engine.Sessions.Count(),
		"guardians":   s.engine.Guardians.Count(),
		"connections": s.hub.ClientCount(),
		"ticks":       s.engine.TickCount(),
		"realms":      perRealm,
		"rateLimiter": s.rateLimiter.GetStats(),
	})
}

func (s *Server) handleListEchoes(w http.ResponseWriter, r *http.Request) {
	realm := r.URL.Query().Get("realm")
	if realm == "" {
		realm = s.engine.Config().DefaultRealm
	}

	echoes, err := s.store.ListContentByRealm(r.Context(), realm)
	if err != nil {
		log.Printf("⚠️ Echo list failed for realm %s: %v", realm, err)
		writeError(w, http.StatusInternalServerError, "failed to list echoes")
		return
	}

	limit := queryInt(r, "limit", 50)
	if len(echoes) > limit {
		echoes = echoes[len(echoes)-limit:]
	}

	items := make([]protocol.EchoItem, 0, len(echoes))
	for _, e := range echoes {
		items = append(items, protocol.EchoItem{
			ID:        e.ID,
			X:         e.X,
			Y:         e.Y,
			Text:      e.Text,
			Hue:       e.Hue,
			Name:      e.Author,
			Realm:     e.Realm,
			Ignited:   e.Ignited,
			Timestamp: e.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"realm": realm, "echoes": items})
}

type createEchoRequest struct {
	Realm string  `json:"realm"`
	Text  string  `json:"text"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Hue   float64 `json:"hue"`
	Name  string  `json:"name"`
}

// handleCreateEcho plants an echo through the HTTP surface. It lands on the
// board and the store and is announced to the realm like a socket-born echo.
func (s *Server) handleCreateEcho(w http.ResponseWriter, r *http.Request) {
	var req createEchoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}
	if req.Realm == "" {
		req.Realm = s.engine.Config().DefaultRealm
	}
	if req.Name == "" {
		req.Name = "Wanderer"
	}

	echo := world.Echo{
		ID:        "echo-" + uuid.NewString()[:8],
		Realm:     req.Realm,
		X:         req.X,
		Y:         req.Y,
		Text:      truncate(req.Text, maxTextLength),
		Hue:       req.Hue,
		Author:    req.Name,
		CreatedAt: time.Now().UnixMilli(),
	}
	s.engine.Echoes.Add(echo)

	if err := s.store.AddContentItem(r.Context(), echo); err != nil {
		log.Printf("⚠️ Echo persist failed: %v", err)
	}

	item := protocol.EchoItem{
		ID:        echo.ID,
		X:         echo.X,
		Y:         echo.Y,
		Text:      echo.Text,
		Hue:       echo.Hue,
		Name:      echo.Author,
		Realm:     echo.Realm,
		Timestamp: echo.CreatedAt,
	}
	if msg, err := protocol.New(protocol.TypeEcho, protocol.EchoEvent{Echo: item}); err == nil {
		s.hub.broadcastToRealm(echo.Realm, msg, "")
	}

	writeJSON(w, http.StatusCreated, item)
}

func (s *Server) handleListStars(w http.ResponseWriter, r *http.Request) {
	realm := r.URL.Query().Get("realm")
	if realm == "" {
		realm = s.engine.Config().DefaultRealm
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"realm":    realm,
		"litStars": s.engine.Stars.List(realm),
	})
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	field := r.URL.Query().Get("field")
	if field == "" {
		field = store.FieldXP
	}
	limit := queryInt(r, "limit", 10)

	players, err := s.store.ListTopByField(r.Context(), field, limit)
	if err != nil {
		if errors.Is(err, store.ErrBadField) {
			writeError(w, http.StatusBadRequest, "unknown field: "+field)
			return
		}
		log.Printf("⚠️ Leaderboard query failed: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list players")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"field": field, "players": players})
}

func queryInt(r *http.Request, key string, defaultVal int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return defaultVal
}
