package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"aura-server/internal/config"
	"aura-server/internal/protocol"
	"aura-server/internal/store"
	"aura-server/internal/world"
)

func getJSON(t *testing.T, url string, into interface{}) *http.Response {
	t.Helper()

	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s failed: %v", url, err)
	}
	defer resp.Body.Close()
	if into != nil {
		if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
			t.Fatalf("Decode response failed: %v", err)
		}
	}
	return resp
}

// TestHealthEndpoint tests the liveness probe
func TestHealthEndpoint(t *testing.T) {
	_, _, ts := newTestServer(t, config.DefaultWorld())

	var body map[string]interface{}
	resp := getJSON(t, ts.URL+"/api/health", &body)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Status should be 200, got %d", resp.StatusCode)
	}
	if body["status"] != "ok" {
		t.Errorf("Status field should be ok, got %v", body["status"])
	}
}

// TestStatsEndpoint tests the per-realm stats surface
func TestStatsEndpoint(t *testing.T) {
	engine, _, ts := newTestServer(t, config.DefaultWorld())
	_ = engine.Sessions.Register("p1", "genesis", world.DisplayUpdate{})
	engine.Echoes.Add(world.Echo{ID: "e1", Realm: "genesis"})

	var body struct {
		Sessions int                       `json:"sessions"`
		Realms   map[string]map[string]int `json:"realms"`
	}
	resp := getJSON(t, ts.URL+"/api/stats", &body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Status should be 200, got %d", resp.StatusCode)
	}
	if body.Sessions != 1 {
		t.Errorf("Sessions should be 1, got %d", body.Sessions)
	}
	if body.Realms["genesis"]["echoes"] != 1 {
		t.Errorf("genesis should report 1 echo, got %v", body.Realms["genesis"])
	}
}

// TestCreateAndListEchoes tests the HTTP echo surface end to end
func TestCreateAndListEchoes(t *testing.T) {
	engine, _, ts := newTestServer(t, config.DefaultWorld())

	payload := []byte(`{"text":"from the api","x":10,"y":20,"name":"Nova"}`)
	resp, err := http.Post(ts.URL+"/api/echoes", "application/json", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	var created protocol.EchoItem
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("Decode created echo failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Status should be 201, got %d", resp.StatusCode)
	}
	if created.Text != "from the api" || created.Realm != "genesis" || created.ID == "" {
		t.Errorf("Created echo mismatch: %+v", created)
	}

	if engine.Echoes.Count("genesis") != 1 {
		t.Errorf("Echo should land on the live board, got %d", engine.Echoes.Count("genesis"))
	}

	var listed struct {
		Realm  string              `json:"realm"`
		Echoes []protocol.EchoItem `json:"echoes"`
	}
	getJSON(t, ts.URL+"/api/echoes", &listed)
	if len(listed.Echoes) != 1 || listed.Echoes[0].ID != created.ID {
		t.Errorf("Listing should return the created echo, got %+v", listed)
	}
}

// TestCreateEchoValidation tests request validation
func TestCreateEchoValidation(t *testing.T) {
	_, _, ts := newTestServer(t, config.DefaultWorld())

	resp, err := http.Post(ts.URL+"/api/echoes", "application/json", bytes.NewReader([]byte(`{"x":1}`)))
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Missing text should return 400, got %d", resp.StatusCode)
	}

	resp, err = http.Post(ts.URL+"/api/echoes", "application/json", bytes.NewReader([]byte(`garbage`)))
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Invalid JSON should return 400, got %d", resp.StatusCode)
	}
}

// TestStarsEndpoint tests the lit-marker listing
func TestStarsEndpoint(t *testing.T) {
	engine, _, ts := newTestServer(t, config.DefaultWorld())
	engine.Stars.Light("genesis", "star-1")
	engine.Stars.Light("nebula", "star-2")

	var body struct {
		Realm    string   `json:"realm"`
		LitStars []string `json:"litStars"`
	}
	getJSON(t, ts.URL+"/api/stars?realm=nebula", &body)
	if body.Realm != "nebula" || len(body.LitStars) != 1 || body.LitStars[0] != "star-2" {
		t.Errorf("Stars listing mismatch: %+v", body)
	}
}

// TestLeaderboardEndpoint tests ordering and field validation
func TestLeaderboardEndpoint(t *testing.T) {
	_, st, ts := newTestServer(t, config.DefaultWorld())

	ctx := context.Background()
	_ = st.UpsertPlayer(ctx, store.PlayerRecord{ID: "a", Name: "A", XP: 10})
	_ = st.UpsertPlayer(ctx, store.PlayerRecord{ID: "b", Name: "B", XP: 99})

	var body struct {
		Field   string               `json:"field"`
		Players []store.PlayerRecord `json:"players"`
	}
	getJSON(t, ts.URL+"/api/leaderboard", &body)
	if body.Field != "xp" {
		t.Errorf("Default field should be xp, got %s", body.Field)
	}
	if len(body.Players) != 2 || body.Players[0].ID != "b" {
		t.Errorf("Leaderboard ordering mismatch: %+v", body.Players)
	}

	resp := getJSON(t, ts.URL+"/api/leaderboard?field=name", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Unknown field should return 400, got %d", resp.StatusCode)
	}
}
