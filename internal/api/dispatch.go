package api

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"aura-server/internal/protocol"
	"aura-server/internal/store"
	"aura-server/internal/world"
)

const maxTextLength = 500

// dispatch routes one inbound frame to its handler. Unknown types are logged
// and dropped; a malformed payload never kills the connection.
func (h *Hub) dispatch(c *client, msg protocol.Message) {
	switch msg.Type {
	case protocol.TypePlayerUpdate:
		h.handlePlayerUpdate(c, msg)
	case protocol.TypeWhisper:
		h.handleWhisper(c, msg)
	case protocol.TypeSing:
		h.broadcastAction(c, protocol.TypeSing, protocol.SingEvent{PlayerID: c.playerID})
	case protocol.TypePulse:
		h.broadcastAction(c, protocol.TypePulse, protocol.PulseEvent{PlayerID: c.playerID})
	case protocol.TypeEmote:
		h.handleEmote(c, msg)
	case protocol.TypeEcho:
		h.handleEcho(c, msg)
	case protocol.TypeStarLit:
		h.handleStarLit(c, msg)
	case protocol.TypeEchoIgnite:
		h.handleEchoIgnite(c, msg)
	case protocol.TypeSignal:
		h.handleSignal(c, msg)
	case protocol.TypePing:
		if pong, err := protocol.New(protocol.TypePong, protocol.Pong{}); err == nil {
			h.send(c, pong)
		}
	default:
		log.Printf("⚠️ Unknown message type from %s: %q", c.playerID, msg.Type)
	}
}

// broadcastAction fans an action event out to the sender's realm, sender
// included, so every client applies the same authoritative effect.
func (h *Hub) broadcastAction(c *client, msgType string, event interface{}) {
	s, ok := h.engine.Sessions.Get(c.playerID)
	if !ok {
		return
	}
	msg, err := protocol.New(msgType, event)
	if err != nil {
		return
	}
	h.broadcastToRealm(s.Realm, msg, "")
}

func (h *Hub) handlePlayerUpdate(c *client, msg protocol.Message) {
	var upd protocol.PlayerUpdate
	if err := msg.DecodeData(&upd); err != nil {
		log.Printf("⚠️ Bad player_update from %s: %v", c.playerID, err)
		return
	}

	h.engine.Sessions.UpdateDisplay(c.playerID, world.DisplayUpdate{
		X:    upd.X,
		Y:    upd.Y,
		Name: upd.Name,
		Hue:  upd.Hue,
		XP:   upd.XP,
	})

	if !upd.RealmChange || upd.Realm == "" {
		return
	}

	oldRealm, err := h.engine.Sessions.ChangeRealm(c.playerID, upd.Realm)
	if err != nil || oldRealm == upd.Realm {
		return
	}
	log.Printf("🌀 Player %s moved realm: %s -> %s", c.playerID, oldRealm, upd.Realm)

	h.hydrateRealm(upd.Realm)

	if leave, err := protocol.New(protocol.TypePlayerLeave, protocol.PlayerEvent{PlayerID: c.playerID}); err == nil {
		h.broadcastToRealm(oldRealm, leave, c.playerID)
	}
	if joined, err := protocol.New(protocol.TypePlayerJoined, protocol.PlayerEvent{PlayerID: c.playerID}); err == nil {
		h.broadcastToRealm(upd.Realm, joined, c.playerID)
	}
	if state, err := protocol.New(protocol.TypeWorldState, h.engine.ComposeSnapshot(upd.Realm, c.playerID)); err == nil {
		h.send(c, state)
	}
}

// handleWhisper delivers to one target when addressed, otherwise to every
// session within whisper range of the sender.
func (h *Hub) handleWhisper(c *client, msg protocol.Message) {
	var w protocol.Whisper
	if err := msg.DecodeData(&w); err != nil {
		log.Printf("⚠️ Bad whisper from %s: %v", c.playerID, err)
		return
	}
	if w.Text == "" {
		return
	}
	w.Text = truncate(w.Text, maxTextLength)

	out, err := protocol.New(protocol.TypeWhisper, protocol.WhisperEvent{
		Text:     w.Text,
		TargetID: w.TargetID,
		PlayerID: c.playerID,
	})
	if err != nil {
		return
	}

	if w.TargetID != "" {
		h.sendToPlayer(w.TargetID, out)
		return
	}

	sender, ok := h.engine.Sessions.Get(c.playerID)
	if !ok {
		return
	}
	rangeSq := h.engine.Config().WhisperRange * h.engine.Config().WhisperRange
	for _, s := range h.engine.Sessions.SnapshotByRealm(sender.Realm) {
		if s.PlayerID == c.playerID {
			continue
		}
		dx, dy := s.X-sender.X, s.Y-sender.Y
		if dx*dx+dy*dy <= rangeSq {
			h.sendToPlayer(s.PlayerID, out)
		}
	}
}

func (h *Hub) handleEmote(c *client, msg protocol.Message) {
	var e protocol.Emote
	if err := msg.DecodeData(&e); err != nil {
		log.Printf("⚠️ Bad emote from %s: %v", c.playerID, err)
		return
	}
	if e.Emoji == "" {
		return
	}
	h.broadcastAction(c, protocol.TypeEmote, protocol.EmoteEvent{Emoji: e.Emoji, PlayerID: c.playerID})
}

func (h *Hub) handleEcho(c *client, msg protocol.Message) {
	var in protocol.Echo
	if err := msg.DecodeData(&in); err != nil {
		log.Printf("⚠️ Bad echo from %s: %v", c.playerID, err)
		return
	}
	if in.Text == "" {
		return
	}

	s, ok := h.engine.Sessions.Get(c.playerID)
	if !ok {
		return
	}

	author := in.Name
	if author == "" {
		author = s.Name
	}
	hue := in.Hue
	if hue == 0 {
		hue = s.Hue
	}

	echo := world.Echo{
		ID:        "echo-" + uuid.NewString()[:8],
		Realm:     s.Realm,
		X:         in.X,
		Y:         in.Y,
		Text:      truncate(in.Text, maxTextLength),
		Hue:       hue,
		Author:    author,
		CreatedAt: time.Now().UnixMilli(),
	}
	h.engine.Echoes.Add(echo)

	go h.persistEcho(echo, c.playerID)

	h.broadcastAction(c, protocol.TypeEcho, protocol.EchoEvent{
		Echo: protocol.EchoItem{
			ID:        echo.ID,
			X:         echo.X,
			Y:         echo.Y,
			Text:      echo.Text,
			Hue:       echo.Hue,
			Name:      echo.Author,
			Realm:     echo.Realm,
			Timestamp: echo.CreatedAt,
		},
		PlayerID: c.playerID,
	})
}

func (h *Hub) handleStarLit(c *client, msg protocol.Message) {
	var in protocol.StarLit
	if err := msg.DecodeData(&in); err != nil {
		log.Printf("⚠️ Bad star_lit from %s: %v", c.playerID, err)
		return
	}
	if in.StarID == "" {
		return
	}

	s, ok := h.engine.Sessions.Get(c.playerID)
	if !ok {
		return
	}
	if !h.engine.Stars.Light(s.Realm, in.StarID) {
		return // already lit, monotone
	}

	go h.persistStarLit(s.Realm, in.StarID, c.playerID)

	h.broadcastAction(c, protocol.TypeStarLit, protocol.StarLitEvent{
		StarID:   in.StarID,
		PlayerID: c.playerID,
	})
}

func (h *Hub) handleEchoIgnite(c *client, msg protocol.Message) {
	var in protocol.EchoIgnite
	if err := msg.DecodeData(&in); err != nil {
		log.Printf("⚠️ Bad echo_ignite from %s: %v", c.playerID, err)
		return
	}

	s, ok := h.engine.Sessions.Get(c.playerID)
	if !ok {
		return
	}
	count, ok := h.engine.Echoes.Ignite(s.Realm, in.EchoID)
	if !ok {
		return
	}

	if echo, found := h.engine.Echoes.Get(s.Realm, in.EchoID); found {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
			defer cancel()
			if err := h.store.AddContentItem(ctx, echo); err != nil {
				log.Printf("⚠️ Echo ignite persist failed: %v", err)
			}
		}()
	}

	h.broadcastAction(c, protocol.TypeEchoIgnite, protocol.EchoIgniteEvent{
		EchoID:   in.EchoID,
		Ignited:  count,
		PlayerID: c.playerID,
	})
}

// handleSignal relays an opaque payload to one target connection. The server
// never inspects the payload.
func (h *Hub) handleSignal(c *client, msg protocol.Message) {
	var in protocol.Signal
	if err := msg.DecodeData(&in); err != nil {
		log.Printf("⚠️ Bad signal from %s: %v", c.playerID, err)
		return
	}
	if in.TargetID == "" {
		return
	}

	out, err := protocol.New(protocol.TypeSignal, protocol.SignalEvent{
		From:    c.playerID,
		Payload: in.Payload,
	})
	if err != nil {
		return
	}
	h.sendToPlayer(in.TargetID, out)
}

func (h *Hub) persistEcho(echo world.Echo, playerID string) {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	if err := h.store.AddContentItem(ctx, echo); err != nil {
		log.Printf("⚠️ Echo persist failed: %v", err)
	}
	if err := h.store.IncrementStat(ctx, playerID, store.FieldEchoes, 1); err != nil {
		log.Printf("⚠️ Echo stat update failed for %s: %v", playerID, err)
	}
}

func (h *Hub) persistStarLit(realm, starID, playerID string) {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	if err := h.store.MarkLit(ctx, realm, starID); err != nil {
		log.Printf("⚠️ Star persist failed: %v", err)
	}
	if err := h.store.IncrementStat(ctx, playerID, store.FieldStars, 1); err != nil {
		log.Printf("⚠️ Star stat update failed for %s: %v", playerID, err)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
