package handler

import (
	"strings"
	"time"

	"github.com/mirthwood/server/internal/net/packet"
	"github.com/mirthwood/server/internal/translate"
	"github.com/mirthwood/server/internal/world"
)

// handleChat broadcasts a chat line to the sender's map. Each recipient gets
// the line in their own language when a translator is configured; a failed
// or slow translation falls back to the original text.
func (d *Deps) handleChat(c any, env packet.Envelope) {
	p := d.player(c)
	if p == nil {
		return
	}
	payload, err := packet.Payload[packet.ChatPayload](env)
	if err != nil {
		return
	}
	text := strings.TrimSpace(payload.Text)
	if text == "" {
		return
	}
	if max := d.Config.Gameplay.MaxChatLength; len(text) > max {
		text = text[:max]
	}

	timeout := time.Duration(d.Config.Translation.TimeoutMs) * time.Millisecond

	// Translate once per distinct recipient language, not per recipient.
	translated := map[string]string{p.Language: text}
	d.World.PlayersOnMap(p.MapName, func(other *world.PlayerInfo) {
		if !visibleTo(p, other) {
			return
		}
		line, ok := translated[other.Language]
		if !ok {
			line = translate.OrFallback(d.Translator, text, other.Language, timeout, d.Log)
			translated[other.Language] = line
		}
		other.Conn.Send(packet.New(packet.SChat, chatPayload{From: p.Name, Text: line}))
	})
}

func (d *Deps) handleTyping(c any, env packet.Envelope) {
	p := d.player(c)
	if p == nil {
		return
	}
	d.BroadcastToMap(p.MapName, p.ConnID, p.Stealth,
		packet.New(packet.STyping, namedPayload{Name: p.Name}))
}

func (d *Deps) handleStopTyping(c any, env packet.Envelope) {
	p := d.player(c)
	if p == nil {
		return
	}
	d.BroadcastToMap(p.MapName, p.ConnID, p.Stealth,
		packet.New(packet.SStopTyping, namedPayload{Name: p.Name}))
}
