package handler

import (
	"encoding/json"
	"math"
	"time"

	"github.com/mirthwood/server/internal/net/packet"
	"github.com/mirthwood/server/internal/translate"
	"github.com/mirthwood/server/internal/world"
)

type pongPayload struct {
	Time int64 `json:"time"`
}

// handlePing echoes with a server timestamp. Available before auth so
// clients can measure latency on the login screen.
func (d *Deps) handlePing(c any, env packet.Envelope) {
	d.conn(c).Send(packet.New(packet.SPing, pongPayload{Time: time.Now().UnixMilli()}))
}

// handleClientConfig stores the client's preferred language and echoes the
// raw config blob back as the acknowledgement.
func (d *Deps) handleClientConfig(c any, env packet.Envelope) {
	conn := d.conn(c)
	p := d.player(c)
	if env.Language != "" {
		conn.Language = translate.NormalizeLang(env.Language)
		if p != nil {
			p.Language = conn.Language
			p.Dirty = true
		}
	}
	conn.Send(packet.New(packet.SClientConfig, json.RawMessage(env.Data)))
}

// handleSelectPlayer returns the snapshot of a named session, honoring
// stealth visibility.
func (d *Deps) handleSelectPlayer(c any, env packet.Envelope) {
	p := d.player(c)
	if p == nil {
		return
	}
	payload, err := packet.Payload[packet.NamePayload](env)
	if err != nil {
		return
	}
	target := d.World.GetByName(payload.Name)
	if target == nil || !visibleTo(target, p) {
		p.Conn.Send(packet.New(packet.SSelectPlayer, nil))
		return
	}
	p.Conn.Send(packet.New(packet.SSelectPlayer, snapshotOf(target)))
}

// handleTargetClosest selects the nearest visible session on the same map.
func (d *Deps) handleTargetClosest(c any, env packet.Envelope) {
	p := d.player(c)
	if p == nil {
		return
	}
	var closest *world.PlayerInfo
	best := math.MaxFloat64
	d.World.PlayersOnMap(p.MapName, func(other *world.PlayerInfo) {
		if other.ConnID == p.ConnID || !visibleTo(other, p) || other.Dead() {
			return
		}
		dist := math.Hypot(other.X-p.X, other.Y-p.Y)
		if dist < best {
			best = dist
			closest = other
		}
	})
	if closest == nil {
		p.Conn.Send(packet.New(packet.SSelectPlayer, nil))
		return
	}
	p.Conn.Send(packet.New(packet.SSelectPlayer, snapshotOf(closest)))
}

type inspectPayload struct {
	playerSnapshot
	Friends int `json:"friends"`
}

// handleInspectPlayer returns a public profile for a named session.
func (d *Deps) handleInspectPlayer(c any, env packet.Envelope) {
	p := d.player(c)
	if p == nil {
		return
	}
	payload, err := packet.Payload[packet.NamePayload](env)
	if err != nil {
		return
	}
	target := d.World.GetByName(payload.Name)
	if target == nil || !visibleTo(target, p) {
		return
	}
	p.Conn.Send(packet.New(packet.SInspectPlayer, inspectPayload{
		playerSnapshot: snapshotOf(target),
		Friends:        len(target.Friends),
	}))
}

// handleLogout saves and tears the session down cleanly.
func (d *Deps) handleLogout(c any, env packet.Envelope) {
	conn := d.conn(c)
	d.DropSession(conn.ID, true)
}

// handleDisconnect is the client announcing it is about to go away. Same
// teardown as logout; the save still happens.
func (d *Deps) handleDisconnect(c any, env packet.Envelope) {
	conn := d.conn(c)
	d.DropSession(conn.ID, true)
}

// handleBenchmark floods the requesting connection with dummy packets so
// operators can exercise the backpressure gate against a real client.
func (d *Deps) handleBenchmark(c any, env packet.Envelope) {
	p := d.player(c)
	if p == nil || !p.HasPermission("benchmark") {
		return
	}
	payload, err := packet.Payload[packet.BenchmarkPayload](env)
	if err != nil {
		return
	}
	count := payload.Count
	if count < 1 {
		count = 1
	}
	if count > 10000 {
		count = 10000
	}
	for i := 0; i < count; i++ {
		p.Conn.Send(packet.New(packet.SBenchmark, pongPayload{Time: time.Now().UnixMilli()}))
		if p.Conn.IsClosed() {
			return
		}
	}
}
