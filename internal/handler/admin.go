package handler

import (
	"strconv"
	"strings"

	"github.com/mirthwood/server/internal/net/packet"
	"github.com/mirthwood/server/internal/world"
	"go.uber.org/zap"
)

// handleNoclip toggles collision bypass for the session.
func (d *Deps) handleNoclip(c any, env packet.Envelope) {
	p := d.player(c)
	if p == nil {
		return
	}
	if !p.HasPermission("noclip") {
		d.Notify(p, "you cannot do that")
		return
	}
	p.Noclip = !p.Noclip
	if p.Noclip {
		d.Notify(p, "noclip on")
	} else {
		d.Notify(p, "noclip off")
	}
}

// handleStealth toggles invisibility. Entering stealth despawns the session
// for non-admin observers; leaving it spawns it back.
func (d *Deps) handleStealth(c any, env packet.Envelope) {
	p := d.player(c)
	if p == nil {
		return
	}
	if !p.HasPermission("stealth") {
		d.Notify(p, "you cannot do that")
		return
	}
	p.Stealth = !p.Stealth
	d.applyStealthVisibility(p)
}

// applyStealthVisibility despawns or respawns a session for the non-admin
// observers on its map after a stealth toggle.
func (d *Deps) applyStealthVisibility(p *world.PlayerInfo) {
	var env packet.Envelope
	if p.Stealth {
		env = packet.New(packet.SDisconnectPlayer, namedPayload{Name: p.Name})
		d.Notify(p, "stealth on")
	} else {
		env = packet.New(packet.SSpawnPlayer, snapshotOf(p))
		d.Notify(p, "stealth off")
	}
	d.World.PlayersOnMap(p.MapName, func(other *world.PlayerInfo) {
		if other.ConnID == p.ConnID || other.Admin {
			return
		}
		other.Conn.Send(env)
	})
}

// handleCommand runs one admin command line.
func (d *Deps) handleCommand(c any, env packet.Envelope) {
	p := d.player(c)
	if p == nil {
		return
	}
	if !p.HasPermission("command") {
		d.Notify(p, "you cannot do that")
		return
	}
	payload, err := packet.Payload[packet.CommandPayload](env)
	if err != nil {
		return
	}
	fields := strings.Fields(payload.Command)
	if len(fields) == 0 {
		return
	}
	d.Log.Info("管理指令",
		zap.String("player", p.Name),
		zap.String("command", payload.Command),
	)

	switch fields[0] {
	case "goto":
		// goto <map> [x y]
		if len(fields) < 2 {
			d.Notify(p, "usage: goto <map> [x y]")
			return
		}
		def := d.Maps.Get(fields[1])
		if def == nil {
			d.Notify(p, "unknown map "+fields[1])
			return
		}
		x, y := def.Meta.SpawnX, def.Meta.SpawnY
		if len(fields) >= 4 {
			x, _ = strconv.ParseFloat(fields[2], 64)
			y, _ = strconv.ParseFloat(fields[3], 64)
		}
		d.TransferToMap(p, fields[1], x, y)

	case "summon":
		// summon <player>
		if len(fields) < 2 {
			d.Notify(p, "usage: summon <player>")
			return
		}
		target := d.World.GetByName(fields[1])
		if target == nil {
			d.Notify(p, "player not found")
			return
		}
		d.TransferToMap(target, p.MapName, p.X, p.Y)

	case "kick":
		if len(fields) < 2 {
			d.Notify(p, "usage: kick <player>")
			return
		}
		target := d.World.GetByName(fields[1])
		if target == nil {
			d.Notify(p, "player not found")
			return
		}
		d.Notify(target, "you were disconnected by an operator")
		d.DropSession(target.ConnID, true)

	case "revive":
		if len(fields) < 2 {
			d.Notify(p, "usage: revive <player>")
			return
		}
		target := d.World.GetByName(fields[1])
		if target == nil || !target.Dead() {
			return
		}
		d.respawn(target)

	case "reloadmap":
		if len(fields) < 2 {
			d.Notify(p, "usage: reloadmap <map>")
			return
		}
		if err := d.Maps.Reload(fields[1], d.Assets); err != nil {
			d.Notify(p, err.Error())
			return
		}
		d.Notify(p, "map layers reloaded")

	case "notice":
		if len(fields) < 2 {
			return
		}
		text := strings.TrimSpace(strings.TrimPrefix(payload.Command, "notice"))
		d.Conns.Publish(packet.TopicBroadcast, packet.New(packet.SNotify, noticePayload{Text: text}))

	default:
		d.Notify(p, "unknown command "+fields[0])
	}
}
