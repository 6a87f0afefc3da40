package handler

import (
	"github.com/mirthwood/server/internal/net/packet"
	"github.com/mirthwood/server/internal/world"
)

// handleMoveXY arms or re-arms the session's mover. Repeated MOVEXY packets
// supersede each other; ABORT disarms. The movement system advances armed
// movers on its own frame cadence, so packet arrival rate never changes
// movement speed.
func (d *Deps) handleMoveXY(c any, env packet.Envelope) {
	p := d.player(c)
	if p == nil || p.Dead() {
		return
	}
	payload, err := packet.Payload[packet.MovePayload](env)
	if err != nil {
		return
	}
	if payload.Dir == packet.DirAbort {
		d.Movement.Abort(p)
		return
	}
	heading := packet.HeadingOf(payload.Dir)
	if heading < 0 {
		return
	}
	p.Facing = heading
	d.Movement.Start(p, heading)
}

// handleTeleportXY moves a session directly to a coordinate on its current
// map. Gated by the teleport permission; the destination must be passable
// unless the session has noclip.
func (d *Deps) handleTeleportXY(c any, env packet.Envelope) {
	p := d.player(c)
	if p == nil {
		return
	}
	if !p.HasPermission("teleport") {
		d.Notify(p, "you cannot do that")
		return
	}
	payload, err := packet.Payload[packet.TeleportPayload](env)
	if err != nil {
		return
	}
	def := d.Maps.Get(p.MapName)
	if def == nil {
		return
	}
	if !p.Noclip && def.Blocked(payload.X, payload.Y, world.PlayerWidth, world.PlayerHeight) {
		d.Notify(p, "destination is blocked")
		return
	}

	d.Movement.Abort(p)
	p.X = payload.X
	p.Y = payload.Y
	p.Dirty = true

	env = packet.New(packet.STeleportXY, movePayload{
		Name: p.Name, X: p.X, Y: p.Y, Facing: p.Facing,
	})
	p.Conn.Send(env)
	d.BroadcastToMap(p.MapName, p.ConnID, p.Stealth, env)
}

// TransferToMap moves a session across maps: map peers on both sides are
// told, and the client receives the full load sequence for the new map.
// A destination on the current map skips the reload and only repositions.
// Used by warp triggers and admin commands.
func (d *Deps) TransferToMap(p *world.PlayerInfo, mapName string, x, y float64) {
	def := d.Maps.Get(mapName)
	if def == nil {
		return
	}
	d.Movement.Abort(p)

	if mapName == p.MapName {
		p.X = x
		p.Y = y
		p.Dirty = true
		env := packet.New(packet.STeleportXY, movePayload{
			Name: p.Name, X: p.X, Y: p.Y, Facing: p.Facing,
		})
		p.Conn.Send(env)
		d.BroadcastToMap(p.MapName, p.ConnID, p.Stealth, env)
		return
	}

	d.BroadcastToMap(p.MapName, p.ConnID, p.Stealth,
		packet.New(packet.SDisconnectPlayer, namedPayload{Name: p.Name}))

	d.World.MoveToMap(p, mapName, x, y)
	p.Dirty = true

	p.Conn.Send(packet.New(packet.SLoadMap, loadMapPayload{
		Map: mapName, X: x, Y: y,
	}))
	d.sendMusic(p, def.Meta.Music)

	d.BroadcastToMap(mapName, p.ConnID, p.Stealth,
		packet.New(packet.SSpawnPlayer, snapshotOf(p)))

	others := make([]playerSnapshot, 0, 8)
	d.World.PlayersOnMap(mapName, func(other *world.PlayerInfo) {
		if other.ConnID == p.ConnID || !visibleTo(other, p) {
			return
		}
		others = append(others, snapshotOf(other))
	})
	p.Conn.Send(packet.New(packet.SLoadPlayers, others))
}
