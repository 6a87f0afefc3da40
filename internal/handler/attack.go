package handler

import (
	"math"
	"time"

	"github.com/mirthwood/server/internal/net/packet"
	"github.com/mirthwood/server/internal/world"
	"go.uber.org/zap"
)

type animationPayload struct {
	Name   string `json:"name"`
	Anim   string `json:"anim"`
	Target string `json:"target,omitempty"`
}

type xpPayload struct {
	XP    int `json:"xp"`
	MaxXP int `json:"max_xp"`
	Level int `json:"level"`
}

// handleAttack resolves one melee swing against a named target.
func (d *Deps) handleAttack(c any, env packet.Envelope) {
	p := d.player(c)
	if p == nil || p.Dead() {
		return
	}
	now := time.Now()
	if now.Before(p.AttackReadyAt) {
		return
	}
	payload, err := packet.Payload[packet.NamePayload](env)
	if err != nil {
		return
	}
	target := d.World.GetByName(payload.Name)
	if reason := d.attackDenied(p, target, now); reason != "" {
		if reason != "silent" {
			d.Notify(p, reason)
		}
		return
	}

	cost := d.Scripts.AttackStaminaCost()
	if p.Stats.Stamina < cost {
		d.Notify(p, "too exhausted to attack")
		return
	}
	p.Stats.Stamina -= cost
	p.AttackReadyAt = now.Add(time.Duration(d.Config.Gameplay.AttackCooldownMs) * time.Millisecond)

	dmg := d.Scripts.CalcAttackDamage(p.Stats.Level)
	target.Stats.Health -= dmg
	if target.Stats.Health < 0 {
		target.Stats.Health = 0
	}

	// Both sides enter the PvP window. The quiet-period clear and the regen
	// gate both key off LastAttackedAt.
	p.PvP = true
	target.PvP = true
	p.LastAttackedAt = now
	target.LastAttackedAt = now
	p.Dirty = true
	target.Dirty = true

	d.BroadcastToMap(p.MapName, "", p.Stealth,
		packet.New(packet.SAnimation, animationPayload{Name: p.Name, Anim: "attack", Target: target.Name}))
	d.BroadcastToMap(p.MapName, "", p.Stealth,
		packet.New(packet.SAudio, audioPayload{Sound: "attack", Source: p.Name}))
	d.SendStats(p)
	d.SendStats(target)

	if target.Dead() {
		d.handleKill(p, target)
	}
}

// attackDenied returns a notice string when the swing is invalid, "silent"
// when it should be ignored without feedback, or "" when the attack may
// proceed. The PvP zone check is symmetric: both footprints must sit on
// PvP-enabled ground.
func (d *Deps) attackDenied(p, target *world.PlayerInfo, now time.Time) string {
	if target == nil {
		return "silent"
	}
	if target.ConnID == p.ConnID {
		return "silent"
	}
	if target.MapName != p.MapName {
		return "silent"
	}
	if target.Dead() {
		return "silent"
	}
	if p.Stealth || target.Stealth {
		return "silent"
	}
	dx := target.X - p.X
	dy := target.Y - p.Y
	if math.Hypot(dx, dy) > d.Config.Gameplay.AttackRange {
		return "out of range"
	}
	if !facingTarget(p.Facing, dx, dy) {
		return "silent"
	}
	def := d.Maps.Get(p.MapName)
	if def == nil {
		return "silent"
	}
	if !def.PvPAllowed(p.X, p.Y, world.PlayerWidth, world.PlayerHeight) ||
		!def.PvPAllowed(target.X, target.Y, world.PlayerWidth, world.PlayerHeight) {
		return "this is a safe zone"
	}
	return ""
}

// facingTarget reports whether the target sits inside the attacker's facing
// cone. Eight headings partition the circle into 45° cones, so the angle to
// the target must fall within 22.5° of the facing axis. Heading 0 is north
// and y grows downward.
func facingTarget(facing int, dx, dy float64) bool {
	if facing < 0 || facing > 7 {
		return false
	}
	want := -math.Pi/2 + float64(facing)*math.Pi/4
	diff := math.Remainder(math.Atan2(dy, dx)-want, 2*math.Pi)
	return math.Abs(diff) <= math.Pi/8+1e-9
}

// handleKill awards XP to the killer and respawns the victim at the map
// spawn with half health.
func (d *Deps) handleKill(killer, victim *world.PlayerInfo) {
	d.Log.Info("玩家擊殺",
		zap.String("killer", killer.Name),
		zap.String("victim", victim.Name),
		zap.String("map", killer.MapName),
	)
	d.BroadcastToMap(victim.MapName, "", false,
		packet.New(packet.SAnimation, animationPayload{Name: victim.Name, Anim: "death"}))
	d.BroadcastToMap(victim.MapName, "", false,
		packet.New(packet.SAudio, audioPayload{Sound: "death", Source: victim.Name}))

	d.grantXP(killer, d.Config.Gameplay.XPPerKill)
	d.respawn(victim)
}

// grantXP adds experience and applies level-ups. MaxXP grows by half each
// level.
func (d *Deps) grantXP(p *world.PlayerInfo, amount int) {
	p.Stats.XP += amount
	for p.Stats.XP >= p.Stats.MaxXP {
		p.Stats.XP -= p.Stats.MaxXP
		p.Stats.Level++
		p.Stats.MaxXP += p.Stats.MaxXP / 2
		p.Stats.MaxHealth += 10
		p.Stats.MaxStamina += 5
		d.Notify(p, "you feel stronger")
	}
	p.Dirty = true
	p.Conn.Send(packet.New(packet.SUpdateXP, xpPayload{
		XP: p.Stats.XP, MaxXP: p.Stats.MaxXP, Level: p.Stats.Level,
	}))
	d.SendStats(p)
}

// respawn returns a dead session to its map spawn point with half health and
// clears its PvP window.
func (d *Deps) respawn(p *world.PlayerInfo) {
	def := d.Maps.Get(p.MapName)
	if def == nil {
		return
	}
	p.Stats.Health = p.Stats.MaxHealth / 2
	p.PvP = false
	p.Dirty = true
	d.Movement.Abort(p)
	d.World.MoveToMap(p, p.MapName, def.Meta.SpawnX, def.Meta.SpawnY)

	p.Conn.Send(packet.New(packet.SRevive, snapshotOf(p)))
	env := packet.New(packet.STeleportXY, movePayload{
		Name: p.Name, X: p.X, Y: p.Y, Facing: p.Facing,
	})
	d.BroadcastToMap(p.MapName, p.ConnID, p.Stealth, env)
	d.SendStats(p)
}
