package system

import (
	"time"

	coresys "github.com/mirthwood/server/internal/core/system"
	"github.com/mirthwood/server/internal/handler"
	"github.com/mirthwood/server/internal/world"
)

// ServerTick runs the slow once-per-second work: PvP window expiry and stat
// regeneration. Stamina regenerates unconditionally; health regeneration is
// suppressed while the session's PvP window is open.
type ServerTick struct {
	deps     *handler.Deps
	interval time.Duration
	quiet    time.Duration
	acc      time.Duration
}

func NewServerTick(deps *handler.Deps) *ServerTick {
	return &ServerTick{
		deps:     deps,
		interval: deps.Config.Network.ServerTickInterval(),
		quiet:    time.Duration(deps.Config.Gameplay.PvPQuietSeconds) * time.Second,
	}
}

func (s *ServerTick) Phase() coresys.Phase { return coresys.PhasePostUpdate }

func (s *ServerTick) Update(dt time.Duration) {
	s.acc += dt
	for s.acc >= s.interval {
		s.acc -= s.interval
		s.tick(time.Now())
	}
}

func (s *ServerTick) tick(now time.Time) {
	s.deps.World.AllPlayers(func(p *world.PlayerInfo) {
		if p.PvP && now.Sub(p.LastAttackedAt) > s.quiet {
			p.PvP = false
		}
		if p.Dead() {
			return
		}

		changed := false
		if p.Stats.Stamina < p.Stats.MaxStamina {
			p.Stats.Stamina += s.deps.Scripts.CalcStaminaRegen(p.Stats.MaxStamina)
			if p.Stats.Stamina > p.Stats.MaxStamina {
				p.Stats.Stamina = p.Stats.MaxStamina
			}
			changed = true
		}
		if !p.PvP && p.Stats.Health < p.Stats.MaxHealth {
			p.Stats.Health += s.deps.Scripts.CalcHealthRegen(p.Stats.MaxHealth)
			if p.Stats.Health > p.Stats.MaxHealth {
				p.Stats.Health = p.Stats.MaxHealth
			}
			changed = true
		}
		if changed {
			p.Dirty = true
			s.deps.SendStats(p)
		}
	})
}
