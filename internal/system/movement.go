package system

import (
	"time"

	coresys "github.com/mirthwood/server/internal/core/system"
	"github.com/mirthwood/server/internal/handler"
	"github.com/mirthwood/server/internal/world"
)

// headingDX/headingDY map a heading 0-7 (0=N, clockwise) to its unit step.
// Diagonals take the full step on both axes.
var (
	headingDX = [8]float64{0, 1, 1, 1, 0, -1, -1, -1}
	headingDY = [8]float64{-1, -1, 0, 1, 1, 1, 0, -1}
)

type mover struct {
	p       *world.PlayerInfo
	heading int
}

// Movement advances all armed movers at a fixed frame cadence. At most one
// mover exists per session; a new MOVEXY re-aims it and ABORT disarms it.
// Packet arrival rate never affects movement speed.
type Movement struct {
	deps   *handler.Deps
	movers map[string]*mover // keyed by connection identity

	stepX, stepY float64
	framePeriod  time.Duration
	acc          time.Duration
}

func NewMovement(deps *handler.Deps) *Movement {
	mv := deps.Config.Movement
	return &Movement{
		deps:        deps,
		movers:      make(map[string]*mover),
		stepX:       mv.StepX,
		stepY:       mv.StepY,
		framePeriod: mv.FramePeriod(),
	}
}

func (s *Movement) Phase() coresys.Phase { return coresys.PhaseUpdate }

// Start arms or re-aims the session's mover.
func (s *Movement) Start(p *world.PlayerInfo, heading int) {
	if m, ok := s.movers[p.ConnID]; ok {
		m.heading = heading
		p.Facing = heading
		s.deps.BroadcastMove(p)
		return
	}
	p.Moving = true
	p.Facing = heading
	s.movers[p.ConnID] = &mover{p: p, heading: heading}
	s.deps.BroadcastMove(p)
}

// Abort disarms the session's mover and broadcasts the idle state.
func (s *Movement) Abort(p *world.PlayerInfo) {
	if _, ok := s.movers[p.ConnID]; !ok && !p.Moving {
		return
	}
	delete(s.movers, p.ConnID)
	p.Moving = false
	s.deps.BroadcastMove(p)
}

// Update accumulates elapsed time and advances at most one frame per call.
// A stalled tick absorbs the excess instead of replaying missed frames, so a
// scheduler hiccup never bursts a mover across several steps at once.
func (s *Movement) Update(dt time.Duration) {
	s.acc += dt
	if s.acc < s.framePeriod {
		return
	}
	s.acc %= s.framePeriod
	s.step()
}

func (s *Movement) step() {
	for _, m := range s.movers {
		s.advance(m)
	}
}

// advance moves one session a single frame: warp triggers fire before the
// collision test, and a blocked step disarms the mover in place.
func (s *Movement) advance(m *mover) {
	p := m.p
	def := s.deps.Maps.Get(p.MapName)
	if def == nil {
		s.Abort(p)
		return
	}

	nx := p.X + headingDX[m.heading]*s.stepX
	ny := p.Y + headingDY[m.heading]*s.stepY

	if warp := def.WarpAt(nx, ny); warp != nil {
		s.deps.TransferToMap(p, warp.ToMap, warp.ToX, warp.ToY)
		return
	}

	if !p.Noclip && def.Blocked(nx, ny, world.PlayerWidth, world.PlayerHeight) {
		s.Abort(p)
		return
	}

	p.X = nx
	p.Y = ny
	p.Dirty = true
	s.deps.BroadcastMove(p)
}
