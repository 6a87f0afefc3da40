package system

import (
	"context"
	"time"

	coresys "github.com/mirthwood/server/internal/core/system"
	"github.com/mirthwood/server/internal/handler"
	"github.com/mirthwood/server/internal/world"
	"go.uber.org/zap"
)

// Persistence batch-saves dirty sessions on a fixed cadence. Guests are
// never written; everything else only when its Dirty flag is set, so an idle
// world costs no writes.
type Persistence struct {
	deps     *handler.Deps
	interval time.Duration
	acc      time.Duration
}

func NewPersistence(deps *handler.Deps) *Persistence {
	return &Persistence{
		deps:     deps,
		interval: time.Duration(deps.Config.Persistence.SaveIntervalSec) * time.Second,
	}
}

func (s *Persistence) Phase() coresys.Phase { return coresys.PhasePersist }

func (s *Persistence) Update(dt time.Duration) {
	s.acc += dt
	if s.acc < s.interval {
		return
	}
	s.acc = 0
	s.saveDirty()
}

func (s *Persistence) saveDirty() {
	s.deps.World.AllPlayers(func(p *world.PlayerInfo) {
		if !p.Dirty || p.Guest {
			return
		}
		s.save(p)
	})
}

// SaveAll force-saves every non-guest session regardless of dirty state.
// Called on shutdown.
func (s *Persistence) SaveAll() {
	s.deps.World.AllPlayers(func(p *world.PlayerInfo) {
		if p.Guest {
			return
		}
		s.save(p)
	})
}

func (s *Persistence) save(p *world.PlayerInfo) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := s.deps.Store.SaveState(ctx, world.RecordOf(p)); err != nil {
		s.deps.Log.Error("批次存檔失敗", zap.String("player", p.Name), zap.Error(err))
		return
	}
	p.Dirty = false
}
