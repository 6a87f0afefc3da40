package system

import (
	"time"

	coresys "github.com/mirthwood/server/internal/core/system"
	"github.com/mirthwood/server/internal/handler"
	"github.com/mirthwood/server/internal/net"
)

// Cleanup tears down connections whose pumps have exited: the session is
// saved, its map peers are told, and every registry entry is destroyed.
type Cleanup struct {
	deps *handler.Deps
	srv  *net.Server
}

func NewCleanup(deps *handler.Deps, srv *net.Server) *Cleanup {
	return &Cleanup{deps: deps, srv: srv}
}

func (s *Cleanup) Phase() coresys.Phase { return coresys.PhaseCleanup }

func (s *Cleanup) Update(dt time.Duration) {
	for {
		select {
		case id := <-s.srv.DeadConns():
			s.deps.DropSession(id, true)
			continue
		default:
		}
		break
	}

	var dead []string
	s.deps.Conns.All(func(c *net.Conn) {
		if c.IsClosed() {
			dead = append(dead, c.ID)
		}
	})
	for _, id := range dead {
		s.deps.DropSession(id, true)
	}
}
