package system

import (
	"errors"
	"time"

	"github.com/mirthwood/server/internal/core/event"
	coresys "github.com/mirthwood/server/internal/core/system"
	"github.com/mirthwood/server/internal/handler"
	"github.com/mirthwood/server/internal/net"
	"github.com/mirthwood/server/internal/net/packet"
	"go.uber.org/zap"
)

// Input accepts new connections and drains each connection's inbound queue
// through admission control and the backpressure gate into the dispatcher.
type Input struct {
	deps *handler.Deps
	reg  *packet.Registry
	srv  *net.Server

	maxConnsPerTick int
	ceiling         int64
	retryStep       time.Duration
}

func NewInput(deps *handler.Deps, reg *packet.Registry, srv *net.Server) *Input {
	netCfg := deps.Config.Network
	return &Input{
		deps:            deps,
		reg:             reg,
		srv:             srv,
		maxConnsPerTick: netCfg.MaxConnsPerTick,
		ceiling:         netCfg.BufferCeilingBytes,
		retryStep:       time.Duration(netCfg.DeferRetryStepMs) * time.Millisecond,
	}
}

func (s *Input) Phase() coresys.Phase { return coresys.PhaseInput }

func (s *Input) Update(dt time.Duration) {
	s.acceptNew()
	now := time.Now()
	s.deps.Conns.All(func(c *net.Conn) {
		s.drainConn(c, now)
	})
}

// acceptNew admits freshly upgraded connections, capped per tick so a
// connect storm cannot starve the loop.
func (s *Input) acceptNew() {
	for i := 0; i < s.maxConnsPerTick; i++ {
		select {
		case c := <-s.srv.NewConns():
			s.deps.Conns.Add(c)
			s.deps.Rate.Add(c.ID)
			event.Emit(s.deps.Bus, event.ConnectionCountChanged{Count: s.deps.Conns.Count()})
		default:
			return
		}
	}
}

// drainConn empties one connection's inbound queue. Every packet passes
// admission control first; survivors either dispatch now, or are deferred
// when the connection's unsent bytes sit above the ceiling. Movement skips
// the gate entirely.
func (s *Input) drainConn(c *net.Conn, now time.Time) {
	for {
		var env packet.Envelope
		select {
		case env = <-c.InQueue:
		default:
			return
		}

		switch s.deps.Rate.Admit(c.ID, now) {
		case net.JustLimited:
			s.deps.Log.Warn("連線觸發流量限制", zap.String("conn", c.ID[:8]))
			c.Send(packet.New(packet.SRateLimited, struct {
				Reason string `json:"reason"`
			}{Reason: "too many requests"}))
			continue
		case net.Dropped:
			continue
		}

		if !s.reg.IsPriority(env.Type) && c.Buffered() > s.ceiling {
			c.Deferred = append(c.Deferred, net.DeferredPacket{
				Env:       env,
				NotBefore: now.Add(s.retryStep),
			})
			continue
		}

		s.dispatch(c, env)
	}
}

func (s *Input) dispatch(c *net.Conn, env packet.Envelope) {
	if err := s.reg.Dispatch(c, c.Authed, env); err != nil {
		if errors.Is(err, packet.ErrUnknownType) {
			c.CloseWithCode(packet.CloseUnknownType, "unknown packet type")
			return
		}
		s.deps.Log.Warn("封包處理失敗",
			zap.String("type", env.Type),
			zap.Error(err),
		)
	}
}
