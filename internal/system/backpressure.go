package system

import (
	"time"

	coresys "github.com/mirthwood/server/internal/core/system"
	"github.com/mirthwood/server/internal/handler"
	"github.com/mirthwood/server/internal/net"
	"go.uber.org/zap"
)

// Backpressure retries each connection's deferred packets once the outbound
// buffer drains back under the ceiling. Retries back off linearly and a
// packet that exhausts its retries is dropped, never reordered: the deferred
// queue is strictly FIFO per connection.
type Backpressure struct {
	input *Input // shares dispatch with the input system

	deps       *handler.Deps
	ceiling    int64
	retryStep  time.Duration
	retryCap   time.Duration
	maxRetries int
}

func NewBackpressure(deps *handler.Deps, input *Input) *Backpressure {
	netCfg := deps.Config.Network
	return &Backpressure{
		input:      input,
		deps:       deps,
		ceiling:    netCfg.BufferCeilingBytes,
		retryStep:  time.Duration(netCfg.DeferRetryStepMs) * time.Millisecond,
		retryCap:   time.Duration(netCfg.DeferRetryCapMs) * time.Millisecond,
		maxRetries: netCfg.DeferMaxRetries,
	}
}

func (s *Backpressure) Phase() coresys.Phase { return coresys.PhasePreUpdate }

func (s *Backpressure) Update(dt time.Duration) {
	now := time.Now()
	s.deps.Conns.All(func(c *net.Conn) {
		s.retryDeferred(c, now)
	})
}

func (s *Backpressure) retryDeferred(c *net.Conn, now time.Time) {
	for len(c.Deferred) > 0 {
		head := &c.Deferred[0]
		if now.Before(head.NotBefore) {
			return
		}
		if c.Buffered() > s.ceiling {
			head.Retries++
			if head.Retries > s.maxRetries {
				s.deps.Log.Warn("延遲封包重試超限，丟棄",
					zap.String("conn", c.ID[:8]),
					zap.String("type", head.Env.Type),
				)
				c.Deferred = c.Deferred[1:]
				continue
			}
			backoff := time.Duration(head.Retries) * s.retryStep
			if backoff > s.retryCap {
				backoff = s.retryCap
			}
			head.NotBefore = now.Add(backoff)
			return
		}
		env := head.Env
		c.Deferred = c.Deferred[1:]
		s.input.dispatch(c, env)
	}
}

// RateDecay runs the rate table's periodic decay on its own cadence,
// independent of how often the phase itself is ticked.
type RateDecay struct {
	deps     *handler.Deps
	interval time.Duration
	acc      time.Duration
}

func NewRateDecay(deps *handler.Deps) *RateDecay {
	return &RateDecay{
		deps:     deps,
		interval: time.Duration(deps.Config.RateLimit.DecayIntervalMs) * time.Millisecond,
	}
}

func (s *RateDecay) Phase() coresys.Phase { return coresys.PhasePreUpdate }

func (s *RateDecay) Update(dt time.Duration) {
	s.acc += dt
	for s.acc >= s.interval {
		s.acc -= s.interval
		s.deps.Rate.Decay(time.Now())
	}
}
