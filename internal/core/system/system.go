package system

import "time"

// Phase defines execution ordering within a single tick.
type Phase int

const (
	PhaseInput      Phase = iota // 0: drain connection queues, admission control
	PhasePreUpdate               // 1: deferred-send retry, rate-limit decay
	PhaseUpdate                  // 2: movement simulation
	PhasePostUpdate              // 3: server tick — pvp cooldown, stat regen
	PhasePersist                 // 4: batch save of dirty sessions
	PhaseCleanup                 // 5: dead connection teardown
)

// System is the interface every tick system implements.
type System interface {
	Phase() Phase
	Update(dt time.Duration)
}
