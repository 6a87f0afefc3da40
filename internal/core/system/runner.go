package system

import (
	"sort"
	"time"
)

// Runner executes systems in phase order each tick.
type Runner struct {
	systems []System
	sorted  bool
}

func NewRunner() *Runner {
	return &Runner{
		systems: make([]System, 0, 8),
	}
}

func (r *Runner) Register(s System) {
	r.systems = append(r.systems, s)
	r.sorted = false
}

func (r *Runner) Tick(dt time.Duration) {
	r.ensureSorted()
	for _, s := range r.systems {
		s.Update(dt)
	}
}

// TickPhases 只執行指定範圍內的 Phase。
// 移動模擬需要 60Hz 的節奏，但回復/存檔等系統跑在較慢的主 tick；
// 主迴圈在兩個完整 tick 之間以高頻率呼叫 TickPhases(PhaseInput, PhaseUpdate)。
func (r *Runner) TickPhases(from, to Phase, dt time.Duration) {
	r.ensureSorted()
	for _, s := range r.systems {
		if p := s.Phase(); p >= from && p <= to {
			s.Update(dt)
		}
	}
}

func (r *Runner) ensureSorted() {
	if !r.sorted {
		sort.Slice(r.systems, func(i, j int) bool {
			return r.systems[i].Phase() < r.systems[j].Phase()
		})
		r.sorted = true
	}
}
