package net

import "time"

// RateEntry is the per-connection sliding-window admission state. Created on
// connect, destroyed on disconnect. Both the per-packet increment and the
// periodic decay run on the game loop goroutine — single-owner discipline,
// no atomics needed.
type RateEntry struct {
	Requests    int
	RateLimited bool
	ViolatedAt  time.Time
	Window      int // decay ticks elapsed since the violation
}

// Admission is the outcome of admitting one inbound packet.
type Admission int

const (
	Admitted     Admission = iota
	JustLimited            // this packet tripped the limit — send the one notice
	Dropped                // already limited — drop silently
)

// RateTable holds all rate-limit entries, keyed by connection identity.
type RateTable struct {
	entries     map[string]*RateEntry
	maxRequests int
	cooldown    time.Duration
	enabled     bool
}

func NewRateTable(maxRequests int, cooldown time.Duration, enabled bool) *RateTable {
	return &RateTable{
		entries:     make(map[string]*RateEntry),
		maxRequests: maxRequests,
		cooldown:    cooldown,
		enabled:     enabled,
	}
}

func (t *RateTable) Enabled() bool { return t.enabled }

// Add creates a zeroed entry for a new connection.
func (t *RateTable) Add(connID string) {
	if !t.enabled {
		return
	}
	t.entries[connID] = &RateEntry{}
}

// Remove destroys the entry on disconnect.
func (t *RateTable) Remove(connID string) {
	delete(t.entries, connID)
}

// Get returns the entry for a connection, or nil.
func (t *RateTable) Get(connID string) *RateEntry {
	return t.entries[connID]
}

// Admit records one inbound packet and decides its fate. The limit check
// runs before the increment: packets one through maxRequests pass, the next
// one trips the limit.
func (t *RateTable) Admit(connID string, now time.Time) Admission {
	if !t.enabled {
		return Admitted
	}
	e := t.entries[connID]
	if e == nil {
		return Admitted
	}
	if e.RateLimited {
		return Dropped
	}
	if e.Requests >= t.maxRequests {
		e.RateLimited = true
		e.ViolatedAt = now
		e.Window = 0
		return JustLimited
	}
	e.Requests++
	return Admitted
}

// Decay runs on the fixed-update tick. Well-behaved connections get their
// window counter reset; limited connections re-arm the window each tick and
// are reinstated once the cooldown has elapsed since the violation.
func (t *RateTable) Decay(now time.Time) {
	if !t.enabled {
		return
	}
	for _, e := range t.entries {
		if !e.RateLimited {
			e.Requests = 0
			continue
		}
		e.Window++
		if now.Sub(e.ViolatedAt) > t.cooldown {
			e.RateLimited = false
			e.Requests = 0
			e.Window = 0
			e.ViolatedAt = time.Time{}
		}
	}
}
