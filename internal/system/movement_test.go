package system

import (
	"testing"
	"time"

	"github.com/mirthwood/server/internal/net/packet"
)

const frame = time.Second / 60

// pump ticks the movement system n times at the frame cadence.
func pump(m *Movement, n int) {
	for i := 0; i < n; i++ {
		m.Update(frame)
	}
}

func TestMoverAdvancesPerFrame(t *testing.T) {
	env := newTestEnv(t)
	p, _ := env.addPlayer("alice", 0, 0)

	env.movement.Start(p, 2) // east
	if !p.Moving {
		t.Fatal("mover should be armed")
	}

	pump(env.movement, 3)
	if p.X != 6 {
		t.Errorf("x = %v, want 6 after three frames at step 2", p.X)
	}
	if p.Y != 0 {
		t.Errorf("y = %v, want 0", p.Y)
	}
}

func TestStalledTickDoesNotBurstSteps(t *testing.T) {
	env := newTestEnv(t)
	p, _ := env.addPlayer("alice", 0, 0)

	env.movement.Start(p, 2)

	// One long-delayed tick advances a single step; the missed frames are
	// absorbed, not replayed.
	env.movement.Update(20 * frame)
	if p.X != 2 {
		t.Errorf("x = %v, want a single step after a stalled tick", p.X)
	}
	pump(env.movement, 1)
	if p.X != 4 {
		t.Errorf("x = %v, want normal pacing to resume", p.X)
	}
}

func TestRepeatedStartDoesNotSpeedUp(t *testing.T) {
	env := newTestEnv(t)
	p, _ := env.addPlayer("alice", 0, 0)

	// A packet flood re-aims the one mover; it never stacks.
	for i := 0; i < 10; i++ {
		env.movement.Start(p, 2)
	}
	env.movement.Update(frame)
	if p.X != 2 {
		t.Errorf("x = %v, want exactly one step", p.X)
	}
}

func TestDiagonalTakesFullStepBothAxes(t *testing.T) {
	env := newTestEnv(t)
	p, _ := env.addPlayer("alice", 0, 0)

	env.movement.Start(p, 3) // southeast
	env.movement.Update(frame)
	if p.X != 2 || p.Y != 2 {
		t.Errorf("pos = (%v,%v), want (2,2)", p.X, p.Y)
	}
}

func TestAbortStopsMover(t *testing.T) {
	env := newTestEnv(t)
	p, _ := env.addPlayer("alice", 0, 0)

	env.movement.Start(p, 2)
	pump(env.movement, 1)
	env.movement.Abort(p)
	if p.Moving {
		t.Error("mover should be disarmed")
	}

	x := p.X
	pump(env.movement, 10)
	if p.X != x {
		t.Errorf("x moved from %v to %v after abort", x, p.X)
	}
}

func TestBlockedStepDisarmsInPlace(t *testing.T) {
	env := newTestEnv(t)
	// The east wall occupies world x 48..63; the 16px body collides once
	// its right edge crosses 48.
	p, _ := env.addPlayer("alice", 30, 0)

	env.movement.Start(p, 2)
	pump(env.movement, 30)

	if p.X != 32 {
		t.Errorf("x = %v, want 32 (last passable position)", p.X)
	}
	if p.Moving {
		t.Error("mover should be disarmed at the wall")
	}
}

func TestNoclipIgnoresCollision(t *testing.T) {
	env := newTestEnv(t)
	p, _ := env.addPlayer("alice", 30, 0)
	p.Noclip = true

	env.movement.Start(p, 2)
	pump(env.movement, 3)
	if p.X != 36 {
		t.Errorf("x = %v, want 36 with noclip", p.X)
	}
}

func TestSameMapWarpRepositionsWithoutReload(t *testing.T) {
	env := newTestEnv(t)
	// The loop warp spans (-48,32)-(-33,47) and targets the arena itself;
	// approach from the east.
	p, client := env.addPlayer("alice", -28, 32)

	env.movement.Start(p, 6) // west
	pump(env.movement, 3)

	if p.MapName != "arena" {
		t.Fatalf("map = %q, want arena", p.MapName)
	}
	if p.X != 0 || p.Y != 0 {
		t.Errorf("pos = (%v,%v), want warp destination (0,0)", p.X, p.Y)
	}
	if p.Moving {
		t.Error("mover should be disarmed after a warp")
	}

	types := readTypes(t, client, 300*time.Millisecond)
	if n := countType(types, packet.SLoadMap); n != 0 {
		t.Errorf("client received %d LOAD_MAP, want none for a same-map warp", n)
	}
	if countType(types, packet.STeleportXY) == 0 {
		t.Error("client should be repositioned with TELEPORTXY")
	}
}

func TestWarpTransfersAcrossMaps(t *testing.T) {
	env := newTestEnv(t)
	// Warp trigger spans (32,32)-(47,47); approach from the west.
	p, _ := env.addPlayer("alice", 28, 32)

	env.movement.Start(p, 2)
	pump(env.movement, 3)

	if p.MapName != "lobby" {
		t.Fatalf("map = %q, want lobby", p.MapName)
	}
	if p.X != 0 || p.Y != 0 {
		t.Errorf("pos = (%v,%v), want warp destination (0,0)", p.X, p.Y)
	}
	if p.Moving {
		t.Error("mover should be disarmed after a warp")
	}
}
