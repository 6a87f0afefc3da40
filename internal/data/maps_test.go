package data

import (
	"os"
	"path/filepath"
	"testing"
)

const testMapList = `
maps:
  - name: arena
    tile_width: 16
    tile_height: 16
    spawn_x: 0
    spawn_y: 0
    warps:
      - name: exit
        x: 32
        y: 32
        width: 16
        height: 16
        to_map: lobby
        to_x: 0
        to_y: 0
  - name: lobby
    tile_width: 16
    tile_height: 16
    spawn_x: 0
    spawn_y: 0
`

// borderedCache returns assets for "arena": an 8x8 collision grid walled at
// the border, PvP allowed everywhere. "lobby" has no layers at all.
func borderedCache() *MemCache {
	cache := NewMemCache()
	buf := []int32{8, 8}
	for y := int32(0); y < 8; y++ {
		for x := int32(0); x < 8; x++ {
			var v int32
			if x == 0 || y == 0 || x == 7 || y == 7 {
				v = 1
			}
			buf = append(buf, v, 1)
		}
	}
	cache.ColBuf["arena"] = buf
	cache.NoPvPBuf["arena"] = []int32{8, 8, 1, 64}
	return cache
}

func loadTestTable(t *testing.T, cache AssetCache) *MapTable {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "maps.yaml")
	if err := os.WriteFile(path, []byte(testMapList), 0644); err != nil {
		t.Fatal(err)
	}
	table, err := LoadMapTable(path, cache)
	if err != nil {
		t.Fatalf("LoadMapTable: %v", err)
	}
	return table
}

func TestBlockedCenterAndBorder(t *testing.T) {
	table := loadTestTable(t, borderedCache())
	arena := table.Get("arena")
	if arena == nil {
		t.Fatal("arena not loaded")
	}

	// 8x8 grid at 16px tiles, centered: world spans -64..63 on each axis.
	if arena.Blocked(0, 0, 16, 16) {
		t.Error("center should be passable")
	}
	if !arena.Blocked(-64, 0, 16, 16) {
		t.Error("west border wall should block")
	}
	if !arena.Blocked(0, 48, 16, 16) {
		t.Error("south border wall should block")
	}
}

func TestBlockedFailSafe(t *testing.T) {
	table := loadTestTable(t, borderedCache())
	arena := table.Get("arena")

	// Out of bounds fails safe to blocked.
	if !arena.Blocked(1000, 1000, 16, 16) {
		t.Error("out-of-bounds should be blocked")
	}

	// A map with no collision layer blocks everywhere.
	lobby := table.Get("lobby")
	if lobby == nil {
		t.Fatal("lobby not loaded")
	}
	if !lobby.Blocked(0, 0, 16, 16) {
		t.Error("missing collision layer should block")
	}
}

func TestPvPAllowed(t *testing.T) {
	table := loadTestTable(t, borderedCache())
	if !table.Get("arena").PvPAllowed(0, 0, 16, 16) {
		t.Error("arena should allow pvp at center")
	}
	// Missing no-PvP layer denies PvP everywhere.
	if table.Get("lobby").PvPAllowed(0, 0, 16, 16) {
		t.Error("lobby should deny pvp without a layer")
	}
}

func TestWarpAt(t *testing.T) {
	table := loadTestTable(t, borderedCache())
	arena := table.Get("arena")

	if w := arena.WarpAt(40, 40); w == nil || w.ToMap != "lobby" {
		t.Errorf("WarpAt(40,40) = %+v, want warp to lobby", w)
	}
	if w := arena.WarpAt(0, 0); w != nil {
		t.Errorf("WarpAt(0,0) = %+v, want nil", w)
	}
	// The trigger region is half-open on the far edge.
	if w := arena.WarpAt(48, 48); w != nil {
		t.Errorf("WarpAt(48,48) = %+v, want nil", w)
	}
}

func TestReloadSwapsLayers(t *testing.T) {
	cache := borderedCache()
	table := loadTestTable(t, cache)
	arena := table.Get("arena")

	if arena.Blocked(0, 0, 16, 16) {
		t.Fatal("center should start passable")
	}

	// Replace the collision layer with an all-walls grid and reload.
	cache.ColBuf["arena"] = []int32{8, 8, 1, 64}
	if err := table.Reload("arena", cache); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if !arena.Blocked(0, 0, 16, 16) {
		t.Error("center should block after reload")
	}

	if err := table.Reload("nowhere", cache); err == nil {
		t.Error("reloading an unknown map should fail")
	}
}
