package data

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// DirCache is an AssetCache backed by a directory of compressed buffers, as
// produced by the external asset pipeline: {map}.col.json for collision,
// {map}.nopvp.json for the no-PvP layer. Each file is a flat JSON array.
type DirCache struct {
	dir string
}

func NewDirCache(dir string) *DirCache {
	return &DirCache{dir: dir}
}

func (c *DirCache) Collision(mapName string) ([]int32, bool) {
	return c.read(mapName + ".col.json")
}

func (c *DirCache) NoPvP(mapName string) ([]int32, bool) {
	return c.read(mapName + ".nopvp.json")
}

func (c *DirCache) read(file string) ([]int32, bool) {
	raw, err := os.ReadFile(filepath.Join(c.dir, file))
	if err != nil {
		return nil, false
	}
	var buf []int32
	if err := json.Unmarshal(raw, &buf); err != nil {
		return nil, false
	}
	return buf, true
}

// MemCache is an in-memory AssetCache used by tests and the benchmark
// handler.
type MemCache struct {
	ColBuf   map[string][]int32
	NoPvPBuf map[string][]int32
}

func NewMemCache() *MemCache {
	return &MemCache{
		ColBuf:   make(map[string][]int32),
		NoPvPBuf: make(map[string][]int32),
	}
}

func (c *MemCache) Collision(mapName string) ([]int32, bool) {
	buf, ok := c.ColBuf[mapName]
	return buf, ok
}

func (c *MemCache) NoPvP(mapName string) ([]int32, bool) {
	buf, ok := c.NoPvPBuf[mapName]
	return buf, ok
}
