package data

import (
	"fmt"
	"math"
	"os"
	"sync/atomic"

	"gopkg.in/yaml.v3"
)

// Warp is a named rectangular trigger region mapping to a destination map
// and coordinates. Read-only at runtime.
type Warp struct {
	Name   string  `yaml:"name"`
	X      float64 `yaml:"x"`
	Y      float64 `yaml:"y"`
	Width  float64 `yaml:"width"`
	Height float64 `yaml:"height"`
	ToMap  string  `yaml:"to_map"`
	ToX    float64 `yaml:"to_x"`
	ToY    float64 `yaml:"to_y"`
}

// Contains reports whether the point lies inside the trigger rectangle.
func (w Warp) Contains(x, y float64) bool {
	return x >= w.X && x < w.X+w.Width && y >= w.Y && y < w.Y+w.Height
}

// MapMeta is per-map metadata loaded from the map list YAML.
type MapMeta struct {
	Name       string  `yaml:"name"`
	TileWidth  int32   `yaml:"tile_width"`
	TileHeight int32   `yaml:"tile_height"`
	Music      string  `yaml:"music"`
	SpawnX     float64 `yaml:"spawn_x"`
	SpawnY     float64 `yaml:"spawn_y"`
	Warps      []Warp  `yaml:"warps"`
}

// AssetCache supplies compressed layer buffers by map name. The compression
// pipeline that produces them is an external collaborator.
type AssetCache interface {
	Collision(mapName string) ([]int32, bool)
	NoPvP(mapName string) ([]int32, bool)
}

// MapDef holds one map's metadata plus its decoded layers. Layer references
// are replaced atomically on admin reload; everything else is immutable.
type MapDef struct {
	Meta      MapMeta
	collision atomic.Pointer[Layer]
	noPvP     atomic.Pointer[Layer]
}

func (m *MapDef) CollisionLayer() *Layer { return m.collision.Load() }
func (m *MapDef) NoPvPLayer() *Layer     { return m.noPvP.Load() }

// WarpAt returns the first warp region containing the point, or nil.
func (m *MapDef) WarpAt(x, y float64) *Warp {
	for i := range m.Meta.Warps {
		if m.Meta.Warps[i].Contains(x, y) {
			return &m.Meta.Warps[i]
		}
	}
	return nil
}

// tileRange computes the inclusive tile span covered by a world-space
// bounding box. Tile indices are offset so that world origin sits at the
// centre of the grid: floor(width/2), floor(height/2).
func (m *MapDef) tileRange(l *Layer, x, y, w, h float64) (tx0, ty0, tx1, ty1 int32) {
	offX := l.Width / 2
	offY := l.Height / 2
	tw := float64(m.Meta.TileWidth)
	th := float64(m.Meta.TileHeight)
	tx0 = int32(math.Floor(x/tw)) + offX
	ty0 = int32(math.Floor(y/th)) + offY
	tx1 = int32(math.Floor((x+w-1)/tw)) + offX
	ty1 = int32(math.Floor((y+h-1)/th)) + offY
	return
}

// Blocked reports whether any collision tile under the bounding box is
// non-zero. A missing layer or any out-of-bounds tile fails safe to blocked
// — movement is denied rather than permitting an out-of-bounds step.
func (m *MapDef) Blocked(x, y, w, h float64) bool {
	l := m.CollisionLayer()
	if l == nil {
		return true
	}
	tx0, ty0, tx1, ty1 := m.tileRange(l, x, y, w, h)
	for ty := ty0; ty <= ty1; ty++ {
		for tx := tx0; tx <= tx1; tx++ {
			v, ok := l.AtTile(tx, ty)
			if !ok || v != 0 {
				return true
			}
		}
	}
	return false
}

// PvPAllowed reports whether every no-PvP tile under the bounding box is
// non-zero. The layer carries inverted semantics: a non-zero cell means PvP
// is allowed there. A missing layer denies PvP everywhere.
func (m *MapDef) PvPAllowed(x, y, w, h float64) bool {
	l := m.NoPvPLayer()
	if l == nil {
		return false
	}
	tx0, ty0, tx1, ty1 := m.tileRange(l, x, y, w, h)
	for ty := ty0; ty <= ty1; ty++ {
		for tx := tx0; tx <= tx1; tx++ {
			v, ok := l.AtTile(tx, ty)
			if !ok || v == 0 {
				return false
			}
		}
	}
	return true
}

type mapListFile struct {
	Maps []MapMeta `yaml:"maps"`
}

// MapTable provides map lookups by name.
type MapTable struct {
	maps map[string]*MapDef
}

// LoadMapTable loads map metadata from YAML and decodes the collision and
// no-PvP layers from the asset cache. A map whose collision buffer is
// missing or corrupt still loads, with movement on it fully blocked.
func LoadMapTable(yamlPath string, assets AssetCache) (*MapTable, error) {
	raw, err := os.ReadFile(yamlPath)
	if err != nil {
		return nil, fmt.Errorf("read map list %s: %w", yamlPath, err)
	}
	var file mapListFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse map list: %w", err)
	}

	table := &MapTable{maps: make(map[string]*MapDef, len(file.Maps))}
	for _, meta := range file.Maps {
		if meta.TileWidth <= 0 || meta.TileHeight <= 0 {
			continue
		}
		def := &MapDef{Meta: meta}
		def.loadLayers(assets)
		table.maps[meta.Name] = def
	}
	return table, nil
}

func (m *MapDef) loadLayers(assets AssetCache) {
	if buf, ok := assets.Collision(m.Meta.Name); ok {
		if l, err := DecodeLayer(buf); err == nil {
			m.collision.Store(l)
		}
	}
	if buf, ok := assets.NoPvP(m.Meta.Name); ok {
		if l, err := DecodeLayer(buf); err == nil {
			m.noPvP.Store(l)
		}
	}
}

// Get returns a map by name, or nil.
func (t *MapTable) Get(name string) *MapDef {
	return t.maps[name]
}

// Count returns the number of maps loaded.
func (t *MapTable) Count() int {
	return len(t.maps)
}

// Names returns all loaded map names.
func (t *MapTable) Names() []string {
	out := make([]string, 0, len(t.maps))
	for name := range t.maps {
		out = append(out, name)
	}
	return out
}

// Reload re-decodes the layers of one map from the asset cache, atomically
// replacing the layer references. In-flight collision queries keep reading
// the old layers until the swap.
func (t *MapTable) Reload(name string, assets AssetCache) error {
	def := t.maps[name]
	if def == nil {
		return fmt.Errorf("unknown map %q", name)
	}
	def.loadLayers(assets)
	return nil
}
