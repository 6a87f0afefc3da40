package data

import "fmt"

// Layer is a run-length-encoded binary grid. The wire form is a flat
// sequence [width, height, value, runLength, value, runLength, ...] in
// row-major order. Layers are immutable after decode; an admin reload swaps
// the whole layer reference on the owning MapDef.
type Layer struct {
	Width  int32
	Height int32
	runs   []int32 // alternating value, runLength pairs
}

// DecodeLayer parses a compressed buffer into a Layer. The run lengths must
// cover exactly width*height cells.
func DecodeLayer(buf []int32) (*Layer, error) {
	if len(buf) < 4 || len(buf)%2 != 0 {
		return nil, fmt.Errorf("rle buffer has invalid length %d", len(buf))
	}
	w, h := buf[0], buf[1]
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("rle buffer has invalid dimensions %dx%d", w, h)
	}
	runs := buf[2:]
	var total int64
	for i := 1; i < len(runs); i += 2 {
		if runs[i] <= 0 {
			return nil, fmt.Errorf("rle run %d has non-positive length %d", i/2, runs[i])
		}
		total += int64(runs[i])
	}
	if total != int64(w)*int64(h) {
		return nil, fmt.Errorf("rle runs cover %d cells, grid has %d", total, int64(w)*int64(h))
	}
	return &Layer{Width: w, Height: h, runs: runs}, nil
}

// At returns the cell value at the flat row-major index. The run pairs are
// scanned linearly, accumulating a running index until the pair containing
// the target is found — a deliberate memory/compute tradeoff for sparse
// compressed maps. ok is false when the index is outside the grid.
func (l *Layer) At(idx int32) (value int32, ok bool) {
	if l == nil || idx < 0 || idx >= l.Width*l.Height {
		return 0, false
	}
	var acc int32
	for i := 0; i+1 < len(l.runs); i += 2 {
		acc += l.runs[i+1]
		if idx < acc {
			return l.runs[i], true
		}
	}
	return 0, false
}

// AtTile returns the cell value at tile coordinates, with the same
// out-of-bounds contract as At.
func (l *Layer) AtTile(tx, ty int32) (int32, bool) {
	if l == nil || tx < 0 || tx >= l.Width || ty < 0 || ty >= l.Height {
		return 0, false
	}
	return l.At(ty*l.Width + tx)
}
