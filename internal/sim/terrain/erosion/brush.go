package erosion

import (
	"fmt"
	"math"
)

// BrushEntry is one weighted target cell of an erosion brush.
type BrushEntry struct {
	X, Y   int
	Weight float32
}

// BrushTable holds a precomputed brush for every interior cell of a map.
// Cells closer than Radius to an edge have no brush and are never eroded
// through it.
type BrushTable struct {
	MapSize int
	Radius  int
	brushes [][]BrushEntry // index x + y*MapSize
}

func NewBrushTable(mapSize, radius int) (*BrushTable, error) {
	if radius < 1 {
		return nil, fmt.Errorf("erosion brush radius must be >= 1 (got %d)", radius)
	}
	if mapSize < 1 {
		return nil, fmt.Errorf("erosion map size must be >= 1 (got %d)", mapSize)
	}
	t := &BrushTable{
		MapSize: mapSize,
		Radius:  radius,
		brushes: make([][]BrushEntry, mapSize*mapSize),
	}

	// Offsets and weights are identical for every interior cell; only the
	// absolute targets move.
	type offset struct {
		dx, dy int
		w      float32
	}
	r2 := radius * radius
	offsets := make([]offset, 0, 4*r2)
	var sum float32
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			d2 := dx*dx + dy*dy
			if d2 >= r2 {
				continue
			}
			w := 1 - float32(math.Sqrt(float64(d2)))/float32(radius)
			offsets = append(offsets, offset{dx: dx, dy: dy, w: w})
			sum += w
		}
	}

	for y := radius; y < mapSize-radius; y++ {
		for x := radius; x < mapSize-radius; x++ {
			b := make([]BrushEntry, len(offsets))
			for i, o := range offsets {
				b[i] = BrushEntry{X: x + o.dx, Y: y + o.dy, Weight: o.w / sum}
			}
			t.brushes[x+y*mapSize] = b
		}
	}
	return t, nil
}

// At returns the brush centred on (x, y), or nil for edge cells.
func (t *BrushTable) At(x, y int) []BrushEntry {
	if x < 0 || y < 0 || x >= t.MapSize || y >= t.MapSize {
		return nil
	}
	return t.brushes[x+y*t.MapSize]
}
