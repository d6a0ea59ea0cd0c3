package heightmap

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"landmass.dev/internal/sim/terrain/curve"
	"landmass.dev/internal/sim/terrain/noise"
)

type Settings struct {
	ChunkSize int
	Noise     noise.Config
	Scale     float32
	Offset    mgl32.Vec2
	Curve     curve.Curve
}

// GridSize is one larger than the chunk so neighbouring chunks share an edge.
func (s Settings) GridSize() int { return s.ChunkSize + 1 }

// Generate samples noise for every cell of the chunk at coord.
func Generate(coord Coord, s Settings) (*Field, error) {
	if s.ChunkSize < 1 {
		return nil, fmt.Errorf("heightmap: chunk size must be >= 1 (got %d)", s.ChunkSize)
	}
	if !(s.Scale > 0) {
		return nil, fmt.Errorf("heightmap: noise scale must be > 0 (got %v)", s.Scale)
	}
	src, err := noise.New(s.Noise)
	if err != nil {
		return nil, fmt.Errorf("heightmap: %w", err)
	}

	size := s.GridSize()
	field := NewField(size)

	fsize := float64(size)
	half := fsize / 2
	div := float64(s.Scale) * fsize
	baseX := float64(coord.X)*fsize + float64(s.Offset.X())
	baseY := float64(coord.Y)*fsize + float64(s.Offset.Y())

	for y := 0; y < size; y++ {
		py := (float64(y) - half + baseY) / div
		for x := 0; x < size; x++ {
			px := (float64(x) - half + baseX) / div
			raw := src.Sample(px, py)
			field.Set(x, y, s.Curve.Apply(float32(raw)))
		}
	}
	return field, nil
}
