// Package endless decides which chunks surround a viewer and generates them
// on a worker pool.
package endless

import (
	"math"
	"sort"

	"github.com/go-gl/mathgl/mgl32"

	"landmass.dev/internal/sim/terrain/chunk"
)

const DefaultMaxViewDistance = 500

// Planner works in world units on the XZ plane; a chunk at coord c is
// centred on c*WorldScale and spans WorldScale on each axis.
type Planner struct {
	MaxViewDistance float32
	WorldScale      float32
}

// Radius is the number of chunks loaded on each side of the viewer's chunk.
func (p Planner) Radius() int {
	if !(p.WorldScale > 0) || !(p.MaxViewDistance > 0) {
		return 0
	}
	return int(p.MaxViewDistance / p.WorldScale)
}

// ChunkOf returns the chunk whose span [c*WorldScale-WorldScale/2,
// c*WorldScale+WorldScale/2) holds pos.
func (p Planner) ChunkOf(pos mgl32.Vec2) chunk.Coord {
	return chunk.Coord{
		X: int(math.Floor(float64(pos.X()/p.WorldScale) + 0.5)),
		Y: int(math.Floor(float64(pos.Y()/p.WorldScale) + 0.5)),
	}
}

// ChunksInView lists the square window around the viewer's chunk, nearest
// first.
func (p Planner) ChunksInView(center mgl32.Vec2) []chunk.Coord {
	origin := p.ChunkOf(center)
	r := p.Radius()
	out := make([]chunk.Coord, 0, (2*r+1)*(2*r+1))
	for y := -r; y <= r; y++ {
		for x := -r; x <= r; x++ {
			out = append(out, chunk.Coord{X: origin.X + x, Y: origin.Y + y})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return ringDist(out[i], origin) < ringDist(out[j], origin)
	})
	return out
}

func ringDist(c, origin chunk.Coord) int {
	dx, dy := c.X-origin.X, c.Y-origin.Y
	return dx*dx + dy*dy
}

// Visible reports whether any corner of the chunk lies within
// MaxViewDistance of center.
func (p Planner) Visible(center mgl32.Vec2, c chunk.Coord) bool {
	half := p.WorldScale / 2
	mid := mgl32.Vec2{float32(c.X) * p.WorldScale, float32(c.Y) * p.WorldScale}
	for _, corner := range [4]mgl32.Vec2{{-half, -half}, {half, -half}, {-half, half}, {half, half}} {
		if mid.Add(corner).Sub(center).Len() <= p.MaxViewDistance {
			return true
		}
	}
	return false
}
