package endless

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"landmass.dev/internal/sim/terrain/chunk"
)

func TestPlannerChunkOfCentred(t *testing.T) {
	p := Planner{MaxViewDistance: 500, WorldScale: 200}
	cases := []struct {
		pos  mgl32.Vec2
		want chunk.Coord
	}{
		{mgl32.Vec2{0, 0}, chunk.Coord{}},
		{mgl32.Vec2{99, -99}, chunk.Coord{}},
		{mgl32.Vec2{100, -100}, chunk.Coord{X: 1, Y: 0}},
		{mgl32.Vec2{-101, 0}, chunk.Coord{X: -1, Y: 0}},
		{mgl32.Vec2{120, 399}, chunk.Coord{X: 1, Y: 2}},
		{mgl32.Vec2{-301, -299}, chunk.Coord{X: -2, Y: -1}},
	}
	for _, tc := range cases {
		if got := p.ChunkOf(tc.pos); got != tc.want {
			t.Fatalf("ChunkOf(%v)=%v want %v", tc.pos, got, tc.want)
		}
	}
	// A point 0.6 chunks out belongs to the neighbour, whose centre is closer.
	if got := p.ChunkOf(mgl32.Vec2{0.6 * 200, 0}); got != (chunk.Coord{X: 1}) {
		t.Fatalf("ChunkOf(120,0)=%v", got)
	}
}

func TestPlannerChunksInView(t *testing.T) {
	p := Planner{MaxViewDistance: DefaultMaxViewDistance, WorldScale: 200}
	if p.Radius() != 2 {
		t.Fatalf("radius=%d", p.Radius())
	}
	coords := p.ChunksInView(mgl32.Vec2{450, -10})
	if len(coords) != 25 {
		t.Fatalf("len=%d", len(coords))
	}
	if coords[0] != (chunk.Coord{X: 2, Y: 0}) {
		t.Fatalf("nearest=%v", coords[0])
	}
	seen := map[chunk.Coord]bool{}
	for _, c := range coords {
		if seen[c] {
			t.Fatalf("duplicate %v", c)
		}
		seen[c] = true
		if c.X < 0 || c.X > 4 || c.Y < -2 || c.Y > 2 {
			t.Fatalf("out of window: %v", c)
		}
	}
}

func TestPlannerZeroScale(t *testing.T) {
	p := Planner{MaxViewDistance: 500}
	if p.Radius() != 0 {
		t.Fatalf("radius=%d", p.Radius())
	}
}

func TestPlannerVisible(t *testing.T) {
	p := Planner{MaxViewDistance: 150, WorldScale: 200}
	if !p.Visible(mgl32.Vec2{0, 0}, chunk.Coord{}) {
		t.Fatalf("own chunk not visible")
	}
	// Nearest corner of (1,0) is at (100,-100): ~141 away.
	if !p.Visible(mgl32.Vec2{0, 0}, chunk.Coord{X: 1}) {
		t.Fatalf("adjacent chunk not visible")
	}
	// Nearest corner of (2,0) is at (300,-100).
	if p.Visible(mgl32.Vec2{0, 0}, chunk.Coord{X: 2}) {
		t.Fatalf("distant chunk visible")
	}
}
