package heightmap

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"landmass.dev/internal/sim/terrain/curve"
	"landmass.dev/internal/sim/terrain/noise"
)

func testSettings() Settings {
	return Settings{
		ChunkSize: 16,
		Noise:     noise.Config{Mode: noise.Fractal, Seed: 3, FBM: noise.DefaultFBM()},
		Scale:     0.7,
		Curve:     curve.Default(),
	}
}

func TestGenerateShape(t *testing.T) {
	f, err := Generate(Coord{}, testSettings())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if f.Size != 17 || len(f.Data) != 17*17 {
		t.Fatalf("unexpected field shape size=%d len=%d", f.Size, len(f.Data))
	}
	for i, v := range f.Data {
		if v < 0 || v > 1 {
			t.Fatalf("sample %d=%v outside default clamp", i, v)
		}
	}
}

func TestGenerateDeterministic(t *testing.T) {
	a, err := Generate(Coord{X: 2, Y: -1}, testSettings())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	b, _ := Generate(Coord{X: 2, Y: -1}, testSettings())
	if a.Digest() != b.Digest() {
		t.Fatalf("same inputs produced different fields")
	}
}

func TestNeighbouringChunksDiffer(t *testing.T) {
	s := testSettings()
	a, _ := Generate(Coord{X: 0, Y: 0}, s)
	for _, c := range []Coord{{X: 1, Y: 0}, {X: 0, Y: 1}, {X: -1, Y: 0}, {X: 0, Y: -1}} {
		b, err := Generate(c, s)
		if err != nil {
			t.Fatalf("Generate(%v): %v", c, err)
		}
		if a.Digest() == b.Digest() {
			t.Fatalf("chunk %v aliases chunk {0 0}", c)
		}
	}
}

func TestOffsetShiftsSamplePosition(t *testing.T) {
	s := testSettings()
	a, _ := Generate(Coord{}, s)
	s.Offset = mgl32.Vec2{0.5, 0}
	b, _ := Generate(Coord{}, s)
	if a.Digest() == b.Digest() {
		t.Fatalf("fractional offset did not change the field")
	}
}

func TestGenerateRejectsNonPositiveScale(t *testing.T) {
	s := testSettings()
	s.Scale = 0
	if _, err := Generate(Coord{}, s); err == nil {
		t.Fatalf("expected error for zero scale")
	}
}

func TestFieldSumAndClone(t *testing.T) {
	f := NewField(3)
	f.Set(1, 2, 0.5)
	f.Add(1, 2, 0.25)
	c := f.Clone()
	c.Set(0, 0, 9)
	if f.At(0, 0) != 0 {
		t.Fatalf("clone shares storage")
	}
	if f.Sum() != 0.75 || f.Data[1+2*3] != 0.75 {
		t.Fatalf("unexpected sum %v", f.Sum())
	}
}
