package curve

import (
	"math"
	"testing"
)

func TestApplyStaysInsideClampRange(t *testing.T) {
	shapes := []Shape{Linear, SquareIn, SquareOut, CubicIn, CubicOut, CubicInOut}
	clamps := [][2]float32{{0, 1}, {1, 0}, {0.2, 0.7}, {-0.5, 0.5}}
	inputs := []float32{-10, -1, -0.25, 0, 0.1, 0.5, 0.75, 1, 1.5, 10, float32(math.Inf(1)), float32(math.Inf(-1))}

	for _, s := range shapes {
		for _, cl := range clamps {
			for _, off := range []float32{-1, 0, 0.3} {
				c := Curve{Shape: s, Offset: off, ClampA: cl[0], ClampB: cl[1]}
				lo, hi := c.Bounds()
				for _, in := range inputs {
					got := c.Apply(in)
					if got < lo || got > hi || got != got {
						t.Fatalf("%s offset=%v clamp=%v: Apply(%v)=%v outside [%v,%v]", s, off, cl, in, got, lo, hi)
					}
				}
			}
		}
	}
}

func TestApplyOrderShapeThenOffset(t *testing.T) {
	c := Curve{Shape: SquareIn, Offset: 0.5, ClampA: -10, ClampB: 10}
	// shape(0.5)=0.25, then +0.5
	if got := c.Apply(0.5); got != 0.75 {
		t.Fatalf("Apply(0.5)=%v want 0.75", got)
	}
}

func TestApplyInvertAfterClamp(t *testing.T) {
	c := Curve{Shape: Linear, ClampA: 0, ClampB: 1, Invert: true}
	if got := c.Apply(2); got != 0 {
		t.Fatalf("Apply(2)=%v want 0", got)
	}
	if got := c.Apply(0.25); got != 0.75 {
		t.Fatalf("Apply(0.25)=%v want 0.75", got)
	}
}

func TestCubicInOutPiecewise(t *testing.T) {
	c := Curve{Shape: CubicInOut, ClampA: 0, ClampB: 1}
	if got := c.Apply(0.25); math.Abs(float64(got)-0.0625) > 1e-6 {
		t.Fatalf("Apply(0.25)=%v want 0.0625", got)
	}
	if got := c.Apply(0.5); math.Abs(float64(got)-0.5) > 1e-6 {
		t.Fatalf("Apply(0.5)=%v want 0.5", got)
	}
	if got := c.Apply(0.75); math.Abs(float64(got)-0.9375) > 1e-6 {
		t.Fatalf("Apply(0.75)=%v want 0.9375", got)
	}
}

func TestParseShape(t *testing.T) {
	s, err := ParseShape("cubic_in_out")
	if err != nil || s != CubicInOut {
		t.Fatalf("ParseShape: got %v,%v", s, err)
	}
	if _, err := ParseShape("wobble"); err == nil {
		t.Fatalf("expected error for unknown shape")
	}
}
