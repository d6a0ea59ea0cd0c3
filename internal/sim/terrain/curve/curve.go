package curve

import (
	"fmt"
	"math"
	"strings"
)

// Shape selects the response function applied to a raw noise height.
type Shape int

const (
	Linear Shape = iota
	SquareIn
	SquareOut
	CubicIn
	CubicOut
	CubicInOut
)

var shapeNames = [...]string{
	Linear:     "LINEAR",
	SquareIn:   "SQUARE_IN",
	SquareOut:  "SQUARE_OUT",
	CubicIn:    "CUBIC_IN",
	CubicOut:   "CUBIC_OUT",
	CubicInOut: "CUBIC_IN_OUT",
}

func (s Shape) String() string {
	if s < 0 || int(s) >= len(shapeNames) {
		return fmt.Sprintf("Shape(%d)", int(s))
	}
	return shapeNames[s]
}

func (s Shape) Valid() bool { return s >= Linear && s <= CubicInOut }

func ParseShape(v string) (Shape, error) {
	v = strings.ToUpper(strings.TrimSpace(v))
	if v == "" {
		return Linear, nil
	}
	for i, name := range shapeNames {
		if name == v {
			return Shape(i), nil
		}
	}
	return Linear, fmt.Errorf("unknown curve shape %q", v)
}

// Curve reshapes a height value. Apply runs shape, then offset, then clamp,
// then invert; the order is fixed.
type Curve struct {
	Shape  Shape
	Offset float32
	// Clamp bounds; either order is accepted.
	ClampA float32
	ClampB float32
	Invert bool
}

func Default() Curve {
	return Curve{Shape: Linear, ClampA: 0, ClampB: 1}
}

func (c Curve) Bounds() (lo, hi float32) {
	lo, hi = c.ClampA, c.ClampB
	if lo > hi {
		lo, hi = hi, lo
	}
	return lo, hi
}

func (c Curve) Apply(h float32) float32 {
	x := c.shape(h) + c.Offset

	lo, hi := c.Bounds()
	if x < lo {
		x = lo
	} else if x > hi {
		x = hi
	}
	// NaN compares false against both bounds.
	if x != x {
		x = lo
	}

	if c.Invert {
		return 1 - x
	}
	return x
}

func (c Curve) shape(h float32) float32 {
	switch c.Shape {
	case SquareIn:
		return h * h
	case SquareOut:
		return 1 - (1-h)*(1-h)
	case CubicIn:
		return h * h * h
	case CubicOut:
		return 1 - pow3(1-h)
	case CubicInOut:
		if h < 0.5 {
			return 4 * h * h * h
		}
		return 1 - pow3(-2*h+2)/2
	default:
		return h
	}
}

func pow3(v float32) float32 { return v * v * v }

func (c Curve) Validate() error {
	if !c.Shape.Valid() {
		return fmt.Errorf("curve.shape: unknown value %d", int(c.Shape))
	}
	for _, v := range []float32{c.Offset, c.ClampA, c.ClampB} {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return fmt.Errorf("curve: non-finite value %v", v)
		}
	}
	return nil
}
