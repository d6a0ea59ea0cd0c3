// Package regions classifies heights into ordered colour bands.
package regions

import (
	"fmt"
	"image/color"
	"math"
	"strconv"
	"strings"
)

type Region struct {
	Name   string
	Color  color.RGBA
	Height float32
}

// List is scanned in order; bands are only meaningful when Height is
// non-decreasing, which is not enforced.
type List []Region

var Fallback = color.RGBA{A: 255}

func Default() List {
	return List{
		{Name: "Water", Color: rgb(0, 0, 0.5), Height: 0.1},
		{Name: "Sand", Color: rgb(0.9, 0.9, 0.5), Height: 0.2},
		{Name: "Grass", Color: rgb(0, 0.5, 0), Height: 0.4},
		{Name: "Forest", Color: rgb(0, 0.25, 0), Height: 0.6},
		{Name: "Rock", Color: rgb(0.5, 0.5, 0.5), Height: 0.8},
		{Name: "Snow", Color: rgb(1, 1, 1), Height: 1.0},
	}
}

func rgb(r, g, b float32) color.RGBA {
	return color.RGBA{R: uint8(r * 255), G: uint8(g * 255), B: uint8(b * 255), A: 255}
}

// IndexFor returns the index of the first region whose threshold is >= h, or -1.
func (l List) IndexFor(h float32) int {
	for i := range l {
		if h <= l[i].Height {
			return i
		}
	}
	return -1
}

func (l List) ColorFor(h float32) color.RGBA {
	if i := l.IndexFor(h); i >= 0 {
		return l[i].Color
	}
	return Fallback
}

func (l List) Clone() List {
	if l == nil {
		return nil
	}
	out := make(List, len(l))
	copy(out, l)
	return out
}

// Monotonic reports whether thresholds never decrease.
func (l List) Monotonic() bool {
	for i := 1; i < len(l); i++ {
		if l[i].Height < l[i-1].Height {
			return false
		}
	}
	return true
}

func (l List) Validate() error {
	for i, r := range l {
		if math.IsNaN(float64(r.Height)) {
			return fmt.Errorf("regions[%d] (%s): height is NaN", i, r.Name)
		}
	}
	return nil
}

// ParseHexColor accepts "#rrggbb" or "#rrggbbaa".
func ParseHexColor(s string) (color.RGBA, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) != 6 && len(s) != 8 {
		return color.RGBA{}, fmt.Errorf("color %q: want #rrggbb or #rrggbbaa", s)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("color %q: %w", s, err)
	}
	if len(s) == 6 {
		v = v<<8 | 0xff
	}
	return color.RGBA{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}, nil
}

// HexColor omits the alpha byte when the colour is opaque.
func HexColor(c color.RGBA) string {
	if c.A == 0xff {
		return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
	}
	return fmt.Sprintf("#%02x%02x%02x%02x", c.R, c.G, c.B, c.A)
}
