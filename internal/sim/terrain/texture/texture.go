// Package texture encodes a height field into an RGBA8 pixel buffer.
package texture

import (
	"fmt"
	"image"
	"strings"

	"landmass.dev/internal/sim/mathx"
	"landmass.dev/internal/sim/terrain/heightmap"
	"landmass.dev/internal/sim/terrain/regions"
)

type Mode int

const (
	Color Mode = iota
	HeightMap
)

func (m Mode) String() string {
	switch m {
	case Color:
		return "COLOR"
	case HeightMap:
		return "HEIGHT_MAP"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

func ParseMode(v string) (Mode, error) {
	switch strings.ToUpper(strings.TrimSpace(v)) {
	case "", "COLOR":
		return Color, nil
	case "HEIGHT_MAP", "HEIGHTMAP":
		return HeightMap, nil
	default:
		return Color, fmt.Errorf("unknown texture mode %q", v)
	}
}

// Sampler is a hint for the renderer; it does not change the pixels.
type Sampler int

const (
	Nearest Sampler = iota
	Linear
)

func (s Sampler) String() string {
	switch s {
	case Nearest:
		return "NEAREST"
	case Linear:
		return "LINEAR"
	default:
		return fmt.Sprintf("Sampler(%d)", int(s))
	}
}

func ParseSampler(v string) (Sampler, error) {
	switch strings.ToUpper(strings.TrimSpace(v)) {
	case "", "NEAREST":
		return Nearest, nil
	case "LINEAR":
		return Linear, nil
	default:
		return Nearest, fmt.Errorf("unknown sampler %q", v)
	}
}

// Data is a Size x Size RGBA8 buffer, row-major, alpha always 255.
type Data struct {
	Size    int
	Mode    Mode
	Sampler Sampler
	Pix     []uint8
}

func (d *Data) Image() *image.RGBA {
	return &image.RGBA{
		Pix:    d.Pix,
		Stride: d.Size * 4,
		Rect:   image.Rect(0, 0, d.Size, d.Size),
	}
}

// Encode covers the top-left size x size cells of f.
func Encode(f *heightmap.Field, size int, mode Mode, sampler Sampler, regs regions.List) (*Data, error) {
	if size < 1 || f.Size < size {
		return nil, fmt.Errorf("texture: size %d does not fit field of size %d", size, f.Size)
	}
	d := &Data{Size: size, Mode: mode, Sampler: sampler, Pix: make([]uint8, size*size*4)}
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			h := f.At(x, y)
			j := (y*size + x) * 4
			switch mode {
			case HeightMap:
				v := uint8(mathx.Clamp32(h, 0, 1) * 255)
				d.Pix[j] = v
				d.Pix[j+1] = v
				d.Pix[j+2] = v
			default:
				c := regs.ColorFor(h)
				d.Pix[j] = c.R
				d.Pix[j+1] = c.G
				d.Pix[j+2] = c.B
			}
			d.Pix[j+3] = 255
		}
	}
	return d, nil
}

// RegionIndices classifies each texel; cells above every band get the
// len(regs) sentinel so ids stay unsigned.
func RegionIndices(f *heightmap.Field, size int, regs regions.List) []uint16 {
	out := make([]uint16, 0, size*size)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			i := regs.IndexFor(f.At(x, y))
			if i < 0 {
				i = len(regs)
			}
			out = append(out, uint16(i))
		}
	}
	return out
}
