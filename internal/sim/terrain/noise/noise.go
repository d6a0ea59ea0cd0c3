// Package noise evaluates seeded coherent noise at 2-D positions.
package noise

import (
	"errors"
	"fmt"
	"math"
	"strings"

	perlin "github.com/aquilax/go-perlin"
	"github.com/ojrac/opensimplex-go"

	"landmass.dev/internal/sim/mathx"
)

type Mode int

const (
	Fractal Mode = iota
	Simplex
	Perlin
)

var modeNames = [...]string{
	Fractal: "FRACTAL",
	Simplex: "SIMPLEX",
	Perlin:  "PERLIN",
}

func (m Mode) String() string {
	if m < 0 || int(m) >= len(modeNames) {
		return fmt.Sprintf("Mode(%d)", int(m))
	}
	return modeNames[m]
}

func ParseMode(v string) (Mode, error) {
	v = strings.ToUpper(strings.TrimSpace(v))
	if v == "" {
		return Fractal, nil
	}
	for i, name := range modeNames {
		if name == v {
			return Mode(i), nil
		}
	}
	return Fractal, fmt.Errorf("unknown noise mode %q", v)
}

// FBM configures fractal Brownian motion layered over simplex noise.
type FBM struct {
	Octaves    int
	Lacunarity float64
	Gain       float64
}

func DefaultFBM() FBM {
	return FBM{Octaves: 6, Lacunarity: 4.0, Gain: 0.3}
}

// Bound is the largest magnitude the octave sum can reach when every layer
// returns ±1: the geometric series 1 + |gain| + |gain|² + ...
func (f FBM) Bound() float64 {
	g := math.Abs(f.Gain)
	return (1 - math.Pow(g, float64(f.Octaves))) / (1 - g)
}

var ErrSingularGain = errors.New("fbm gain of 1 has no closed-form bound")

func (f FBM) Validate() error {
	if f.Octaves < 1 {
		return fmt.Errorf("fbm.octaves must be >= 1 (got %d)", f.Octaves)
	}
	if !(f.Lacunarity > 0) || math.IsInf(f.Lacunarity, 0) {
		return fmt.Errorf("fbm.lacunarity must be > 0 (got %v)", f.Lacunarity)
	}
	if math.IsNaN(f.Gain) || math.IsInf(f.Gain, 0) {
		return fmt.Errorf("fbm.gain must be finite (got %v)", f.Gain)
	}
	if math.Abs(f.Gain) == 1 {
		return ErrSingularGain
	}
	return nil
}

type PerlinParams struct {
	Alpha   float64
	Beta    float64
	Octaves int32
}

func DefaultPerlin() PerlinParams {
	return PerlinParams{Alpha: 2, Beta: 2, Octaves: 3}
}

func (p PerlinParams) Validate() error {
	if p.Alpha <= 0 || p.Beta <= 0 {
		return fmt.Errorf("perlin alpha/beta must be > 0 (got %v/%v)", p.Alpha, p.Beta)
	}
	if p.Octaves < 1 {
		return fmt.Errorf("perlin.octaves must be >= 1 (got %d)", p.Octaves)
	}
	return nil
}

// Config selects the variant and its tunables. Only the block matching Mode is read.
type Config struct {
	Mode   Mode
	Seed   int64
	FBM    FBM
	Perlin PerlinParams
}

func (c Config) Validate() error {
	switch c.Mode {
	case Fractal:
		return c.FBM.Validate()
	case Simplex:
		return nil
	case Perlin:
		return c.Perlin.Validate()
	default:
		return fmt.Errorf("noise.mode: unknown value %d", int(c.Mode))
	}
}

// Field samples one configured variant. It is read-only after New and safe
// for concurrent use.
type Field struct {
	mode    Mode
	fbm     FBM
	bound   float64
	simplex opensimplex.Noise
	perlin  *perlin.Perlin
}

func New(cfg Config) (*Field, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	f := &Field{mode: cfg.Mode, fbm: cfg.FBM}
	switch cfg.Mode {
	case Fractal:
		f.simplex = opensimplex.New(cfg.Seed)
		f.bound = cfg.FBM.Bound()
	case Simplex:
		f.simplex = opensimplex.New(cfg.Seed)
	case Perlin:
		f.perlin = perlin.NewPerlin(cfg.Perlin.Alpha, cfg.Perlin.Beta, cfg.Perlin.Octaves, cfg.Seed)
	}
	return f, nil
}

func (f *Field) Mode() Mode { return f.mode }

// Sample returns the noise value at (x, y). Fractal output is in [0,1];
// Simplex and Perlin return the primitive's raw value (roughly [-1,1]).
func (f *Field) Sample(x, y float64) float64 {
	switch f.mode {
	case Simplex:
		return f.simplex.Eval2(x, y)
	case Perlin:
		return f.perlin.Noise2D(x, y)
	default:
		return f.sampleFBM(x, y)
	}
}

func (f *Field) sampleFBM(x, y float64) float64 {
	sum := 0.0
	amp := 1.0
	freq := 1.0
	for i := 0; i < f.fbm.Octaves; i++ {
		sum += f.simplex.Eval2(x*freq, y*freq) * amp
		freq *= f.fbm.Lacunarity
		amp *= f.fbm.Gain
	}
	// The closed-form bound assumes the primitive stays within [-1,1]; clamp
	// covers rounding at the extremes.
	return mathx.Clamp64(mathx.Remap(sum, -f.bound, f.bound, 0, 1), 0, 1)
}
