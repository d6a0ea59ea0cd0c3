// Package params defines the immutable generation snapshot consumed by the
// terrain pipeline.
package params

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/go-gl/mathgl/mgl32"

	"landmass.dev/internal/sim/terrain/curve"
	"landmass.dev/internal/sim/terrain/erosion"
	"landmass.dev/internal/sim/terrain/heightmap"
	"landmass.dev/internal/sim/terrain/mesh"
	"landmass.dev/internal/sim/terrain/noise"
	"landmass.dev/internal/sim/terrain/regions"
	"landmass.dev/internal/sim/terrain/texture"
)

var (
	ErrInvalid        = errors.New("invalid generation parameters")
	ErrDegenerateGrid = mesh.ErrDegenerateGrid
)

type ErosionMode int

const (
	ErosionNone ErosionMode = iota
	ErosionHydraulic
)

func (m ErosionMode) String() string {
	switch m {
	case ErosionNone:
		return "NONE"
	case ErosionHydraulic:
		return "HYDRAULIC"
	default:
		return fmt.Sprintf("ErosionMode(%d)", int(m))
	}
}

func ParseErosionMode(v string) (ErosionMode, error) {
	switch strings.ToUpper(strings.TrimSpace(v)) {
	case "NONE":
		return ErosionNone, nil
	case "", "HYDRAULIC":
		return ErosionHydraulic, nil
	default:
		return ErosionNone, fmt.Errorf("unknown erosion mode %q", v)
	}
}

type Noise struct {
	Mode   noise.Mode
	Scale  float32
	Offset mgl32.Vec2
	Seed   int64
	FBM    noise.FBM
	Perlin noise.PerlinParams
	Curve  curve.Curve
}

type Erosion struct {
	Mode      ErosionMode
	Hydraulic erosion.Hydraulic
}

type Debug struct {
	RainPaths    bool
	MaxRainPaths int
}

// Parameters is a value snapshot. Copy it with Clone before handing it to
// another goroutine; the Regions slice is the only shared reference.
type Parameters struct {
	ChunkSize        int
	WorldScale       float32
	HeightMultiplier float32

	Noise   Noise
	Erosion Erosion
	Regions regions.List

	MeshMode    mesh.Mode
	TextureMode texture.Mode
	Sampler     texture.Sampler

	Debug Debug
}

func Defaults() Parameters {
	return Parameters{
		ChunkSize:        100,
		WorldScale:       200,
		HeightMultiplier: 0.3,
		Noise: Noise{
			Mode:   noise.Fractal,
			Scale:  0.7,
			FBM:    noise.DefaultFBM(),
			Perlin: noise.DefaultPerlin(),
			Curve:  curve.Default(),
		},
		Erosion: Erosion{
			Mode:      ErosionHydraulic,
			Hydraulic: erosion.DefaultHydraulic(),
		},
		Regions:     regions.Default(),
		MeshMode:    mesh.Smooth,
		TextureMode: texture.Color,
		Sampler:     texture.Nearest,
		Debug:       Debug{MaxRainPaths: erosion.DefaultTraceDroplets},
	}
}

func (p Parameters) Clone() Parameters {
	p.Regions = p.Regions.Clone()
	return p
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

func finite(v float32) bool {
	f := float64(v)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// Validate rejects configurations that would fail or misbehave mid-run.
func (p Parameters) Validate() error {
	if p.ChunkSize < 2 {
		return fmt.Errorf("chunk_size %d: %w", p.ChunkSize, ErrDegenerateGrid)
	}
	if !(p.WorldScale > 0) || !finite(p.WorldScale) {
		return invalid("world_scale must be > 0 (got %v)", p.WorldScale)
	}
	if !finite(p.HeightMultiplier) {
		return invalid("height_multiplier must be finite (got %v)", p.HeightMultiplier)
	}

	if !(p.Noise.Scale > 0) || !finite(p.Noise.Scale) {
		return invalid("noise.scale must be > 0 (got %v)", p.Noise.Scale)
	}
	if !finite(p.Noise.Offset.X()) || !finite(p.Noise.Offset.Y()) {
		return invalid("noise.offset must be finite")
	}
	if err := p.noiseConfig().Validate(); err != nil {
		return invalid("noise: %v", err)
	}
	if err := p.Noise.Curve.Validate(); err != nil {
		return invalid("noise.%v", err)
	}

	switch p.Erosion.Mode {
	case ErosionNone:
	case ErosionHydraulic:
		if err := p.Erosion.Hydraulic.Validate(p.ChunkSize); err != nil {
			return invalid("%v", err)
		}
	default:
		return invalid("erosion.mode: unknown value %d", int(p.Erosion.Mode))
	}

	if err := p.Regions.Validate(); err != nil {
		return invalid("%v", err)
	}
	if p.MeshMode != mesh.Smooth && p.MeshMode != mesh.Flat {
		return invalid("mesh_mode: unknown value %d", int(p.MeshMode))
	}
	if p.TextureMode != texture.Color && p.TextureMode != texture.HeightMap {
		return invalid("texture_mode: unknown value %d", int(p.TextureMode))
	}
	if p.Sampler != texture.Nearest && p.Sampler != texture.Linear {
		return invalid("sampler: unknown value %d", int(p.Sampler))
	}
	if p.Debug.MaxRainPaths < 0 {
		return invalid("debug.max_rain_paths must be >= 0 (got %d)", p.Debug.MaxRainPaths)
	}
	return nil
}

func (p Parameters) noiseConfig() noise.Config {
	return noise.Config{
		Mode:   p.Noise.Mode,
		Seed:   p.Noise.Seed,
		FBM:    p.Noise.FBM,
		Perlin: p.Noise.Perlin,
	}
}

func (p Parameters) Heightmap() heightmap.Settings {
	return heightmap.Settings{
		ChunkSize: p.ChunkSize,
		Noise:     p.noiseConfig(),
		Scale:     p.Noise.Scale,
		Offset:    p.Noise.Offset,
		Curve:     p.Noise.Curve,
	}
}

func (p Parameters) Mesh() mesh.Settings {
	return mesh.Settings{
		Size:             p.ChunkSize,
		WorldScale:       p.WorldScale,
		HeightMultiplier: p.HeightMultiplier,
		Mode:             p.MeshMode,
	}
}

func (p Parameters) Trace() erosion.TraceOptions {
	return erosion.TraceOptions{
		Enabled:          p.Debug.RainPaths,
		MaxDroplets:      p.Debug.MaxRainPaths,
		ChunkSize:        p.ChunkSize,
		WorldScale:       p.WorldScale,
		HeightMultiplier: p.HeightMultiplier,
	}
}

// Digest identifies a parameter set; chunks generated from equal digests are
// interchangeable.
func (p Parameters) Digest() string {
	b, _ := json.Marshal(ToDocument(p))
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
