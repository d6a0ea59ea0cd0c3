package params

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"landmass.dev/internal/sim/terrain/curve"
	"landmass.dev/internal/sim/terrain/mesh"
	"landmass.dev/internal/sim/terrain/noise"
	"landmass.dev/internal/sim/terrain/regions"
	"landmass.dev/internal/sim/terrain/texture"
)

// Document is the serialized form of Parameters: enums as names and colours
// as hex strings. It is shared by the YAML config loader and the JSON
// bootstrap endpoint.
type Document struct {
	ChunkSize        int     `yaml:"chunk_size" json:"chunk_size"`
	WorldScale       float32 `yaml:"world_scale" json:"world_scale"`
	HeightMultiplier float32 `yaml:"height_multiplier" json:"height_multiplier"`

	Noise   NoiseDocument    `yaml:"noise" json:"noise"`
	Erosion ErosionDocument  `yaml:"erosion" json:"erosion"`
	Regions []RegionDocument `yaml:"regions" json:"regions"`

	MeshMode    string `yaml:"mesh_mode" json:"mesh_mode"`
	TextureMode string `yaml:"texture_mode" json:"texture_mode"`
	Sampler     string `yaml:"sampler" json:"sampler"`

	Debug DebugDocument `yaml:"debug" json:"debug"`
}

type NoiseDocument struct {
	Mode       string     `yaml:"mode" json:"mode"`
	Scale      float32    `yaml:"scale" json:"scale"`
	Offset     [2]float32 `yaml:"offset,flow" json:"offset"`
	Seed       int64      `yaml:"seed" json:"seed"`
	Octaves    int        `yaml:"octaves" json:"octaves"`
	Lacunarity float64    `yaml:"lacunarity" json:"lacunarity"`
	Gain       float64    `yaml:"gain" json:"gain"`

	Perlin PerlinDocument `yaml:"perlin" json:"perlin"`
	Curve  CurveDocument  `yaml:"curve" json:"curve"`
}

type PerlinDocument struct {
	Alpha   float64 `yaml:"alpha" json:"alpha"`
	Beta    float64 `yaml:"beta" json:"beta"`
	Octaves int32   `yaml:"octaves" json:"octaves"`
}

type CurveDocument struct {
	Shape  string     `yaml:"shape" json:"shape"`
	Offset float32    `yaml:"offset" json:"offset"`
	Clamp  [2]float32 `yaml:"clamp,flow" json:"clamp"`
	Invert bool       `yaml:"invert" json:"invert"`
}

type ErosionDocument struct {
	Mode                   string  `yaml:"mode" json:"mode"`
	Iterations             int     `yaml:"iterations" json:"iterations"`
	Radius                 int     `yaml:"radius" json:"radius"`
	Inertia                float32 `yaml:"inertia" json:"inertia"`
	SedimentCapacityFactor float32 `yaml:"sediment_capacity_factor" json:"sediment_capacity_factor"`
	MinSedimentCapacity    float32 `yaml:"min_sediment_capacity" json:"min_sediment_capacity"`
	ErodeSpeed             float32 `yaml:"erode_speed" json:"erode_speed"`
	DepositSpeed           float32 `yaml:"deposit_speed" json:"deposit_speed"`
	EvaporateSpeed         float32 `yaml:"evaporate_speed" json:"evaporate_speed"`
	Gravity                float32 `yaml:"gravity" json:"gravity"`
	MaxDropletLifetime     int     `yaml:"max_droplet_lifetime" json:"max_droplet_lifetime"`
	InitialWaterVolume     float32 `yaml:"initial_water_volume" json:"initial_water_volume"`
	InitialSpeed           float32 `yaml:"initial_speed" json:"initial_speed"`
	Seed                   uint64  `yaml:"seed" json:"seed"`
}

type RegionDocument struct {
	Name   string  `yaml:"name" json:"name"`
	Color  string  `yaml:"color" json:"color"`
	Height float32 `yaml:"height" json:"height"`
}

type DebugDocument struct {
	RainPaths    bool `yaml:"rain_paths" json:"rain_paths"`
	MaxRainPaths int  `yaml:"max_rain_paths" json:"max_rain_paths"`
}

func ToDocument(p Parameters) Document {
	lo, hi := p.Noise.Curve.ClampA, p.Noise.Curve.ClampB
	h := p.Erosion.Hydraulic
	d := Document{
		ChunkSize:        p.ChunkSize,
		WorldScale:       p.WorldScale,
		HeightMultiplier: p.HeightMultiplier,
		Noise: NoiseDocument{
			Mode:       p.Noise.Mode.String(),
			Scale:      p.Noise.Scale,
			Offset:     [2]float32{p.Noise.Offset.X(), p.Noise.Offset.Y()},
			Seed:       p.Noise.Seed,
			Octaves:    p.Noise.FBM.Octaves,
			Lacunarity: p.Noise.FBM.Lacunarity,
			Gain:       p.Noise.FBM.Gain,
			Perlin: PerlinDocument{
				Alpha:   p.Noise.Perlin.Alpha,
				Beta:    p.Noise.Perlin.Beta,
				Octaves: p.Noise.Perlin.Octaves,
			},
			Curve: CurveDocument{
				Shape:  p.Noise.Curve.Shape.String(),
				Offset: p.Noise.Curve.Offset,
				Clamp:  [2]float32{lo, hi},
				Invert: p.Noise.Curve.Invert,
			},
		},
		Erosion: ErosionDocument{
			Mode:                   p.Erosion.Mode.String(),
			Iterations:             h.Iterations,
			Radius:                 h.Radius,
			Inertia:                h.Inertia,
			SedimentCapacityFactor: h.SedimentCapacityFactor,
			MinSedimentCapacity:    h.MinSedimentCapacity,
			ErodeSpeed:             h.ErodeSpeed,
			DepositSpeed:           h.DepositSpeed,
			EvaporateSpeed:         h.EvaporateSpeed,
			Gravity:                h.Gravity,
			MaxDropletLifetime:     h.MaxDropletLifetime,
			InitialWaterVolume:     h.InitialWaterVolume,
			InitialSpeed:           h.InitialSpeed,
			Seed:                   h.Seed,
		},
		MeshMode:    p.MeshMode.String(),
		TextureMode: p.TextureMode.String(),
		Sampler:     p.Sampler.String(),
		Debug: DebugDocument{
			RainPaths:    p.Debug.RainPaths,
			MaxRainPaths: p.Debug.MaxRainPaths,
		},
	}
	d.Regions = make([]RegionDocument, 0, len(p.Regions))
	for _, r := range p.Regions {
		d.Regions = append(d.Regions, RegionDocument{Name: r.Name, Color: regions.HexColor(r.Color), Height: r.Height})
	}
	return d
}

// Parameters converts the document back. Enum names and colours are parsed
// here; range checks are left to Parameters.Validate.
// ErrMalformed reports an overlay that is not a JSON parameter document.
var ErrMalformed = errors.New("malformed parameter document")

// Overlay applies the JSON document raw on top of base and validates the
// result. Keys absent from raw keep their value from base; unknown keys are
// rejected.
func Overlay(base Parameters, raw []byte) (Parameters, error) {
	doc := ToDocument(base)
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		return Parameters{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	p, err := doc.Parameters()
	if err != nil {
		return Parameters{}, err
	}
	if err := p.Validate(); err != nil {
		return Parameters{}, err
	}
	return p, nil
}

func (d Document) Parameters() (Parameters, error) {
	var p Parameters
	var err error

	p.ChunkSize = d.ChunkSize
	p.WorldScale = d.WorldScale
	p.HeightMultiplier = d.HeightMultiplier

	if p.Noise.Mode, err = noise.ParseMode(d.Noise.Mode); err != nil {
		return Parameters{}, fmt.Errorf("%w: noise.mode: %v", ErrInvalid, err)
	}
	p.Noise.Scale = d.Noise.Scale
	p.Noise.Offset = mgl32.Vec2{d.Noise.Offset[0], d.Noise.Offset[1]}
	p.Noise.Seed = d.Noise.Seed
	p.Noise.FBM = noise.FBM{Octaves: d.Noise.Octaves, Lacunarity: d.Noise.Lacunarity, Gain: d.Noise.Gain}
	p.Noise.Perlin = noise.PerlinParams{Alpha: d.Noise.Perlin.Alpha, Beta: d.Noise.Perlin.Beta, Octaves: d.Noise.Perlin.Octaves}

	shape, err := curve.ParseShape(d.Noise.Curve.Shape)
	if err != nil {
		return Parameters{}, fmt.Errorf("%w: noise.curve.shape: %v", ErrInvalid, err)
	}
	p.Noise.Curve = curve.Curve{
		Shape:  shape,
		Offset: d.Noise.Curve.Offset,
		ClampA: d.Noise.Curve.Clamp[0],
		ClampB: d.Noise.Curve.Clamp[1],
		Invert: d.Noise.Curve.Invert,
	}

	if p.Erosion.Mode, err = ParseErosionMode(d.Erosion.Mode); err != nil {
		return Parameters{}, fmt.Errorf("%w: erosion.mode: %v", ErrInvalid, err)
	}
	e := d.Erosion
	p.Erosion.Hydraulic.Iterations = e.Iterations
	p.Erosion.Hydraulic.Radius = e.Radius
	p.Erosion.Hydraulic.Inertia = e.Inertia
	p.Erosion.Hydraulic.SedimentCapacityFactor = e.SedimentCapacityFactor
	p.Erosion.Hydraulic.MinSedimentCapacity = e.MinSedimentCapacity
	p.Erosion.Hydraulic.ErodeSpeed = e.ErodeSpeed
	p.Erosion.Hydraulic.DepositSpeed = e.DepositSpeed
	p.Erosion.Hydraulic.EvaporateSpeed = e.EvaporateSpeed
	p.Erosion.Hydraulic.Gravity = e.Gravity
	p.Erosion.Hydraulic.MaxDropletLifetime = e.MaxDropletLifetime
	p.Erosion.Hydraulic.InitialWaterVolume = e.InitialWaterVolume
	p.Erosion.Hydraulic.InitialSpeed = e.InitialSpeed
	p.Erosion.Hydraulic.Seed = e.Seed

	p.Regions = make(regions.List, 0, len(d.Regions))
	for i, r := range d.Regions {
		c, err := regions.ParseHexColor(r.Color)
		if err != nil {
			return Parameters{}, fmt.Errorf("%w: regions[%d].color: %v", ErrInvalid, i, err)
		}
		p.Regions = append(p.Regions, regions.Region{Name: r.Name, Color: c, Height: r.Height})
	}

	if p.MeshMode, err = mesh.ParseMode(d.MeshMode); err != nil {
		return Parameters{}, fmt.Errorf("%w: mesh_mode: %v", ErrInvalid, err)
	}
	if p.TextureMode, err = texture.ParseMode(d.TextureMode); err != nil {
		return Parameters{}, fmt.Errorf("%w: texture_mode: %v", ErrInvalid, err)
	}
	if p.Sampler, err = texture.ParseSampler(d.Sampler); err != nil {
		return Parameters{}, fmt.Errorf("%w: sampler: %v", ErrInvalid, err)
	}
	p.Debug = Debug{RainPaths: d.Debug.RainPaths, MaxRainPaths: d.Debug.MaxRainPaths}
	return p, nil
}
