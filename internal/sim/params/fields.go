package params

// FieldMeta describes one editable parameter for UI clients. Min and Max are
// nil when the field is unbounded; Options lists enum names.
type FieldMeta struct {
	Path    string   `json:"path"`
	Kind    string   `json:"kind"`
	Min     *float64 `json:"min,omitempty"`
	Max     *float64 `json:"max,omitempty"`
	Options []string `json:"options,omitempty"`
	Hint    string   `json:"hint,omitempty"`
}

const (
	KindInt    = "int"
	KindFloat  = "float"
	KindBool   = "bool"
	KindEnum   = "enum"
	KindVec2   = "vec2"
	KindColor  = "color"
	KindString = "string"
)

func f(v float64) *float64 { return &v }

var fields = []FieldMeta{
	{Path: "chunk_size", Kind: KindInt, Min: f(2), Max: f(512), Hint: "cells per chunk edge"},
	{Path: "world_scale", Kind: KindFloat, Min: f(1), Max: f(10000)},
	{Path: "height_multiplier", Kind: KindFloat, Min: f(0), Max: f(10)},

	{Path: "noise.mode", Kind: KindEnum, Options: []string{"FRACTAL", "SIMPLEX", "PERLIN"}},
	{Path: "noise.scale", Kind: KindFloat, Min: f(0.01), Max: f(10)},
	{Path: "noise.offset", Kind: KindVec2},
	{Path: "noise.seed", Kind: KindInt},
	{Path: "noise.octaves", Kind: KindInt, Min: f(1), Max: f(12), Hint: "fractal mode only"},
	{Path: "noise.lacunarity", Kind: KindFloat, Min: f(0.1), Max: f(8)},
	{Path: "noise.gain", Kind: KindFloat, Min: f(0), Max: f(0.99)},
	{Path: "noise.perlin.alpha", Kind: KindFloat, Min: f(0.1), Max: f(8), Hint: "perlin mode only"},
	{Path: "noise.perlin.beta", Kind: KindFloat, Min: f(0.1), Max: f(8)},
	{Path: "noise.perlin.octaves", Kind: KindInt, Min: f(1), Max: f(12)},
	{Path: "noise.curve.shape", Kind: KindEnum, Options: []string{"LINEAR", "SQUARE_IN", "SQUARE_OUT", "CUBIC_IN", "CUBIC_OUT", "CUBIC_IN_OUT"}},
	{Path: "noise.curve.offset", Kind: KindFloat, Min: f(-1), Max: f(1)},
	{Path: "noise.curve.clamp", Kind: KindVec2, Min: f(0), Max: f(1)},
	{Path: "noise.curve.invert", Kind: KindBool},

	{Path: "erosion.mode", Kind: KindEnum, Options: []string{"NONE", "HYDRAULIC"}},
	{Path: "erosion.iterations", Kind: KindInt, Min: f(0), Max: f(500000), Hint: "droplets per chunk"},
	{Path: "erosion.radius", Kind: KindInt, Min: f(1), Max: f(10), Hint: "must stay below chunk_size"},
	{Path: "erosion.inertia", Kind: KindFloat, Min: f(0), Max: f(1)},
	{Path: "erosion.sediment_capacity_factor", Kind: KindFloat, Min: f(0), Max: f(20)},
	{Path: "erosion.min_sediment_capacity", Kind: KindFloat, Min: f(0), Max: f(1)},
	{Path: "erosion.erode_speed", Kind: KindFloat, Min: f(0), Max: f(1)},
	{Path: "erosion.deposit_speed", Kind: KindFloat, Min: f(0), Max: f(1)},
	{Path: "erosion.evaporate_speed", Kind: KindFloat, Min: f(0), Max: f(1)},
	{Path: "erosion.gravity", Kind: KindFloat, Min: f(0), Max: f(20)},
	{Path: "erosion.max_droplet_lifetime", Kind: KindInt, Min: f(1), Max: f(200)},
	{Path: "erosion.initial_water_volume", Kind: KindFloat, Min: f(0), Max: f(10)},
	{Path: "erosion.initial_speed", Kind: KindFloat, Min: f(0), Max: f(10)},
	{Path: "erosion.seed", Kind: KindInt, Min: f(0)},

	{Path: "regions[].name", Kind: KindString},
	{Path: "regions[].color", Kind: KindColor, Hint: "#rrggbb"},
	{Path: "regions[].height", Kind: KindFloat, Min: f(0), Max: f(1), Hint: "first band with height >= value wins"},

	{Path: "mesh_mode", Kind: KindEnum, Options: []string{"SMOOTH", "FLAT"}},
	{Path: "texture_mode", Kind: KindEnum, Options: []string{"COLOR", "HEIGHT_MAP"}},
	{Path: "sampler", Kind: KindEnum, Options: []string{"NEAREST", "LINEAR"}, Hint: "renderer hint"},

	{Path: "debug.rain_paths", Kind: KindBool},
	{Path: "debug.max_rain_paths", Kind: KindInt, Min: f(0), Max: f(1000)},
}

// Fields returns a copy of the editable-parameter table.
func Fields() []FieldMeta {
	out := make([]FieldMeta, len(fields))
	copy(out, fields)
	return out
}
