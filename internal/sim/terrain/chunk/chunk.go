// Package chunk runs the full terrain pipeline for one chunk coordinate.
package chunk

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"landmass.dev/internal/sim/params"
	"landmass.dev/internal/sim/terrain/erosion"
	"landmass.dev/internal/sim/terrain/heightmap"
	"landmass.dev/internal/sim/terrain/mesh"
	"landmass.dev/internal/sim/terrain/texture"
)

type Coord = heightmap.Coord

type Result struct {
	Coord   Coord
	Field   *heightmap.Field
	Texture *texture.Data
	Mesh    *mesh.Data
	Erosion erosion.Report

	// Regions holds one region index per texel, len(regions) where no band
	// matched.
	Regions []uint16
}

// Generate is a pure function of (coord, p): equal inputs give byte-identical
// results. It spawns no goroutines; p must not be mutated while it runs.
func Generate(coord Coord, p params.Parameters) (*Result, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	field, err := heightmap.Generate(coord, p.Heightmap())
	if err != nil {
		return nil, fmt.Errorf("chunk %d,%d: %w", coord.X, coord.Y, err)
	}

	res := &Result{Coord: coord, Field: field}
	if p.Erosion.Mode == params.ErosionHydraulic {
		rep, err := p.Erosion.Hydraulic.Erode(field, p.Trace())
		if err != nil {
			return nil, fmt.Errorf("chunk %d,%d: %w", coord.X, coord.Y, err)
		}
		res.Erosion = rep
	}

	res.Texture, err = texture.Encode(field, p.ChunkSize, p.TextureMode, p.Sampler, p.Regions)
	if err != nil {
		return nil, fmt.Errorf("chunk %d,%d: %w", coord.X, coord.Y, err)
	}
	res.Regions = texture.RegionIndices(field, p.ChunkSize, p.Regions)

	res.Mesh, err = mesh.Build(field, p.Mesh())
	if err != nil {
		return nil, fmt.Errorf("chunk %d,%d: %w", coord.X, coord.Y, err)
	}
	return res, nil
}

func (r *Result) RegionMap() []uint16 { return r.Regions }

// RainPaths is nil unless tracing was enabled.
func (r *Result) RainPaths() [][]mgl32.Vec3 { return r.Erosion.RainPaths }
