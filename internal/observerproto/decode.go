package observerproto

import (
	"encoding/base64"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"landmass.dev/internal/sim/encoding"
	"landmass.dev/internal/sim/terrain/chunk"
	"landmass.dev/internal/sim/terrain/heightmap"
	"landmass.dev/internal/sim/terrain/mesh"
	"landmass.dev/internal/sim/terrain/texture"
)

// Decode rebuilds the chunk carried by m and checks it against m.Digest.
func (m ChunkMsg) Decode() (*chunk.Result, error) {
	heights, err := encoding.DecodeFloat32s(m.Heights)
	if err != nil {
		return nil, fmt.Errorf("heights: %w", err)
	}
	if len(heights) != m.FieldSize*m.FieldSize {
		return nil, fmt.Errorf("heights: got %d values for field size %d", len(heights), m.FieldSize)
	}
	pix, err := base64.StdEncoding.DecodeString(m.Texture.Data)
	if err != nil {
		return nil, fmt.Errorf("texture: %w", err)
	}
	if len(pix) != m.Size*m.Size*4 {
		return nil, fmt.Errorf("texture: got %d bytes for size %d", len(pix), m.Size)
	}
	tm, err := texture.ParseMode(m.Texture.Mode)
	if err != nil {
		return nil, err
	}
	sm, err := texture.ParseSampler(m.Texture.Sampler)
	if err != nil {
		return nil, err
	}

	pos, err := decodeVec3s(m.Mesh.Positions, m.Mesh.Vertices)
	if err != nil {
		return nil, fmt.Errorf("positions: %w", err)
	}
	normals, err := decodeVec3s(m.Mesh.Normals, m.Mesh.Vertices)
	if err != nil {
		return nil, fmt.Errorf("normals: %w", err)
	}
	flatUV, err := encoding.DecodeFloat32s(m.Mesh.UVs)
	if err != nil || len(flatUV) != 2*m.Mesh.Vertices {
		return nil, fmt.Errorf("uvs: bad buffer (%v)", err)
	}
	uvs := make([]mgl32.Vec2, m.Mesh.Vertices)
	for i := range uvs {
		uvs[i] = mgl32.Vec2{flatUV[2*i], flatUV[2*i+1]}
	}
	indices, err := encoding.DecodeUint32s(m.Mesh.Indices)
	if err != nil {
		return nil, fmt.Errorf("indices: %w", err)
	}
	regions, err := encoding.DecodeRLE(m.RegionsRLE, m.Size*m.Size)
	if err != nil {
		return nil, fmt.Errorf("regions: %w", err)
	}

	res := &chunk.Result{
		Coord:   chunk.Coord{X: m.CX, Y: m.CZ},
		Field:   &heightmap.Field{Size: m.FieldSize, Data: heights},
		Texture: &texture.Data{Size: m.Size, Mode: tm, Sampler: sm, Pix: pix},
		Mesh:    &mesh.Data{Positions: pos, UVs: uvs, Normals: normals, Indices: indices},
		Regions: regions,
	}
	if got := res.Digest(); got != m.Digest {
		return nil, fmt.Errorf("digest mismatch: payload %s, message %s", got, m.Digest)
	}
	return res, nil
}

func decodeVec3s(b64 string, n int) ([]mgl32.Vec3, error) {
	flat, err := encoding.DecodeFloat32s(b64)
	if err != nil {
		return nil, err
	}
	if len(flat) != 3*n {
		return nil, fmt.Errorf("got %d floats for %d vertices", len(flat), n)
	}
	out := make([]mgl32.Vec3, n)
	for i := range out {
		out[i] = mgl32.Vec3{flat[3*i], flat[3*i+1], flat[3*i+2]}
	}
	return out, nil
}
