// Package mesh tessellates a height field into a triangle grid.
package mesh

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-gl/mathgl/mgl32"

	"landmass.dev/internal/sim/terrain/heightmap"
)

var ErrDegenerateGrid = errors.New("grid too small to form a triangle")

type Mode int

const (
	Smooth Mode = iota
	Flat
)

func (m Mode) String() string {
	switch m {
	case Smooth:
		return "SMOOTH"
	case Flat:
		return "FLAT"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

func ParseMode(v string) (Mode, error) {
	switch strings.ToUpper(strings.TrimSpace(v)) {
	case "", "SMOOTH":
		return Smooth, nil
	case "FLAT":
		return Flat, nil
	default:
		return Smooth, fmt.Errorf("unknown mesh mode %q", v)
	}
}

type Settings struct {
	// Size is the vertex grid edge; it may be smaller than the field.
	Size             int
	WorldScale       float32
	HeightMultiplier float32
	Mode             Mode
}

// Data is a triangle list. In Smooth mode there are Size*Size shared
// vertices; in Flat mode every triangle owns its three vertices and Indices
// is simply 0..n-1.
type Data struct {
	Positions []mgl32.Vec3
	UVs       []mgl32.Vec2
	Normals   []mgl32.Vec3
	Indices   []uint32
}

func (d *Data) VertexCount() int { return len(d.Positions) }

func Build(f *heightmap.Field, s Settings) (*Data, error) {
	size := s.Size
	if size < 2 {
		return nil, fmt.Errorf("mesh: size %d: %w", size, ErrDegenerateGrid)
	}
	if f.Size < size {
		return nil, fmt.Errorf("mesh: field size %d smaller than mesh size %d", f.Size, size)
	}

	numVerts := size * size
	numIdx := (size - 1) * (size - 1) * 6
	positions := make([]mgl32.Vec3, 0, numVerts)
	uvs := make([]mgl32.Vec2, 0, numVerts)
	indices := make([]uint32, 0, numIdx)

	fsize := float32(size)
	half := fsize / 2
	xyScale := s.WorldScale / fsize
	yScale := s.HeightMultiplier * s.WorldScale

	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			positions = append(positions, mgl32.Vec3{
				(float32(x) - half) * xyScale,
				f.At(x, y) * yScale,
				(float32(y) - half) * xyScale,
			})
			uvs = append(uvs, mgl32.Vec2{float32(x) / fsize, float32(y) / fsize})

			if x < size-1 && y < size-1 {
				i := uint32(y*size + x)
				a := i
				b := i + uint32(size)
				c := i + uint32(size) + 1
				d := i + 1
				indices = append(indices, a, b, c, c, d, a)
			}
		}
	}

	out := &Data{Positions: positions, UVs: uvs, Indices: indices}
	switch s.Mode {
	case Flat:
		out.flatten()
	default:
		out.Normals = smoothNormals(positions, size)
	}
	return out, nil
}

// smoothNormals uses the right and next-row neighbours. The last row and
// column have no such neighbours and get +Y, an approximation that is
// visible only at chunk edges.
func smoothNormals(positions []mgl32.Vec3, size int) []mgl32.Vec3 {
	up := mgl32.Vec3{0, 1, 0}
	normals := make([]mgl32.Vec3, 0, len(positions))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			if x == size-1 || y == size-1 {
				normals = append(normals, up)
				continue
			}
			p := positions[y*size+x]
			right := positions[y*size+x+1].Sub(p)
			next := positions[(y+1)*size+x].Sub(p)
			normals = append(normals, safeNormalize(next.Cross(right), up))
		}
	}
	return normals
}

// flatten gives every triangle its own vertices and face normal.
func (d *Data) flatten() {
	n := len(d.Indices)
	positions := make([]mgl32.Vec3, n)
	uvs := make([]mgl32.Vec2, n)
	normals := make([]mgl32.Vec3, n)
	indices := make([]uint32, n)
	up := mgl32.Vec3{0, 1, 0}

	for t := 0; t+2 < n; t += 3 {
		ia, ib, ic := d.Indices[t], d.Indices[t+1], d.Indices[t+2]
		a, b, c := d.Positions[ia], d.Positions[ib], d.Positions[ic]
		normal := safeNormalize(b.Sub(a).Cross(c.Sub(a)), up)
		for k, src := range [3]uint32{ia, ib, ic} {
			j := t + k
			positions[j] = d.Positions[src]
			uvs[j] = d.UVs[src]
			normals[j] = normal
			indices[j] = uint32(j)
		}
	}
	d.Positions = positions
	d.UVs = uvs
	d.Normals = normals
	d.Indices = indices
}

func safeNormalize(v, fallback mgl32.Vec3) mgl32.Vec3 {
	if v.Len() == 0 {
		return fallback
	}
	return v.Normalize()
}
