package chunk

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

type hashWriter interface {
	Write(p []byte) (n int, err error)
}

// Digest hashes the height field, pixels and mesh buffers in a fixed order.
// Rain paths are debug output and not part of it.
func (r *Result) Digest() string {
	h := sha256.New()
	var tmp [8]byte

	writeU64(h, &tmp, uint64(int64(r.Coord.X)))
	writeU64(h, &tmp, uint64(int64(r.Coord.Y)))

	writeU64(h, &tmp, uint64(r.Field.Size))
	for _, v := range r.Field.Data {
		writeF32(h, &tmp, v)
	}

	if r.Texture != nil {
		writeU64(h, &tmp, uint64(r.Texture.Size))
		h.Write(r.Texture.Pix)
	}

	if r.Mesh != nil {
		writeU64(h, &tmp, uint64(len(r.Mesh.Positions)))
		for _, p := range r.Mesh.Positions {
			writeVec3(h, &tmp, p)
		}
		for _, uv := range r.Mesh.UVs {
			writeF32(h, &tmp, uv[0])
			writeF32(h, &tmp, uv[1])
		}
		for _, n := range r.Mesh.Normals {
			writeVec3(h, &tmp, n)
		}
		writeU64(h, &tmp, uint64(len(r.Mesh.Indices)))
		for _, i := range r.Mesh.Indices {
			binary.LittleEndian.PutUint32(tmp[:4], i)
			h.Write(tmp[:4])
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

func writeU64(h hashWriter, tmp *[8]byte, v uint64) {
	binary.LittleEndian.PutUint64(tmp[:], v)
	h.Write(tmp[:])
}

func writeF32(h hashWriter, tmp *[8]byte, v float32) {
	binary.LittleEndian.PutUint32(tmp[:4], math.Float32bits(v))
	h.Write(tmp[:4])
}

func writeVec3(h hashWriter, tmp *[8]byte, v mgl32.Vec3) {
	writeF32(h, tmp, v[0])
	writeF32(h, tmp, v[1])
	writeF32(h, tmp, v[2])
}
