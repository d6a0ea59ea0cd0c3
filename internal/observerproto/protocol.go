package observerproto

import (
	"github.com/go-gl/mathgl/mgl32"

	"landmass.dev/internal/sim/encoding"
	"landmass.dev/internal/sim/params"
	"landmass.dev/internal/sim/terrain/chunk"
)

// Version is the viewer protocol version.
const Version = "1.0"

const (
	TypeSubscribe = "SUBSCRIBE"
	TypeChunk     = "CHUNK"
	TypeEvict     = "EVICT"
	TypeParams    = "PARAMS"
	TypeError     = "ERROR"
)

// Buffer encodings.
const (
	EncodingF32LE = "F32LE"
	EncodingU32LE = "U32LE"
	EncodingRGBA8 = "RGBA8"
	EncodingRLE   = "RLE_UVARINT"
)

// Client -> Server. First message on the WS connection; may be re-sent to
// move the viewer or change its view distance.
type SubscribeMsg struct {
	Type            string     `json:"type"`
	ProtocolVersion string     `json:"protocol_version"`
	Center          [2]float32 `json:"center"`
	ViewDistance    float32    `json:"view_distance"`
	MaxChunks       int        `json:"max_chunks"`
}

// HTTP response for GET /v1/bootstrap.
type BootstrapResponse struct {
	ProtocolVersion string             `json:"protocol_version"`
	ParamsVersion   uint64             `json:"params_version"`
	ParamsDigest    string             `json:"params_digest"`
	Params          params.Document    `json:"params"`
	Fields          []params.FieldMeta `json:"fields"`
	MaxViewDistance float32            `json:"max_view_distance"`
}

// Server -> Client. Sent after the active parameters change; every chunk
// the client holds is stale from then on.
type ParamsMsg struct {
	Type            string          `json:"type"`
	ProtocolVersion string          `json:"protocol_version"`
	ParamsVersion   uint64          `json:"params_version"`
	ParamsDigest    string          `json:"params_digest"`
	Params          params.Document `json:"params"`
}

// Server -> Client. One generated chunk. Buffers are base64; see the
// Encoding constants.
type ChunkMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	CX              int    `json:"cx"`
	CZ              int    `json:"cz"`
	Version         uint64 `json:"version"`
	Digest          string `json:"digest"`
	Size            int    `json:"size"`
	FieldSize       int    `json:"field_size"`

	Heights    string         `json:"heights"`
	Texture    TextureMsg     `json:"texture"`
	Mesh       MeshMsg        `json:"mesh"`
	RegionsRLE string         `json:"regions_rle"`
	RainPaths  [][][3]float32 `json:"rain_paths,omitempty"`
	Cached     bool           `json:"cached,omitempty"`
}

type TextureMsg struct {
	Mode     string `json:"mode"`
	Sampler  string `json:"sampler"`
	Encoding string `json:"encoding"`
	Data     string `json:"data"`
}

type MeshMsg struct {
	Mode      string `json:"mode"`
	Vertices  int    `json:"vertices"`
	Positions string `json:"positions"`
	UVs       string `json:"uvs"`
	Normals   string `json:"normals"`
	Indices   string `json:"indices"`
}

// Server -> Client. Drop a chunk that left the view.
type ChunkEvictMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	CX              int    `json:"cx"`
	CZ              int    `json:"cz"`
}

type ErrorMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Code            string `json:"code"`
	Message         string `json:"message"`
	CX              *int   `json:"cx,omitempty"`
	CZ              *int   `json:"cz,omitempty"`
}

func NewChunkMsg(res *chunk.Result, version uint64, meshMode string) ChunkMsg {
	m := ChunkMsg{
		Type:            TypeChunk,
		ProtocolVersion: Version,
		CX:              res.Coord.X,
		CZ:              res.Coord.Y,
		Version:         version,
		Digest:          res.Digest(),
		Size:            res.Texture.Size,
		FieldSize:       res.Field.Size,
		Heights:         encoding.Float32s(res.Field.Data),
		Texture: TextureMsg{
			Mode:     res.Texture.Mode.String(),
			Sampler:  res.Texture.Sampler.String(),
			Encoding: EncodingRGBA8,
			Data:     encoding.Bytes(res.Texture.Pix),
		},
		Mesh: MeshMsg{
			Mode:      meshMode,
			Vertices:  len(res.Mesh.Positions),
			Positions: encoding.Float32s(flattenVec3(res.Mesh.Positions)),
			UVs:       encoding.Float32s(flattenVec2(res.Mesh.UVs)),
			Normals:   encoding.Float32s(flattenVec3(res.Mesh.Normals)),
			Indices:   encoding.Uint32s(res.Mesh.Indices),
		},
		RegionsRLE: encoding.EncodeRLE(res.Regions),
	}
	for _, path := range res.RainPaths() {
		pts := make([][3]float32, len(path))
		for i, p := range path {
			pts[i] = [3]float32(p)
		}
		m.RainPaths = append(m.RainPaths, pts)
	}
	return m
}

func NewErrorMsg(code, message string) ErrorMsg {
	return ErrorMsg{Type: TypeError, ProtocolVersion: Version, Code: code, Message: message}
}

func flattenVec3(v []mgl32.Vec3) []float32 {
	out := make([]float32, 0, 3*len(v))
	for _, p := range v {
		out = append(out, p[0], p[1], p[2])
	}
	return out
}

func flattenVec2(v []mgl32.Vec2) []float32 {
	out := make([]float32, 0, 2*len(v))
	for _, p := range v {
		out = append(out, p[0], p[1])
	}
	return out
}
