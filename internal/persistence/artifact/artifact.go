// Package artifact stores a generated chunk as a single zstd stream: one JSON
// header line followed by little-endian binary buffers.
package artifact

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/klauspost/compress/zstd"

	"landmass.dev/internal/sim/terrain/chunk"
	"landmass.dev/internal/sim/terrain/heightmap"
	"landmass.dev/internal/sim/terrain/mesh"
	"landmass.dev/internal/sim/terrain/texture"
)

const (
	Magic   = "LANDMASS-CHUNK"
	Version = 1

	maxSize = 4096
)

var (
	ErrBadMagic = errors.New("not a chunk artifact")
	ErrCorrupt  = errors.New("chunk artifact corrupt")
)

type Header struct {
	Magic        string `json:"magic"`
	Version      int    `json:"version"`
	CX           int    `json:"cx"`
	CZ           int    `json:"cz"`
	Size         int    `json:"size"`
	FieldSize    int    `json:"field_size"`
	MeshMode     string `json:"mesh_mode"`
	TextureMode  string `json:"texture_mode"`
	Sampler      string `json:"sampler"`
	Vertices     int    `json:"vertices"`
	Indices      int    `json:"indices"`
	Digest       string `json:"digest"`
	ParamsDigest string `json:"params_digest,omitempty"`
}

type Artifact struct {
	Header Header

	Heights   []float32
	Pixels    []uint8
	Positions []mgl32.Vec3
	UVs       []mgl32.Vec2
	Normals   []mgl32.Vec3
	Indices   []uint32
	Regions   []uint16
}

func FromResult(res *chunk.Result, meshMode mesh.Mode, paramsDigest string) *Artifact {
	return &Artifact{
		Header: Header{
			Magic:        Magic,
			Version:      Version,
			CX:           res.Coord.X,
			CZ:           res.Coord.Y,
			Size:         res.Texture.Size,
			FieldSize:    res.Field.Size,
			MeshMode:     meshMode.String(),
			TextureMode:  res.Texture.Mode.String(),
			Sampler:      res.Texture.Sampler.String(),
			Vertices:     len(res.Mesh.Positions),
			Indices:      len(res.Mesh.Indices),
			Digest:       res.Digest(),
			ParamsDigest: paramsDigest,
		},
		Heights:   res.Field.Data,
		Pixels:    res.Texture.Pix,
		Positions: res.Mesh.Positions,
		UVs:       res.Mesh.UVs,
		Normals:   res.Mesh.Normals,
		Indices:   res.Mesh.Indices,
		Regions:   res.Regions,
	}
}

// Result rebuilds the chunk result; erosion statistics are not stored.
func (a *Artifact) Result() (*chunk.Result, error) {
	tm, err := texture.ParseMode(a.Header.TextureMode)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	sm, err := texture.ParseSampler(a.Header.Sampler)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return &chunk.Result{
		Coord:   chunk.Coord{X: a.Header.CX, Y: a.Header.CZ},
		Field:   &heightmap.Field{Size: a.Header.FieldSize, Data: a.Heights},
		Texture: &texture.Data{Size: a.Header.Size, Mode: tm, Sampler: sm, Pix: a.Pixels},
		Mesh: &mesh.Data{
			Positions: a.Positions,
			UVs:       a.UVs,
			Normals:   a.Normals,
			Indices:   a.Indices,
		},
		Regions: a.Regions,
	}, nil
}

func Encode(w io.Writer, a *Artifact) error {
	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	bw := bufio.NewWriterSize(enc, 256*1024)

	hb, err := json.Marshal(a.Header)
	if err != nil {
		_ = enc.Close()
		return err
	}
	if _, err := bw.Write(hb); err != nil {
		_ = enc.Close()
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		_ = enc.Close()
		return err
	}
	for _, section := range []any{a.Heights, a.Pixels, a.Positions, a.UVs, a.Normals, a.Indices, a.Regions} {
		if err := binary.Write(bw, binary.LittleEndian, section); err != nil {
			_ = enc.Close()
			return fmt.Errorf("write section: %w", err)
		}
	}
	if err := bw.Flush(); err != nil {
		_ = enc.Close()
		return err
	}
	return enc.Close()
}

func Decode(r io.Reader) (*Artifact, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)
	line, err := br.ReadBytes('\n')
	if err != nil {
		if errors.Is(err, zstd.ErrMagicMismatch) {
			return nil, ErrBadMagic
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	var h Header
	if err := json.Unmarshal(line, &h); err != nil || h.Magic != Magic {
		return nil, ErrBadMagic
	}
	if h.Version != Version {
		return nil, fmt.Errorf("unsupported artifact version %d", h.Version)
	}
	if h.Size < 1 || h.Size > maxSize || h.FieldSize < h.Size || h.FieldSize > maxSize+1 ||
		h.Vertices < 0 || h.Vertices > 6*maxSize*maxSize || h.Indices < 0 || h.Indices > 6*maxSize*maxSize {
		return nil, fmt.Errorf("%w: header out of range", ErrCorrupt)
	}

	a := &Artifact{
		Header:    h,
		Heights:   make([]float32, h.FieldSize*h.FieldSize),
		Pixels:    make([]uint8, h.Size*h.Size*4),
		Positions: make([]mgl32.Vec3, h.Vertices),
		UVs:       make([]mgl32.Vec2, h.Vertices),
		Normals:   make([]mgl32.Vec3, h.Vertices),
		Indices:   make([]uint32, h.Indices),
		Regions:   make([]uint16, h.Size*h.Size),
	}
	for _, section := range []any{a.Heights, a.Pixels, a.Positions, a.UVs, a.Normals, a.Indices, a.Regions} {
		if err := binary.Read(br, binary.LittleEndian, section); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
	}
	return a, nil
}

// Verify recomputes the chunk digest and compares it with the header.
func (a *Artifact) Verify() error {
	res, err := a.Result()
	if err != nil {
		return err
	}
	if got := res.Digest(); got != a.Header.Digest {
		return fmt.Errorf("%w: digest %s, header says %s", ErrCorrupt, got, a.Header.Digest)
	}
	return nil
}

func Marshal(a *Artifact) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, a); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func Unmarshal(b []byte) (*Artifact, error) {
	return Decode(bytes.NewReader(b))
}

// WriteFile encodes a next to path and renames it into place, so readers
// never see a partial artifact.
func WriteFile(path string, a *Artifact) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if err := Encode(f, a); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func ReadFile(path string) (*Artifact, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Decode(f)
}
