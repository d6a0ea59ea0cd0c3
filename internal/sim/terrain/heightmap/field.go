// Package heightmap holds the square height grid shared by the terrain stages.
package heightmap

import (
	"crypto/sha256"
	"encoding/binary"
	"math"
)

type Coord struct {
	X, Y int
}

// Field is a Size x Size grid of heights, row-major: Data[y*Size+x].
type Field struct {
	Size int
	Data []float32
}

func NewField(size int) *Field {
	return &Field{Size: size, Data: make([]float32, size*size)}
}

func (f *Field) index(x, y int) int {
	// x fastest, then y
	return x + y*f.Size
}

func (f *Field) At(x, y int) float32 {
	return f.Data[f.index(x, y)]
}

func (f *Field) Set(x, y int, h float32) {
	f.Data[f.index(x, y)] = h
}

func (f *Field) Add(x, y int, dh float32) {
	f.Data[f.index(x, y)] += dh
}

func (f *Field) Clone() *Field {
	data := make([]float32, len(f.Data))
	copy(data, f.Data)
	return &Field{Size: f.Size, Data: data}
}

// Sum adds all samples in float64 to keep drift checks meaningful on large grids.
func (f *Field) Sum() float64 {
	s := 0.0
	for _, v := range f.Data {
		s += float64(v)
	}
	return s
}

func (f *Field) Digest() [32]byte {
	h := sha256.New()
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], uint32(f.Size))
	h.Write(tmp[:])
	for _, v := range f.Data {
		binary.LittleEndian.PutUint32(tmp[:], math.Float32bits(v))
		h.Write(tmp[:])
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}
