package encoding

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"math"
)

// Float32s encodes v as base64 of little-endian IEEE-754 words.
func Float32s(v []float32) string {
	raw := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(raw[4*i:], math.Float32bits(f))
	}
	return base64.StdEncoding.EncodeToString(raw)
}

func DecodeFloat32s(b64 string) ([]float32, error) {
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, err
	}
	if len(raw)%4 != 0 {
		return nil, fmt.Errorf("float32 buffer: %d bytes is not a multiple of 4", len(raw))
	}
	out := make([]float32, len(raw)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[4*i:]))
	}
	return out, nil
}

func Uint32s(v []uint32) string {
	raw := make([]byte, 4*len(v))
	for i, u := range v {
		binary.LittleEndian.PutUint32(raw[4*i:], u)
	}
	return base64.StdEncoding.EncodeToString(raw)
}

func DecodeUint32s(b64 string) ([]uint32, error) {
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, err
	}
	if len(raw)%4 != 0 {
		return nil, fmt.Errorf("uint32 buffer: %d bytes is not a multiple of 4", len(raw))
	}
	out := make([]uint32, len(raw)/4)
	for i := range out {
		out[i] = binary.LittleEndian.Uint32(raw[4*i:])
	}
	return out, nil
}

func Bytes(v []uint8) string {
	return base64.StdEncoding.EncodeToString(v)
}
