package encoding

import (
	"errors"
	"testing"
)

func TestRLE_RoundTrip(t *testing.T) {
	in := []uint16{0, 0, 0, 1, 1, 2}
	for i := 0; i < 70; i++ {
		in = append(in, 4)
	}
	in = append(in, 6, 5, 5, 5)

	out, err := DecodeRLE(EncodeRLE(in), len(in))
	if err != nil {
		t.Fatalf("DecodeRLE: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("len mismatch: got %d want %d", len(out), len(in))
	}
	for i := range in {
		if out[i] != in[i] {
			t.Fatalf("mismatch at %d: got %d want %d", i, out[i], in[i])
		}
	}
}

func TestRLE_LengthChecked(t *testing.T) {
	enc := EncodeRLE([]uint16{3, 3, 3, 3})
	if _, err := DecodeRLE(enc, 3); !errors.Is(err, ErrLength) {
		t.Fatalf("short want: %v", err)
	}
	if _, err := DecodeRLE(enc, 5); !errors.Is(err, ErrLength) {
		t.Fatalf("long want: %v", err)
	}
	if out, err := DecodeRLE(enc, -1); err != nil || len(out) != 4 {
		t.Fatalf("unchecked: %v %v", out, err)
	}
}

func TestRLE_Empty(t *testing.T) {
	if enc := EncodeRLE(nil); enc != "" {
		t.Fatalf("enc=%q", enc)
	}
	out, err := DecodeRLE("", 0)
	if err != nil || len(out) != 0 {
		t.Fatalf("out=%v err=%v", out, err)
	}
}

func TestBuffers(t *testing.T) {
	f := []float32{0, -1.5, 3.25}
	gotF, err := DecodeFloat32s(Float32s(f))
	if err != nil || len(gotF) != 3 || gotF[1] != -1.5 || gotF[2] != 3.25 {
		t.Fatalf("floats=%v err=%v", gotF, err)
	}
	u := []uint32{0, 1, 1 << 31}
	gotU, err := DecodeUint32s(Uint32s(u))
	if err != nil || len(gotU) != 3 || gotU[2] != 1<<31 {
		t.Fatalf("uints=%v err=%v", gotU, err)
	}
	if _, err := DecodeFloat32s("AAA="); err == nil {
		t.Fatalf("expected error on 2-byte buffer")
	}
}
