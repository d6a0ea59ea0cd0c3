package chunkdb

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"landmass.dev/internal/persistence/artifact"
	"landmass.dev/internal/sim/params"
	"landmass.dev/internal/sim/terrain/chunk"
)

func testArtifact(t *testing.T, p params.Parameters, c chunk.Coord) *artifact.Artifact {
	t.Helper()
	res, err := chunk.Generate(c, p)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	return artifact.FromResult(res, p.MeshMode, p.Digest())
}

func smallParams() params.Parameters {
	p := params.Defaults()
	p.ChunkSize = 12
	p.Erosion.Hydraulic.Iterations = 20
	return p
}

func TestChunkDB_PutFlushGet(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "index", "chunks.sqlite"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()
	ctx := context.Background()

	p := smallParams()
	runID, err := s.BeginRun(ctx, p)
	if err != nil || runID == "" {
		t.Fatalf("BeginRun: %q %v", runID, err)
	}

	coords := []chunk.Coord{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 0, Y: -1}}
	want := map[chunk.Coord]string{}
	for _, c := range coords {
		a := testArtifact(t, p, c)
		want[c] = a.Header.Digest
		if err := s.PutChunk(a); err != nil {
			t.Fatalf("PutChunk: %v", err)
		}
	}
	if err := s.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	for _, c := range coords {
		a, err := s.LoadChunk(ctx, p.Digest(), c.X, c.Y)
		if err != nil {
			t.Fatalf("LoadChunk %v: %v", c, err)
		}
		if a.Header.Digest != want[c] {
			t.Fatalf("digest mismatch at %v", c)
		}
	}

	n, total, err := s.CountChunks(ctx, p.Digest())
	if err != nil || n != 3 || total <= 0 {
		t.Fatalf("CountChunks n=%d bytes=%d err=%v", n, total, err)
	}
	if st := s.Stats(); st.PutChunkTotal != 3 || st.DropChunkTotal != 0 {
		t.Fatalf("stats=%+v", st)
	}
}

func TestChunkDB_ReadableWithoutFlush(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "chunks.sqlite"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	p := smallParams()
	a := testArtifact(t, p, chunk.Coord{X: 2, Y: 3})
	if err := s.PutChunk(a); err != nil {
		t.Fatalf("PutChunk: %v", err)
	}

	// The writer must not hold the connection between batches: a miss or a
	// hit both have to come back well within the deadline.
	deadline := time.Now().Add(3 * time.Second)
	for {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		got, err := s.LoadChunk(ctx, p.Digest(), 2, 3)
		cancel()
		if err == nil {
			if got.Header.Digest != a.Header.Digest {
				t.Fatalf("digest mismatch")
			}
			break
		}
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("LoadChunk: %v", err)
		}
		if time.Now().After(deadline) {
			t.Fatalf("chunk never became visible without Flush")
		}
		time.Sleep(10 * time.Millisecond)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := s.GetChunk(ctx, p.Digest(), 9, 9); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetChunk miss: %v", err)
	}
}

func TestChunkDB_NotFound(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "chunks.sqlite"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	if _, err := s.GetChunk(context.Background(), "nope", 0, 0); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err=%v", err)
	}
}

func TestChunkDB_KeyedByParams(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "chunks.sqlite"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()
	ctx := context.Background()

	a := smallParams()
	b := smallParams()
	b.Noise.Seed = 5
	if err := s.PutChunk(testArtifact(t, a, chunk.Coord{})); err != nil {
		t.Fatalf("PutChunk: %v", err)
	}
	if err := s.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if _, err := s.GetChunk(ctx, b.Digest(), 0, 0); !errors.Is(err, ErrNotFound) {
		t.Fatalf("chunk leaked across parameter sets: %v", err)
	}
}

func TestChunkDB_QueueDrop(t *testing.T) {
	s := &DB{ch: make(chan req, 1)}
	s.ch <- req{kind: reqFlush}
	a := testArtifact(t, smallParams(), chunk.Coord{})
	if err := s.PutChunk(a); err != nil {
		t.Fatalf("PutChunk: %v", err)
	}
	st := s.Stats()
	if st.DropChunkTotal != 1 || st.PutChunkTotal != 0 {
		t.Fatalf("stats=%+v", st)
	}
	if st.QueueDepth != 1 || st.QueueCapacity != 1 {
		t.Fatalf("queue depth=%d cap=%d", st.QueueDepth, st.QueueCapacity)
	}
}

func TestChunkDB_Closed(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "chunks.sqlite"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := s.PutChunk(&artifact.Artifact{}); !errors.Is(err, ErrClosed) {
		t.Fatalf("PutChunk err=%v", err)
	}
	if err := s.Flush(context.Background()); !errors.Is(err, ErrClosed) {
		t.Fatalf("Flush err=%v", err)
	}
}
