package main

import (
	"path/filepath"
	"strings"
	"testing"

	persistlog "landmass.dev/internal/persistence/log"
	"landmass.dev/internal/sim/params"
	"landmass.dev/internal/sim/terrain/chunk"
)

func writeLog(t *testing.T, dataDir string, p params.Parameters, coords []chunk.Coord, corrupt bool) {
	t.Helper()
	l := persistlog.NewGenerationLogger(dataDir)
	for _, c := range coords {
		res, err := chunk.Generate(c, p)
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		d := res.Digest()
		if corrupt {
			d = strings.Repeat("0", len(d))
		}
		if err := l.WriteEntry(persistlog.GenerationLogEntry{CX: c.X, CZ: c.Y, Version: 1, ParamsDigest: p.Digest(), ChunkDigest: d}); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := l.WriteEntry(persistlog.GenerationLogEntry{CX: 9, CZ: 9, ParamsDigest: "other"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func smallParams() params.Parameters {
	p := params.Defaults()
	p.ChunkSize = 12
	p.Erosion.Hydraulic.Iterations = 20
	return p
}

func TestReplay_MatchesLoggedDigests(t *testing.T) {
	dir := t.TempDir()
	p := smallParams()
	writeLog(t, dir, p, []chunk.Coord{{X: 0, Y: 0}, {X: 1, Y: -2}}, false)

	files, err := listEventFiles(filepath.Join(dir, "generation"))
	if err != nil || len(files) != 1 {
		t.Fatalf("files=%v err=%v", files, err)
	}
	r := replayer{params: p, digest: p.Digest()}
	if err := r.replayFile(files[0]); err != nil {
		t.Fatalf("replay: %v", err)
	}
	if r.checked != 2 || r.skipped != 1 {
		t.Fatalf("checked=%d skipped=%d", r.checked, r.skipped)
	}
}

func TestReplay_DetectsMismatch(t *testing.T) {
	dir := t.TempDir()
	p := smallParams()
	writeLog(t, dir, p, []chunk.Coord{{X: 3, Y: 3}}, true)

	files, err := listEventFiles(filepath.Join(dir, "generation"))
	if err != nil || len(files) != 1 {
		t.Fatalf("files=%v err=%v", files, err)
	}
	r := replayer{params: p, digest: p.Digest()}
	if err := r.replayFile(files[0]); err == nil || !strings.Contains(err.Error(), "digest mismatch") {
		t.Fatalf("expected digest mismatch, got %v", err)
	}
}

func TestReplay_Limit(t *testing.T) {
	dir := t.TempDir()
	p := smallParams()
	writeLog(t, dir, p, []chunk.Coord{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 2, Y: 0}}, false)

	files, _ := listEventFiles(filepath.Join(dir, "generation"))
	r := replayer{params: p, digest: p.Digest(), limit: 2}
	if err := r.replayFile(files[0]); err != nil {
		t.Fatalf("replay: %v", err)
	}
	if r.checked != 2 || !r.done() {
		t.Fatalf("checked=%d", r.checked)
	}
}
