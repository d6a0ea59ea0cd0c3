package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/zstd"

	persistlog "landmass.dev/internal/persistence/log"
	"landmass.dev/internal/sim/params"
	"landmass.dev/internal/sim/terrain/chunk"
	"landmass.dev/internal/sim/tuning"
)

func main() {
	var (
		paramsPath = flag.String("params", "./configs/terrain.yaml", "terrain parameter file the chunks were generated with")
		eventsDir  = flag.String("events", "./data/generation", "dir containing chunks-*.jsonl.zst")
		limit      = flag.Int("limit", 0, "stop after verifying this many chunks (0 = all)")
	)
	flag.Parse()

	p, err := tuning.Load(*paramsPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load params:", err)
		os.Exit(1)
	}

	files, err := listEventFiles(*eventsDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "list events:", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "no generation logs found in", *eventsDir)
		os.Exit(1)
	}

	r := replayer{params: p, digest: p.Digest(), limit: *limit}
	for _, path := range files {
		if err := r.replayFile(path); err != nil {
			fmt.Fprintln(os.Stderr, "replay:", err)
			os.Exit(1)
		}
		if r.done() {
			break
		}
	}
	fmt.Printf("replay ok: checked=%d skipped=%d params=%s\n", r.checked, r.skipped, r.digest)
}

func listEventFiles(dir string) ([]string, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(ents))
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, "chunks-") && strings.HasSuffix(name, ".jsonl.zst") {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	out := make([]string, 0, len(names))
	for _, name := range names {
		out = append(out, filepath.Join(dir, name))
	}
	return out, nil
}

// replayer regenerates logged chunks and checks their digests.
type replayer struct {
	params params.Parameters
	digest string
	limit  int

	checked int
	skipped int
}

func (r *replayer) done() bool { return r.limit > 0 && r.checked >= r.limit }

func (r *replayer) replayFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return err
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 64*1024), 8*1024*1024)

	for sc.Scan() {
		var entry persistlog.GenerationLogEntry
		if err := json.Unmarshal(sc.Bytes(), &entry); err != nil {
			return fmt.Errorf("%s: unmarshal: %w", filepath.Base(path), err)
		}
		// Entries from other parameter sets or failed jobs cannot be checked.
		if entry.ParamsDigest != r.digest || entry.Error != "" || entry.ChunkDigest == "" {
			r.skipped++
			continue
		}
		res, err := chunk.Generate(chunk.Coord{X: entry.CX, Y: entry.CZ}, r.params)
		if err != nil {
			return fmt.Errorf("chunk %d,%d: %w", entry.CX, entry.CZ, err)
		}
		if got := res.Digest(); got != entry.ChunkDigest {
			return fmt.Errorf("digest mismatch at chunk %d,%d: got=%s want=%s (file=%s)",
				entry.CX, entry.CZ, got, entry.ChunkDigest, filepath.Base(path))
		}
		r.checked++
		if r.done() {
			return nil
		}
	}
	return sc.Err()
}
