package log

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/klauspost/compress/zstd"
)

func readEntries(t *testing.T, path string) []GenerationLogEntry {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		t.Fatalf("zstd: %v", err)
	}
	defer dec.Close()

	var out []GenerationLogEntry
	sc := bufio.NewScanner(dec)
	for sc.Scan() {
		var e GenerationLogEntry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			t.Fatalf("line %q: %v", sc.Text(), err)
		}
		out = append(out, e)
	}
	if err := sc.Err(); err != nil {
		t.Fatalf("scan: %v", err)
	}
	return out
}

func TestGenerationLogger_WritesAndRotates(t *testing.T) {
	dir := t.TempDir()
	l := NewGenerationLogger(dir)

	clock := time.Date(2026, 3, 1, 10, 59, 0, 0, time.UTC)
	l.w.now = func() time.Time { return clock }

	if err := l.WriteEntry(GenerationLogEntry{CX: 1, CZ: 2, ParamsDigest: "p"}); err != nil {
		t.Fatalf("WriteEntry: %v", err)
	}
	if err := l.WriteEntry(GenerationLogEntry{CX: 3, CZ: 4, ParamsDigest: "p"}); err != nil {
		t.Fatalf("WriteEntry: %v", err)
	}
	clock = clock.Add(2 * time.Minute)
	if err := l.WriteEntry(GenerationLogEntry{CX: 5, CZ: 6, Error: "boom"}); err != nil {
		t.Fatalf("WriteEntry: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	files, err := filepath.Glob(filepath.Join(dir, "generation", "chunks-*.jsonl.zst"))
	if err != nil {
		t.Fatal(err)
	}
	sort.Strings(files)
	if len(files) != 2 {
		t.Fatalf("files=%v", files)
	}
	if filepath.Base(files[0]) != "chunks-2026-03-01-10.jsonl.zst" {
		t.Fatalf("first file=%s", files[0])
	}

	first := readEntries(t, files[0])
	if len(first) != 2 || first[1].CX != 3 || first[0].Time == "" {
		t.Fatalf("first=%+v", first)
	}
	second := readEntries(t, files[1])
	if len(second) != 1 || second[0].Error != "boom" {
		t.Fatalf("second=%+v", second)
	}
}
