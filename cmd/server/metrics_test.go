package main

import (
	"bytes"
	"log"
	"path/filepath"
	"strings"
	"testing"

	"landmass.dev/internal/persistence/chunkdb"
	"landmass.dev/internal/sim/endless"
	"landmass.dev/internal/sim/params"
	"landmass.dev/internal/transport/observer"
)

func TestWriteMetrics_NoCache(t *testing.T) {
	var buf bytes.Buffer
	writeMetrics(&buf, serverMetrics{ParamsVersion: 3, ParamsDigest: "abc", QueueDepth: 2, Sessions: 1})
	out := buf.String()
	for _, want := range []string{
		`landmass_params_version{digest="abc"} 3`,
		"landmass_gen_queue_depth 2",
		"landmass_observer_sessions 1",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
	}
	if strings.Contains(out, "landmass_cache_") {
		t.Fatalf("cache metrics emitted without a cache:\n%s", out)
	}
}

func TestCollectMetrics(t *testing.T) {
	p := params.Defaults()
	p.ChunkSize = 8
	sched, err := endless.NewScheduler(p, 1, log.New(&bytes.Buffer{}, "", 0))
	if err != nil {
		t.Fatalf("scheduler: %v", err)
	}
	defer sched.Close()

	db, err := chunkdb.Open(filepath.Join(t.TempDir(), "chunks.sqlite"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	obs := observer.NewServer(sched, log.New(&bytes.Buffer{}, "", 0), observer.Options{Cache: db})
	m := collectMetrics(sched, obs, db)
	if m.ParamsVersion != 1 || m.ParamsDigest != p.Digest() {
		t.Fatalf("params: got v%d %s", m.ParamsVersion, m.ParamsDigest)
	}
	if !m.CacheEnabled || m.Cache.QueueCapacity == 0 {
		t.Fatalf("cache stats: %+v", m.Cache)
	}

	var buf bytes.Buffer
	writeMetrics(&buf, m)
	if !strings.Contains(buf.String(), "landmass_cache_dropped_total 0") {
		t.Fatalf("missing cache metrics:\n%s", buf.String())
	}
}

func TestOpenChunkCache(t *testing.T) {
	logger := log.New(&bytes.Buffer{}, "", 0)
	db, err := openChunkCache(t.TempDir(), true, logger)
	if err != nil || db != nil {
		t.Fatalf("disabled: db=%v err=%v", db, err)
	}

	t.Setenv("LANDMASS_CACHE_BACKEND", "bogus")
	if _, err := openChunkCache(t.TempDir(), false, logger); err == nil {
		t.Fatalf("expected error for unknown backend")
	}

	t.Setenv("LANDMASS_CACHE_BACKEND", "")
	dir := t.TempDir()
	db, err = openChunkCache(dir, false, logger)
	if err != nil || db == nil {
		t.Fatalf("sqlite: db=%v err=%v", db, err)
	}
	defer db.Close()
}
