package main

import (
	"fmt"
	"io"

	"landmass.dev/internal/persistence/chunkdb"
	"landmass.dev/internal/sim/endless"
	"landmass.dev/internal/transport/observer"
)

type serverMetrics struct {
	ParamsVersion uint64
	ParamsDigest  string
	QueueDepth    int
	Sessions      int

	CacheEnabled bool
	Cache        chunkdb.Stats
}

func collectMetrics(sched *endless.Scheduler, obs *observer.Server, cache *chunkdb.DB) serverMetrics {
	version, p := sched.Snapshot()
	m := serverMetrics{
		ParamsVersion: version,
		ParamsDigest:  p.Digest(),
		QueueDepth:    sched.Pending(),
		Sessions:      obs.Sessions(),
	}
	if cache != nil {
		m.CacheEnabled = true
		m.Cache = cache.Stats()
	}
	return m
}

// writeMetrics renders m in the Prometheus text exposition format.
func writeMetrics(w io.Writer, m serverMetrics) {
	fmt.Fprintf(w, "# HELP landmass_params_version Active terrain parameter version.\n")
	fmt.Fprintf(w, "# TYPE landmass_params_version gauge\n")
	fmt.Fprintf(w, "landmass_params_version{digest=%q} %d\n", m.ParamsDigest, m.ParamsVersion)

	fmt.Fprintf(w, "# HELP landmass_gen_queue_depth Chunk jobs waiting for a worker.\n")
	fmt.Fprintf(w, "# TYPE landmass_gen_queue_depth gauge\n")
	fmt.Fprintf(w, "landmass_gen_queue_depth %d\n", m.QueueDepth)

	fmt.Fprintf(w, "# HELP landmass_observer_sessions Connected viewer sessions.\n")
	fmt.Fprintf(w, "# TYPE landmass_observer_sessions gauge\n")
	fmt.Fprintf(w, "landmass_observer_sessions %d\n", m.Sessions)

	if !m.CacheEnabled {
		return
	}
	fmt.Fprintf(w, "# HELP landmass_cache_queue_depth Current chunk cache write queue depth.\n")
	fmt.Fprintf(w, "# TYPE landmass_cache_queue_depth gauge\n")
	fmt.Fprintf(w, "landmass_cache_queue_depth %d\n", m.Cache.QueueDepth)

	fmt.Fprintf(w, "# HELP landmass_cache_queue_capacity Chunk cache write queue capacity.\n")
	fmt.Fprintf(w, "# TYPE landmass_cache_queue_capacity gauge\n")
	fmt.Fprintf(w, "landmass_cache_queue_capacity %d\n", m.Cache.QueueCapacity)

	fmt.Fprintf(w, "# HELP landmass_cache_put_total Chunks queued for the cache.\n")
	fmt.Fprintf(w, "# TYPE landmass_cache_put_total counter\n")
	fmt.Fprintf(w, "landmass_cache_put_total %d\n", m.Cache.PutChunkTotal)

	fmt.Fprintf(w, "# HELP landmass_cache_dropped_total Chunks dropped because the write queue was full.\n")
	fmt.Fprintf(w, "# TYPE landmass_cache_dropped_total counter\n")
	fmt.Fprintf(w, "landmass_cache_dropped_total %d\n", m.Cache.DropChunkTotal)
}
