package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"

	persistlog "landmass.dev/internal/persistence/log"
	"landmass.dev/internal/sim/endless"
	"landmass.dev/internal/sim/params"
	"landmass.dev/internal/sim/tuning"
	"landmass.dev/internal/transport/observer"
)

func main() {
	var (
		addr        = flag.String("addr", ":8080", "http listen address")
		paramsPath  = flag.String("params", "./configs/terrain.yaml", "terrain parameter file (defaults are used if missing)")
		dataDir     = flag.String("data", "./data", "runtime data directory")
		workers     = flag.Int("workers", runtime.NumCPU(), "chunk generation workers")
		disableDB   = flag.Bool("disable_db", false, "disable the sqlite chunk cache")
		allowRemote = flag.Bool("allow_remote", false, "accept parameter updates from non-loopback clients")

		mcpListen     = flag.String("mcp_listen", "127.0.0.1:8090", "embedded MCP http listen address (empty to disable)")
		mcpHMACSecret = flag.String("mcp_hmac_secret", "", "embedded MCP hmac secret (or set LANDMASS_MCP_HMAC_SECRET)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	p, err := tuning.Load(*paramsPath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		logger.Printf("params file %s not found, using defaults", *paramsPath)
		p = params.Defaults()
	case err != nil:
		logger.Fatalf("load params: %v", err)
	}
	logger.Printf("params digest=%s chunk_size=%d world_scale=%g erosion=%s",
		p.Digest(), p.ChunkSize, p.WorldScale, p.Erosion.Mode)
	if !p.Regions.Monotonic() {
		logger.Printf("warning: region thresholds decrease; later regions can be shadowed")
	}

	sched, err := endless.NewScheduler(p, *workers, log.New(os.Stdout, "[gen] ", log.LstdFlags|log.Lmicroseconds))
	if err != nil {
		logger.Fatalf("scheduler: %v", err)
	}
	defer sched.Close()

	ctx, cancel := signalContext()
	defer cancel()

	cache, err := openChunkCache(*dataDir, *disableDB, logger)
	if err != nil {
		logger.Fatalf("chunk cache: %v", err)
	}
	if cache != nil {
		defer cache.Close()
		runID, err := cache.BeginRun(ctx, p)
		if err != nil {
			logger.Fatalf("begin run: %v", err)
		}
		logger.Printf("run id=%s", runID)
		if n, size, err := cache.CountChunks(ctx, p.Digest()); err == nil && n > 0 {
			logger.Printf("cache holds %d chunks (%s) for this parameter set", n, humanize.Bytes(uint64(size)))
		}
	}

	genLog := persistlog.NewGenerationLogger(*dataDir)
	defer genLog.Close()

	obsSrv := observer.NewServer(sched, log.New(os.Stdout, "[observer] ", log.LstdFlags|log.Lmicroseconds), observer.Options{
		Cache:       cache,
		GenLog:      genLog,
		AllowRemote: *allowRemote,
	})

	embeddedMCP, err := startEmbeddedMCP(ctx, embeddedMCPCfg{
		Listen:     *mcpListen,
		HMACSecret: *mcpHMACSecret,
	}, obsSrv, log.New(os.Stdout, "[mcp] ", log.LstdFlags|log.Lmicroseconds))
	if err != nil {
		logger.Fatalf("embedded mcp: %v", err)
	}
	defer embeddedMCP.Close()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		writeMetrics(rw, collectMetrics(sched, obsSrv, cache))
	})
	if envBool("LANDMASS_ENABLE_PPROF_HTTP", false) {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	} else {
		logger.Printf("pprof endpoints disabled (LANDMASS_ENABLE_PPROF_HTTP=false)")
	}
	mux.Handle("/v1/", obsSrv.Routes())

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s (data=%s)", *addr, filepath.Clean(*dataDir))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}
