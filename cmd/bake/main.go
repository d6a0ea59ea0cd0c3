package main

import (
	"context"
	"flag"
	"fmt"
	"image/png"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/dustin/go-humanize"

	"landmass.dev/internal/persistence/artifact"
	"landmass.dev/internal/persistence/chunkdb"
	persistlog "landmass.dev/internal/persistence/log"
	"landmass.dev/internal/sim/endless"
	"landmass.dev/internal/sim/params"
	"landmass.dev/internal/sim/terrain/chunk"
	"landmass.dev/internal/sim/tuning"
)

func main() {
	var (
		paramsPath = flag.String("params", "./configs/terrain.yaml", "terrain parameter file")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		cx         = flag.Int("cx", 0, "center chunk x")
		cz         = flag.Int("cz", 0, "center chunk z")
		radius     = flag.Int("radius", 2, "bake chunks within this many chunks of the center")
		workers    = flag.Int("workers", runtime.NumCPU(), "generation workers")
		pngDir     = flag.String("png", "", "also write chunk textures as PNG into this dir (optional)")
		outDir     = flag.String("out", "", "also write .chunk.zst artifacts into this dir (optional)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[bake] ", log.LstdFlags|log.Lmicroseconds)

	p, err := tuning.Load(*paramsPath)
	if err != nil {
		logger.Fatalf("load params: %v", err)
	}
	if *radius < 0 {
		logger.Fatalf("radius must be >= 0")
	}

	sum, err := bake(context.Background(), bakeConfig{
		Params:  p,
		DataDir: *dataDir,
		Center:  chunk.Coord{X: *cx, Y: *cz},
		Radius:  *radius,
		Workers: *workers,
		PNGDir:  *pngDir,
		OutDir:  *outDir,
	}, logger)
	if err != nil {
		logger.Fatalf("bake: %v", err)
	}
	logger.Printf("baked %d chunks (%d failed) params=%s run=%s artifacts=%s elapsed=%s",
		sum.Chunks, sum.Failed, sum.ParamsDigest, sum.RunID, humanize.Bytes(uint64(sum.Bytes)), sum.Elapsed.Round(time.Millisecond))
}

type bakeConfig struct {
	Params  params.Parameters
	DataDir string
	Center  chunk.Coord
	Radius  int
	Workers int
	PNGDir  string
	OutDir  string
}

type bakeSummary struct {
	RunID        string
	ParamsDigest string
	Chunks       int
	Failed       int
	Bytes        int
	Elapsed      time.Duration
}

// bake generates the square of chunks around cfg.Center and stores every
// artifact in the chunk cache under <data>/index/chunks.sqlite.
func bake(ctx context.Context, cfg bakeConfig, logger *log.Logger) (bakeSummary, error) {
	start := time.Now()
	sum := bakeSummary{ParamsDigest: cfg.Params.Digest()}

	sched, err := endless.NewScheduler(cfg.Params, cfg.Workers, logger)
	if err != nil {
		return sum, err
	}
	defer sched.Close()

	db, err := chunkdb.Open(filepath.Join(cfg.DataDir, "index", "chunks.sqlite"))
	if err != nil {
		return sum, err
	}
	defer db.Close()
	if sum.RunID, err = db.BeginRun(ctx, cfg.Params); err != nil {
		return sum, err
	}

	genLog := persistlog.NewGenerationLogger(cfg.DataDir)
	defer genLog.Close()

	for _, dir := range []string{cfg.PNGDir, cfg.OutDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return sum, err
		}
	}

	var coords []chunk.Coord
	for z := cfg.Center.Y - cfg.Radius; z <= cfg.Center.Y+cfg.Radius; z++ {
		for x := cfg.Center.X - cfg.Radius; x <= cfg.Center.X+cfg.Radius; x++ {
			coords = append(coords, chunk.Coord{X: x, Y: z})
		}
	}

	replies := make(chan endless.Outcome, len(coords))
	go func() {
		for _, c := range coords {
			if err := sched.Request(ctx, c, replies); err != nil {
				replies <- endless.Outcome{Coord: c, Err: err}
			}
		}
	}()

	for range coords {
		var o endless.Outcome
		select {
		case <-ctx.Done():
			return sum, ctx.Err()
		case o = <-replies:
		}

		entry := persistlog.GenerationLogEntry{
			RunID:        sum.RunID,
			CX:           o.Coord.X,
			CZ:           o.Coord.Y,
			Version:      o.Version,
			ParamsDigest: sum.ParamsDigest,
			DurationMs:   float64(o.Elapsed.Microseconds()) / 1000,
		}
		if o.Err != nil {
			sum.Failed++
			entry.Error = o.Err.Error()
			logger.Printf("chunk %d,%d: %v", o.Coord.X, o.Coord.Y, o.Err)
			_ = genLog.WriteEntry(entry)
			continue
		}

		a := artifact.FromResult(o.Result, cfg.Params.MeshMode, sum.ParamsDigest)
		b, err := artifact.Marshal(a)
		if err != nil {
			return sum, fmt.Errorf("chunk %d,%d: %w", o.Coord.X, o.Coord.Y, err)
		}
		sum.Bytes += len(b)
		if err := db.PutChunk(a); err != nil {
			return sum, err
		}
		if cfg.OutDir != "" {
			if err := artifact.WriteFile(filepath.Join(cfg.OutDir, chunkFileName(o.Coord, ".chunk.zst")), a); err != nil {
				return sum, err
			}
		}
		if cfg.PNGDir != "" {
			if err := writePNG(filepath.Join(cfg.PNGDir, chunkFileName(o.Coord, ".png")), o.Result); err != nil {
				return sum, err
			}
		}

		entry.ChunkDigest = a.Header.Digest
		entry.Droplets = o.Result.Erosion.Droplets
		entry.Steps = o.Result.Erosion.Steps
		entry.Eroded = o.Result.Erosion.Eroded
		entry.Deposited = o.Result.Erosion.Deposited
		entry.ArtifactBytes = len(b)
		if err := genLog.WriteEntry(entry); err != nil {
			logger.Printf("generation log: %v", err)
		}
		sum.Chunks++
	}

	if err := db.Flush(ctx); err != nil {
		return sum, err
	}
	if st := db.Stats(); st.DropChunkTotal > 0 {
		return sum, fmt.Errorf("chunk cache dropped %d writes", st.DropChunkTotal)
	}
	sum.Elapsed = time.Since(start)
	return sum, nil
}

func chunkFileName(c chunk.Coord, ext string) string {
	return fmt.Sprintf("chunk_%d_%d%s", c.X, c.Y, ext)
}

func writePNG(path string, res *chunk.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, res.Texture.Image()); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
