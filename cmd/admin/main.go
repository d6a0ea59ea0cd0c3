package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"

	"landmass.dev/internal/persistence/artifact"
	"landmass.dev/internal/persistence/chunkdb"
	"landmass.dev/internal/sim/tuning"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "db":
			dbCmd(os.Args[2:])
			return
		case "state":
			stateCmd(os.Args[2:])
			return
		case "params":
			paramsCmd(os.Args[2:])
			return
		case "export":
			exportCmd(os.Args[2:])
			return
		case "inspect":
			inspectCmd(os.Args[2:])
			return
		}
	}
	listCmd(os.Args[1:])
}

func cachePath(dataDir, dbPath string) string {
	if p := strings.TrimSpace(dbPath); p != "" {
		return p
	}
	return filepath.Join(dataDir, "index", "chunks.sqlite")
}

// listCmd prints the parameter sets with cached chunks.
func listCmd(args []string) {
	fs := flag.NewFlagSet("admin", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	dbPath := fs.String("db", "", "sqlite db path (optional)")
	_ = fs.Parse(args)

	db, err := openDB(cachePath(*dataDir, *dbPath))
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer db.Close()

	sets, err := listParamSets(db)
	if err != nil {
		fmt.Fprintln(os.Stderr, "query:", err)
		os.Exit(1)
	}
	for _, s := range sets {
		fmt.Printf("%s chunks=%d size=%s\n", s.ParamsDigest, s.Chunks, humanize.Bytes(uint64(s.Bytes)))
	}
}

// exportCmd copies one cached chunk into a standalone artifact file.
func exportCmd(args []string) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	dbPath := fs.String("db", "", "sqlite db path (optional)")
	paramsPath := fs.String("params", "./configs/terrain.yaml", "parameter file selecting the cached set")
	digest := fs.String("digest", "", "parameter digest (overrides -params)")
	cx := fs.Int("cx", 0, "chunk x")
	cz := fs.Int("cz", 0, "chunk z")
	outPath := fs.String("out", "", "output path (default: chunk_<cx>_<cz>.chunk.zst)")
	_ = fs.Parse(args)

	d := strings.TrimSpace(*digest)
	if d == "" {
		p, err := tuning.Load(*paramsPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "load params:", err)
			os.Exit(1)
		}
		d = p.Digest()
	}

	db, err := chunkdb.Open(cachePath(*dataDir, *dbPath))
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer db.Close()

	a, err := db.LoadChunk(context.Background(), d, *cx, *cz)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load chunk:", err)
		os.Exit(1)
	}
	out := strings.TrimSpace(*outPath)
	if out == "" {
		out = fmt.Sprintf("chunk_%d_%d.chunk.zst", *cx, *cz)
	}
	if err := artifact.WriteFile(out, a); err != nil {
		fmt.Fprintln(os.Stderr, "write:", err)
		os.Exit(1)
	}
	fmt.Printf("wrote %s digest=%s\n", out, a.Header.Digest)
}

// inspectCmd verifies an artifact file and prints its header.
func inspectCmd(args []string) {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	_ = fs.Parse(args)
	if fs.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: admin inspect <file.chunk.zst>...")
		os.Exit(2)
	}
	failed := false
	for _, path := range fs.Args() {
		a, err := artifact.ReadFile(path)
		if err == nil {
			err = a.Verify()
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
			failed = true
			continue
		}
		printJSON(a.Header)
	}
	if failed {
		os.Exit(1)
	}
}
