package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"landmass.dev/internal/persistence/chunkdb"
)

func openChunkCache(dataDir string, disableDB bool, logger *log.Logger) (*chunkdb.DB, error) {
	if disableDB {
		return nil, nil
	}

	backend := strings.ToLower(strings.TrimSpace(os.Getenv("LANDMASS_CACHE_BACKEND")))
	if backend == "" {
		backend = "sqlite"
	}

	switch backend {
	case "none", "off", "disabled":
		logger.Printf("chunk cache disabled (LANDMASS_CACHE_BACKEND=%s)", backend)
		return nil, nil
	case "sqlite":
		dbPath := filepath.Join(dataDir, "index", "chunks.sqlite")
		return chunkdb.Open(dbPath)
	default:
		return nil, fmt.Errorf("unsupported LANDMASS_CACHE_BACKEND: %s", backend)
	}
}
