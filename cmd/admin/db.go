package main

import (
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	_ "modernc.org/sqlite"
)

func openDB(path string) (*sql.DB, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	return sql.Open("sqlite", path)
}

func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	dbPath := fs.String("db", "", "sqlite db path (optional)")
	digest := fs.String("digest", "", "params_digest filter (chunks)")
	limit := fs.Int("limit", 20, "result limit")
	_ = fs.Parse(args)

	q := "runs"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}
	if *limit <= 0 {
		*limit = 20
	}

	db, err := openDB(cachePath(*dataDir, *dbPath))
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer db.Close()

	switch q {
	case "runs":
		runs, err := listRuns(db, *limit)
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			os.Exit(1)
		}
		for _, r := range runs {
			printJSON(r)
		}

	case "chunks":
		chunks, err := listChunks(db, strings.TrimSpace(*digest), *limit)
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			os.Exit(1)
		}
		for _, c := range chunks {
			printJSON(c)
		}

	default:
		fmt.Fprintln(os.Stderr, "unknown query (want runs|chunks):", q)
		os.Exit(2)
	}
}

type runRow struct {
	ID           string          `json:"id"`
	ParamsDigest string          `json:"params_digest"`
	CreatedAt    string          `json:"created_at"`
	Params       json.RawMessage `json:"params"`
}

func listRuns(db *sql.DB, limit int) ([]runRow, error) {
	rows, err := db.Query(`SELECT id,params_digest,params_json,created_at FROM runs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []runRow
	for rows.Next() {
		var r runRow
		var raw string
		if err := rows.Scan(&r.ID, &r.ParamsDigest, &raw, &r.CreatedAt); err != nil {
			return nil, err
		}
		r.Params = json.RawMessage(raw)
		out = append(out, r)
	}
	return out, rows.Err()
}

type chunkRow struct {
	ParamsDigest string `json:"params_digest"`
	CX           int    `json:"cx"`
	CZ           int    `json:"cz"`
	Digest       string `json:"digest"`
	Size         int    `json:"size"`
	Bytes        int64  `json:"bytes"`
	CreatedAt    string `json:"created_at"`
}

func listChunks(db *sql.DB, digest string, limit int) ([]chunkRow, error) {
	rows, err := db.Query(`SELECT params_digest,cx,cz,digest,size,LENGTH(artifact),created_at FROM chunks
		WHERE (?='' OR params_digest=?) ORDER BY created_at DESC LIMIT ?`, digest, digest, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []chunkRow
	for rows.Next() {
		var r chunkRow
		if err := rows.Scan(&r.ParamsDigest, &r.CX, &r.CZ, &r.Digest, &r.Size, &r.Bytes, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type paramSet struct {
	ParamsDigest string `json:"params_digest"`
	Chunks       int    `json:"chunks"`
	Bytes        int64  `json:"bytes"`
}

func listParamSets(db *sql.DB) ([]paramSet, error) {
	rows, err := db.Query(`SELECT params_digest,COUNT(*),COALESCE(SUM(LENGTH(artifact)),0) FROM chunks GROUP BY params_digest ORDER BY params_digest`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []paramSet
	for rows.Next() {
		var s paramSet
		if err := rows.Scan(&s.ParamsDigest, &s.Chunks, &s.Bytes); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
