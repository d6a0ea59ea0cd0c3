// Package chunkdb caches chunk artifacts in SQLite, keyed by parameter digest
// and chunk coordinate.
package chunkdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"landmass.dev/internal/persistence/artifact"
	"landmass.dev/internal/sim/params"
)

var (
	ErrNotFound = errors.New("chunk not found")
	ErrClosed   = errors.New("chunkdb closed")
)

type DB struct {
	db *sql.DB

	// mu guards sends on ch against Close.
	mu   sync.RWMutex
	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropChunkTotal atomic.Uint64
	putChunkTotal  atomic.Uint64
}

type reqKind int

const (
	reqChunk reqKind = iota + 1
	reqFlush
)

type req struct {
	kind reqKind

	chunk chunkRow
	done  chan error
}

type chunkRow struct {
	ParamsDigest string
	CX, CZ       int
	Digest       string
	Size         int
	Blob         []byte
}

type Stats struct {
	PutChunkTotal  uint64 `json:"put_chunk_total"`
	DropChunkTotal uint64 `json:"drop_chunk_total"`
	QueueDepth     int    `json:"queue_depth"`
	QueueCapacity  int    `json:"queue_capacity"`
}

func Open(path string) (*DB, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &DB{
		db: db,
		ch: make(chan req, 4096),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			params_digest TEXT NOT NULL,
			params_json TEXT NOT NULL,
			created_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_runs_params ON runs(params_digest);`,
		`CREATE TABLE IF NOT EXISTS chunks (
			params_digest TEXT NOT NULL,
			cx INTEGER NOT NULL,
			cz INTEGER NOT NULL,
			digest TEXT NOT NULL,
			size INTEGER NOT NULL,
			artifact BLOB NOT NULL,
			created_at TEXT NOT NULL,
			PRIMARY KEY (params_digest, cx, cz)
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *DB) Close() error {
	var err error
	s.once.Do(func() {
		s.mu.Lock()
		s.closed.Store(true)
		close(s.ch)
		s.mu.Unlock()
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

// BeginRun records the parameter set a batch of chunks is generated from and
// returns the run id.
func (s *DB) BeginRun(ctx context.Context, p params.Parameters) (string, error) {
	if s.closed.Load() {
		return "", ErrClosed
	}
	b, err := json.Marshal(params.ToDocument(p))
	if err != nil {
		return "", err
	}
	id := uuid.NewString()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs(id,params_digest,params_json,created_at) VALUES(?,?,?,?)`,
		id, p.Digest(), string(b), time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return "", err
	}
	return id, nil
}

// PutChunk queues an artifact for the writer goroutine. When the queue is
// full the artifact is dropped and counted; the cache is best effort.
func (s *DB) PutChunk(a *artifact.Artifact) error {
	if s == nil || s.closed.Load() {
		return ErrClosed
	}
	blob, err := artifact.Marshal(a)
	if err != nil {
		return err
	}
	r := req{kind: reqChunk, chunk: chunkRow{
		ParamsDigest: a.Header.ParamsDigest,
		CX:           a.Header.CX,
		CZ:           a.Header.CZ,
		Digest:       a.Header.Digest,
		Size:         a.Header.Size,
		Blob:         blob,
	}}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed.Load() {
		return ErrClosed
	}
	select {
	case s.ch <- r:
		s.putChunkTotal.Add(1)
	default:
		s.dropChunkTotal.Add(1)
	}
	return nil
}

// Flush waits until every chunk queued before the call is committed.
func (s *DB) Flush(ctx context.Context) error {
	done := make(chan error, 1)
	s.mu.RLock()
	if s.closed.Load() {
		s.mu.RUnlock()
		return ErrClosed
	}
	select {
	case s.ch <- req{kind: reqFlush, done: done}:
		s.mu.RUnlock()
	case <-ctx.Done():
		s.mu.RUnlock()
		return ctx.Err()
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// GetChunk returns the encoded artifact bytes.
func (s *DB) GetChunk(ctx context.Context, paramsDigest string, cx, cz int) ([]byte, error) {
	var blob []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT artifact FROM chunks WHERE params_digest=? AND cx=? AND cz=?`,
		paramsDigest, cx, cz).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return blob, nil
}

// LoadChunk decodes and verifies a stored artifact.
func (s *DB) LoadChunk(ctx context.Context, paramsDigest string, cx, cz int) (*artifact.Artifact, error) {
	blob, err := s.GetChunk(ctx, paramsDigest, cx, cz)
	if err != nil {
		return nil, err
	}
	a, err := artifact.Unmarshal(blob)
	if err != nil {
		return nil, fmt.Errorf("chunk %d,%d: %w", cx, cz, err)
	}
	if err := a.Verify(); err != nil {
		return nil, fmt.Errorf("chunk %d,%d: %w", cx, cz, err)
	}
	return a, nil
}

// CountChunks reports the stored chunk count and total artifact bytes for a
// parameter digest.
func (s *DB) CountChunks(ctx context.Context, paramsDigest string) (int, int64, error) {
	var n int
	var bytes sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), SUM(LENGTH(artifact)) FROM chunks WHERE params_digest=?`,
		paramsDigest).Scan(&n, &bytes)
	return n, bytes.Int64, err
}

func (s *DB) Stats() Stats {
	return Stats{
		PutChunkTotal:  s.putChunkTotal.Load(),
		DropChunkTotal: s.dropChunkTotal.Load(),
		QueueDepth:     len(s.ch),
		QueueCapacity:  cap(s.ch),
	}
}

func (s *DB) loop() {
	ctx := context.Background()

	insertChunk, _ := s.db.Prepare(`INSERT OR REPLACE INTO chunks(params_digest,cx,cz,digest,size,artifact,created_at) VALUES(?,?,?,?,?,?,?)`)
	defer func() {
		if insertChunk != nil {
			_ = insertChunk.Close()
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 256
		commitMaxWait = time.Second
		lastErr       error
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			lastErr = err
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		if err := tx.Commit(); err != nil {
			lastErr = err
		}
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}

	for r := range s.ch {
		switch r.kind {
		case reqFlush:
			commit()
			r.done <- lastErr
			lastErr = nil
			continue

		case reqChunk:
			begin()
			if tx == nil || insertChunk == nil {
				continue
			}
			c := r.chunk
			if _, err := tx.Stmt(insertChunk).Exec(
				c.ParamsDigest, c.CX, c.CZ, c.Digest, c.Size, c.Blob,
				time.Now().UTC().Format(time.RFC3339Nano),
			); err != nil {
				lastErr = err
				rollback()
				continue
			}
			opCount++
		}
		// Readers share the single connection, so an open transaction must
		// not outlive the queued work.
		if len(s.ch) == 0 || opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}
	commit()
}
