package observer

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"landmass.dev/internal/observerproto"
	"landmass.dev/internal/persistence/artifact"
	"landmass.dev/internal/persistence/chunkdb"
	persistlog "landmass.dev/internal/persistence/log"
	"landmass.dev/internal/sim/endless"
	"landmass.dev/internal/sim/params"
	"landmass.dev/internal/sim/terrain/chunk"
)

const maxViewDistance = 4000

type Options struct {
	// Cache is optional; when set, generated chunks are stored and served
	// from it.
	Cache  *chunkdb.DB
	GenLog *persistlog.GenerationLogger

	// AllowRemote disables the loopback-only check on the parameter
	// endpoint.
	AllowRemote bool
}

type Server struct {
	sched *endless.Scheduler
	log   *log.Logger
	opts  Options

	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns map[*session]struct{}
}

func NewServer(sched *endless.Scheduler, logger *log.Logger, opts Options) *Server {
	if logger == nil {
		logger = log.New(log.Writer(), "[observer] ", log.LstdFlags|log.Lmicroseconds)
	}
	return &Server{
		sched: sched,
		log:   logger,
		opts:  opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 256 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
		conns: map[*session]struct{}{},
	}
}

// Routes mounts the viewer API under /v1.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Route("/v1", func(r chi.Router) {
		r.Get("/bootstrap", s.BootstrapHandler())
		r.Get("/ws", s.WSHandler())
		r.Get("/chunks/{x}/{z}", s.ChunkHandler())
		r.Put("/params", s.ParamsHandler())
		r.Get("/health", func(rw http.ResponseWriter, r *http.Request) {
			respondJSON(rw, http.StatusOK, map[string]string{"status": "ok"})
		})
	})
	return r
}

func (s *Server) BootstrapHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		v, p := s.sched.Snapshot()
		respondJSON(rw, http.StatusOK, observerproto.BootstrapResponse{
			ProtocolVersion: observerproto.Version,
			ParamsVersion:   v,
			ParamsDigest:    p.Digest(),
			Params:          params.ToDocument(p),
			Fields:          params.Fields(),
			MaxViewDistance: endless.DefaultMaxViewDistance,
		})
	}
}

// ChunkHandler serves GET /v1/chunks/{x}/{z} with the current parameters.
func (s *Server) ChunkHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		x, errX := strconv.Atoi(chi.URLParam(r, "x"))
		z, errZ := strconv.Atoi(chi.URLParam(r, "z"))
		if errX != nil || errZ != nil {
			respondJSON(rw, http.StatusBadRequest, observerproto.NewErrorMsg("BAD_COORD", "chunk coordinates must be integers"))
			return
		}
		v, p := s.sched.Snapshot()
		o, cached, err := s.generate(r.Context(), v, p, chunk.Coord{X: x, Y: z})
		if err != nil {
			if r.Context().Err() == nil {
				respondJSON(rw, http.StatusServiceUnavailable, observerproto.NewErrorMsg("UNAVAILABLE", err.Error()))
			}
			return
		}
		if o.Err != nil {
			respondJSON(rw, http.StatusInternalServerError, observerproto.NewErrorMsg("GENERATION_FAILED", o.Err.Error()))
			return
		}
		msg := observerproto.NewChunkMsg(o.Result, o.Version, p.MeshMode.String())
		msg.Cached = cached
		respondJSON(rw, http.StatusOK, msg)
	}
}

// Chunk returns the chunk at c for the active parameters, from the cache
// when possible. A non-nil error means no job ran; generation failures are
// reported in the outcome.
func (s *Server) Chunk(ctx context.Context, c chunk.Coord) (endless.Outcome, bool, error) {
	v, p := s.sched.Snapshot()
	return s.generate(ctx, v, p, c)
}

func (s *Server) generate(ctx context.Context, v uint64, p params.Parameters, c chunk.Coord) (endless.Outcome, bool, error) {
	if res, ok := s.cachedResult(ctx, p, c); ok {
		return endless.Outcome{Coord: c, Version: v, Result: res}, true, nil
	}
	reply := make(chan endless.Outcome, 1)
	if err := s.sched.Submit(ctx, endless.Job{Coord: c, Version: v, Params: p, Reply: reply}); err != nil {
		return endless.Outcome{}, false, err
	}
	select {
	case o := <-reply:
		s.record(p, o)
		return o, false, nil
	case <-ctx.Done():
		return endless.Outcome{}, false, ctx.Err()
	}
}

// Snapshot exposes the scheduler's active parameters.
func (s *Server) Snapshot() (uint64, params.Parameters) { return s.sched.Snapshot() }

// ParamsHandler replaces the active parameters with a JSON document. Absent
// keys keep their current value.
func (s *Server) ParamsHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !s.opts.AllowRemote && !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		body, err := io.ReadAll(http.MaxBytesReader(rw, r.Body, 1<<20))
		if err != nil {
			respondJSON(rw, http.StatusBadRequest, observerproto.NewErrorMsg("BAD_PARAMS", err.Error()))
			return
		}
		if _, err := s.ApplyParams(body); err != nil {
			code := http.StatusServiceUnavailable
			switch {
			case errors.Is(err, params.ErrMalformed):
				code = http.StatusBadRequest
			case errors.Is(err, params.ErrInvalid), errors.Is(err, params.ErrDegenerateGrid):
				code = http.StatusUnprocessableEntity
			}
			respondJSON(rw, code, observerproto.NewErrorMsg("BAD_PARAMS", err.Error()))
			return
		}
		respondJSON(rw, http.StatusOK, s.paramsMsg())
	}
}

// ApplyParams overlays raw onto the active parameters and tells every
// connected viewer about the new version.
func (s *Server) ApplyParams(raw []byte) (uint64, error) {
	_, cur := s.sched.Snapshot()
	p, err := params.Overlay(cur, raw)
	if err != nil {
		return 0, err
	}
	v, err := s.sched.SetParams(p)
	if err != nil {
		return 0, err
	}
	s.log.Printf("params updated: version=%d digest=%s", v, p.Digest())
	s.broadcastParams()
	return v, nil
}

func (s *Server) paramsMsg() observerproto.ParamsMsg {
	v, p := s.sched.Snapshot()
	return newParamsMsg(v, p)
}

func newParamsMsg(v uint64, p params.Parameters) observerproto.ParamsMsg {
	return observerproto.ParamsMsg{
		Type:            observerproto.TypeParams,
		ProtocolVersion: observerproto.Version,
		ParamsVersion:   v,
		ParamsDigest:    p.Digest(),
		Params:          params.ToDocument(p),
	}
}

func (s *Server) broadcastParams() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for sess := range s.conns {
		select {
		case sess.paramsChanged <- struct{}{}:
		default:
			// Already pending.
		}
	}
}

// cached returns a chunk message from the artifact store when one exists for
// these parameters.
func (s *Server) cached(ctx context.Context, p params.Parameters, version uint64, c chunk.Coord) (observerproto.ChunkMsg, bool) {
	res, ok := s.cachedResult(ctx, p, c)
	if !ok {
		return observerproto.ChunkMsg{}, false
	}
	msg := observerproto.NewChunkMsg(res, version, p.MeshMode.String())
	msg.Cached = true
	return msg, true
}

func (s *Server) cachedResult(ctx context.Context, p params.Parameters, c chunk.Coord) (*chunk.Result, bool) {
	if s.opts.Cache == nil || p.Debug.RainPaths {
		return nil, false
	}
	a, err := s.opts.Cache.LoadChunk(ctx, p.Digest(), c.X, c.Y)
	if err != nil {
		if !errors.Is(err, chunkdb.ErrNotFound) {
			s.log.Printf("cache read %d,%d: %v", c.X, c.Y, err)
		}
		return nil, false
	}
	res, err := a.Result()
	if err != nil {
		return nil, false
	}
	return res, true
}

// record stores a fresh outcome in the cache and the generation log.
func (s *Server) record(p params.Parameters, o endless.Outcome) {
	digest := p.Digest()
	entry := persistlog.GenerationLogEntry{
		CX:           o.Coord.X,
		CZ:           o.Coord.Y,
		Version:      o.Version,
		ParamsDigest: digest,
		DurationMs:   float64(o.Elapsed.Microseconds()) / 1000,
	}
	if o.Err != nil {
		entry.Error = o.Err.Error()
	} else {
		entry.ChunkDigest = o.Result.Digest()
		entry.Droplets = o.Result.Erosion.Droplets
		entry.Steps = o.Result.Erosion.Steps
		entry.Eroded = o.Result.Erosion.Eroded
		entry.Deposited = o.Result.Erosion.Deposited
		if s.opts.Cache != nil {
			if err := s.opts.Cache.PutChunk(artifact.FromResult(o.Result, p.MeshMode, digest)); err != nil {
				s.log.Printf("cache write %d,%d: %v", o.Coord.X, o.Coord.Y, err)
			}
		}
	}
	if s.opts.GenLog != nil {
		if err := s.opts.GenLog.WriteEntry(entry); err != nil {
			s.log.Printf("generation log: %v", err)
		}
	}
}

// Sessions reports the number of connected viewers.
func (s *Server) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

func (s *Server) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Handshake: must send SUBSCRIBE first.
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var sub observerproto.SubscribeMsg
		if err := json.Unmarshal(msg, &sub); err != nil {
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad subscribe"), time.Now().Add(time.Second))
			return
		}
		if sub.Type != observerproto.TypeSubscribe || sub.ProtocolVersion != observerproto.Version {
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected SUBSCRIBE"), time.Now().Add(time.Second))
			return
		}
		normalizeSubscribe(&sub)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		sess := newSession(s, sub)
		s.mu.Lock()
		s.conns[sess] = struct{}{}
		s.mu.Unlock()
		defer func() {
			s.mu.Lock()
			delete(s.conns, sess)
			s.mu.Unlock()
		}()

		// Writer goroutine.
		writeErr := make(chan error, 1)
		go func() {
			for {
				select {
				case <-ctx.Done():
					writeErr <- ctx.Err()
					return
				case b := <-sess.out:
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						writeErr <- err
						cancel()
						return
					}
				}
			}
		}()

		go sess.run(ctx)

		// Reader loop: allow SUBSCRIBE updates.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			var sub observerproto.SubscribeMsg
			if err := json.Unmarshal(msg, &sub); err != nil {
				continue
			}
			if sub.Type != observerproto.TypeSubscribe || sub.ProtocolVersion != observerproto.Version {
				continue
			}
			normalizeSubscribe(&sub)
			select {
			case sess.subs <- sub:
			case <-ctx.Done():
			}
		}

		cancel()
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))

		// Best-effort wait for the writer to stop so it doesn't outlive conn.
		select {
		case <-writeErr:
		case <-time.After(500 * time.Millisecond):
		}
	}
}

func normalizeSubscribe(sub *observerproto.SubscribeMsg) {
	if !(sub.ViewDistance > 0) {
		sub.ViewDistance = endless.DefaultMaxViewDistance
	}
	if sub.ViewDistance > maxViewDistance {
		sub.ViewDistance = maxViewDistance
	}
	if sub.MaxChunks <= 0 {
		sub.MaxChunks = 256
	}
	if sub.MaxChunks > 1024 {
		sub.MaxChunks = 1024
	}
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("encode response: %v", err)
	}
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
