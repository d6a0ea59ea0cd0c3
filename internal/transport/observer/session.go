package observer

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"landmass.dev/internal/observerproto"
	"landmass.dev/internal/sim/endless"
	"landmass.dev/internal/sim/params"
	"landmass.dev/internal/sim/terrain/chunk"
)

const (
	replanEvery        = 250 * time.Millisecond
	sessionReplyBuffer = 64
)

// session streams the chunks around one viewer. All fields except the
// channels are owned by run.
type session struct {
	srv *Server
	sub observerproto.SubscribeMsg

	subs          chan observerproto.SubscribeMsg
	paramsChanged chan struct{}
	out           chan []byte
	replies       chan endless.Outcome

	version uint64
	params  params.Parameters

	want    map[chunk.Coord]bool
	sent    map[chunk.Coord]uint64
	pending map[chunk.Coord]uint64
	backlog bool

	// inflight counts submitted jobs whose reply has not been read yet,
	// including superseded ones. Keeping it within cap(replies) means a
	// worker never blocks delivering to this session.
	inflight int
}

func newSession(srv *Server, sub observerproto.SubscribeMsg) *session {
	return &session{
		srv:           srv,
		sub:           sub,
		subs:          make(chan observerproto.SubscribeMsg, 4),
		paramsChanged: make(chan struct{}, 1),
		out:           make(chan []byte, 64),
		replies:       make(chan endless.Outcome, sessionReplyBuffer),
		want:          map[chunk.Coord]bool{},
		sent:          map[chunk.Coord]uint64{},
		pending:       map[chunk.Coord]uint64{},
	}
}

func (s *session) run(ctx context.Context) {
	ticker := time.NewTicker(replanEvery)
	defer ticker.Stop()

	if !s.plan(ctx) {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case sub := <-s.subs:
			s.sub = sub
		case <-s.paramsChanged:
		case o := <-s.replies:
			if !s.handle(ctx, o) {
				return
			}
			if !s.backlog {
				continue
			}
		case <-ticker.C:
		}
		if !s.plan(ctx) {
			return
		}
	}
}

// plan syncs the client with the active parameters and its view. Missing
// chunks are requested nearest first; a full job queue or reply budget ends
// the pass and the next tick or reply retries.
func (s *session) plan(ctx context.Context) bool {
	v, p := s.srv.sched.Snapshot()
	if s.version != 0 && v != s.version {
		if !s.send(ctx, newParamsMsg(v, p)) {
			return false
		}
		// Everything on the client is stale now; outstanding jobs are
		// dropped by the version check when they arrive.
		clear(s.sent)
		clear(s.pending)
	}
	s.version, s.params = v, p

	planner := endless.Planner{MaxViewDistance: s.sub.ViewDistance, WorldScale: s.params.WorldScale}
	center := mgl32.Vec2(s.sub.Center)

	clear(s.want)
	var order []chunk.Coord
	for _, c := range planner.ChunksInView(center) {
		if len(order) >= s.sub.MaxChunks {
			break
		}
		if planner.Visible(center, c) {
			s.want[c] = true
			order = append(order, c)
		}
	}

	for c := range s.sent {
		if s.want[c] {
			continue
		}
		delete(s.sent, c)
		if !s.send(ctx, observerproto.ChunkEvictMsg{
			Type:            observerproto.TypeEvict,
			ProtocolVersion: observerproto.Version,
			CX:              c.X,
			CZ:              c.Y,
		}) {
			return false
		}
	}

	s.backlog = false
	for _, c := range order {
		if s.sent[c] == s.version || s.pending[c] == s.version {
			continue
		}
		if msg, ok := s.srv.cached(ctx, s.params, s.version, c); ok {
			if !s.send(ctx, msg) {
				return false
			}
			s.sent[c] = s.version
			continue
		}
		if s.inflight >= cap(s.replies) {
			s.backlog = true
			break
		}
		ok, err := s.srv.sched.TrySubmit(endless.Job{Coord: c, Version: s.version, Params: s.params, Reply: s.replies})
		if errors.Is(err, endless.ErrClosed) {
			return false
		}
		if !ok {
			s.backlog = true
			break
		}
		s.pending[c] = s.version
		s.inflight++
	}
	return true
}

func (s *session) handle(ctx context.Context, o endless.Outcome) bool {
	s.inflight--
	if s.pending[o.Coord] == o.Version {
		delete(s.pending, o.Coord)
	}
	if o.Version != s.version || !o.Current(s.srv.sched.Version()) {
		return true
	}
	s.srv.record(s.params, o)

	if o.Err != nil {
		e := observerproto.NewErrorMsg("GENERATION_FAILED", o.Err.Error())
		cx, cz := o.Coord.X, o.Coord.Y
		e.CX, e.CZ = &cx, &cz
		return s.send(ctx, e)
	}
	if !s.want[o.Coord] {
		return true
	}
	s.sent[o.Coord] = o.Version
	return s.send(ctx, observerproto.NewChunkMsg(o.Result, o.Version, s.params.MeshMode.String()))
}

func (s *session) send(ctx context.Context, v any) bool {
	b, err := json.Marshal(v)
	if err != nil {
		s.srv.log.Printf("marshal %T: %v", v, err)
		return true
	}
	select {
	case s.out <- b:
		return true
	case <-ctx.Done():
		return false
	}
}
