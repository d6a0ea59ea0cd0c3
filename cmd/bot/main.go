package main

import (
	"encoding/json"
	"flag"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/websocket"

	"landmass.dev/internal/observerproto"
	"landmass.dev/internal/sim/terrain/chunk"
)

func main() {
	var (
		url      = flag.String("url", "ws://localhost:8080/v1/ws", "observer ws url")
		viewDist = flag.Float64("view_distance", 500, "view distance in world units")
		step     = flag.Float64("step", 150, "max distance moved per walk")
		every    = flag.Duration("every", 10*time.Second, "walk interval")
		seed     = flag.Int64("seed", time.Now().UnixNano(), "walk seed")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[bot] ", log.LstdFlags|log.Lmicroseconds)
	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	v := newViewer(float32(*viewDist))
	if err := conn.WriteJSON(v.subscribe()); err != nil {
		logger.Fatalf("send SUBSCRIBE: %v", err)
	}

	msgs := make(chan []byte, 64)
	go func() {
		defer close(msgs)
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				logger.Printf("read: %v", err)
				return
			}
			msgs <- msg
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	walk := time.NewTicker(*every)
	defer walk.Stop()
	r := rand.New(rand.NewSource(*seed))

	for {
		select {
		case <-stop:
			return
		case <-walk.C:
			v.walk(r, float32(*step))
			logger.Printf("walk to (%.1f, %.1f) holding=%d", v.center[0], v.center[1], len(v.chunks))
			if err := conn.WriteJSON(v.subscribe()); err != nil {
				logger.Printf("send SUBSCRIBE: %v", err)
				return
			}
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			if err := v.handle(msg, logger); err != nil {
				logger.Printf("handle: %v", err)
			}
		}
	}
}

// viewer mirrors the chunk set the server streams to one subscription.
type viewer struct {
	center       [2]float32
	viewDistance float32

	paramsVersion uint64
	chunks        map[chunk.Coord]string
}

func newViewer(viewDistance float32) *viewer {
	return &viewer{viewDistance: viewDistance, chunks: map[chunk.Coord]string{}}
}

func (v *viewer) subscribe() observerproto.SubscribeMsg {
	return observerproto.SubscribeMsg{
		Type:            observerproto.TypeSubscribe,
		ProtocolVersion: observerproto.Version,
		Center:          v.center,
		ViewDistance:    v.viewDistance,
	}
}

func (v *viewer) walk(r *rand.Rand, step float32) {
	v.center[0] += (r.Float32()*2 - 1) * step
	v.center[1] += (r.Float32()*2 - 1) * step
}

func (v *viewer) handle(msg []byte, logger *log.Logger) error {
	var base struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(msg, &base); err != nil {
		return err
	}
	switch base.Type {
	case observerproto.TypeChunk:
		var m observerproto.ChunkMsg
		if err := json.Unmarshal(msg, &m); err != nil {
			return err
		}
		res, err := m.Decode()
		if err != nil {
			return err
		}
		v.chunks[res.Coord] = m.Digest
		logger.Printf("CHUNK %d,%d v%d verts=%d cached=%t", m.CX, m.CZ, m.Version, m.Mesh.Vertices, m.Cached)

	case observerproto.TypeEvict:
		var m observerproto.ChunkEvictMsg
		if err := json.Unmarshal(msg, &m); err != nil {
			return err
		}
		delete(v.chunks, chunk.Coord{X: m.CX, Y: m.CZ})

	case observerproto.TypeParams:
		var m observerproto.ParamsMsg
		if err := json.Unmarshal(msg, &m); err != nil {
			return err
		}
		v.paramsVersion = m.ParamsVersion
		clear(v.chunks)
		logger.Printf("PARAMS v%d digest=%s", m.ParamsVersion, m.ParamsDigest)

	case observerproto.TypeError:
		var m observerproto.ErrorMsg
		if err := json.Unmarshal(msg, &m); err != nil {
			return err
		}
		logger.Printf("ERROR %s: %s", m.Code, m.Message)
	}
	return nil
}
