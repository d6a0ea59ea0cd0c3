// Package mcp exposes terrain inspection and tuning as JSON-RPC tools for
// agent clients.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"landmass.dev/internal/sim/endless"
	"landmass.dev/internal/sim/params"
	"landmass.dev/internal/sim/terrain/chunk"
)

// Terrain is the generation backend the tools drive.
type Terrain interface {
	Snapshot() (uint64, params.Parameters)
	ApplyParams(raw []byte) (uint64, error)
	Chunk(ctx context.Context, c chunk.Coord) (endless.Outcome, bool, error)
}

type Config struct {
	Terrain    Terrain
	HMACSecret string
}

type Server struct {
	terrain    Terrain
	hmacSecret []byte
	replay     *replayGuard
	now        func() time.Time
}

func NewServer(cfg Config) (*Server, error) {
	if cfg.Terrain == nil {
		return nil, fmt.Errorf("nil terrain backend")
	}
	s := &Server{terrain: cfg.Terrain, now: time.Now}
	if secret := strings.TrimSpace(cfg.HMACSecret); secret != "" {
		s.hmacSecret = []byte(secret)
		s.replay = newReplayGuard(0)
	}
	return s, nil
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/mcp", s.handleMCP)
	return mux
}

func (s *Server) handleMCP(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		rw.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 4<<20))
	if err != nil {
		rw.WriteHeader(http.StatusBadRequest)
		_, _ = rw.Write([]byte("bad body"))
		return
	}
	_ = r.Body.Close()

	if len(s.hmacSecret) > 0 {
		now := s.now()
		vr := verifyHMAC(r, body, s.hmacSecret, now)
		if vr.HTTPStatus != 0 {
			rw.WriteHeader(vr.HTTPStatus)
			_, _ = rw.Write([]byte(vr.Message))
			return
		}
		if !s.replay.allow(vr.ClientID, vr.Signature, now) {
			rw.WriteHeader(http.StatusUnauthorized)
			_, _ = rw.Write([]byte("replayed request"))
			return
		}
	}

	req, err := parseRPCRequest(body)
	if err != nil {
		rw.WriteHeader(http.StatusBadRequest)
		_, _ = rw.Write([]byte("bad jsonrpc request"))
		return
	}

	resp := s.dispatch(r.Context(), req)
	rw.Header().Set("content-type", "application/json")
	_ = json.NewEncoder(rw).Encode(resp)
}

func (s *Server) dispatch(ctx context.Context, req rpcRequest) rpcResponse {
	switch req.Method {
	case "initialize":
		return rpcOK(req.ID, map[string]any{
			"protocolVersion": "2024-11-05",
			"capabilities": map[string]any{
				"tools": map[string]any{"listChanged": false},
			},
		})

	case "list_tools":
		return rpcOK(req.ID, map[string]any{"tools": toolsList()})

	case "call_tool":
		var p struct {
			Name      string          `json:"name"`
			Arguments json.RawMessage `json:"arguments"`
		}
		if len(req.Params) == 0 {
			return rpcErr(req.ID, codeInvalidParams, "missing params", nil)
		}
		if err := json.Unmarshal(req.Params, &p); err != nil {
			return rpcErr(req.ID, codeInvalidParams, "bad params", err.Error())
		}
		if p.Name == "" {
			return rpcErr(req.ID, codeInvalidParams, "missing tool name", nil)
		}
		if !isKnownTool(p.Name) {
			return rpcErr(req.ID, codeMethodNotFound, "tool not found", map[string]any{"name": p.Name})
		}
		out, err := s.callTool(ctx, p.Name, p.Arguments)
		if err != nil {
			return rpcErr(req.ID, codeToolFailed, err.Error(), nil)
		}
		return rpcOK(req.ID, out)

	default:
		return rpcErr(req.ID, codeMethodNotFound, "method not found", nil)
	}
}

const (
	toolGetParams     = "landmass.get_params"
	toolListFields    = "landmass.list_fields"
	toolSetParams     = "landmass.set_params"
	toolDescribeChunk = "landmass.describe_chunk"
)

func toolsList() []map[string]any {
	empty := map[string]any{"type": "object", "properties": map[string]any{}, "additionalProperties": false}
	return []map[string]any{
		{
			"name":        toolGetParams,
			"description": "Get the active terrain parameters, their version and digest.",
			"inputSchema": empty,
		},
		{
			"name":        toolListFields,
			"description": "List every tunable parameter path with its kind, range and options.",
			"inputSchema": empty,
		},
		{
			"name":        toolSetParams,
			"description": "Overlay a partial parameter document on the active parameters. Viewers regenerate their chunks.",
			"inputSchema": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"params": map[string]any{"type": "object"},
				},
				"required": []string{"params"},
			},
		},
		{
			"name":        toolDescribeChunk,
			"description": "Generate (or load) one chunk and summarize its heights, regions and erosion.",
			"inputSchema": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"cx": map[string]any{"type": "integer"},
					"cz": map[string]any{"type": "integer"},
				},
				"required": []string{"cx", "cz"},
			},
		},
	}
}

func isKnownTool(name string) bool {
	switch name {
	case toolGetParams, toolListFields, toolSetParams, toolDescribeChunk:
		return true
	default:
		return false
	}
}

type ParamsResult struct {
	ParamsVersion uint64          `json:"params_version"`
	ParamsDigest  string          `json:"params_digest"`
	Params        params.Document `json:"params"`
}

type RegionShare struct {
	Name     string  `json:"name"`
	Fraction float64 `json:"fraction"`
}

type ChunkSummary struct {
	CX            int           `json:"cx"`
	CZ            int           `json:"cz"`
	ParamsVersion uint64        `json:"params_version"`
	Digest        string        `json:"digest"`
	Cached        bool          `json:"cached"`
	MinHeight     float32       `json:"min_height"`
	MaxHeight     float32       `json:"max_height"`
	MeanHeight    float64       `json:"mean_height"`
	Vertices      int           `json:"vertices"`
	Triangles     int           `json:"triangles"`
	Regions       []RegionShare `json:"regions"`
	Droplets      int           `json:"droplets"`
	Eroded        float64       `json:"eroded"`
	Deposited     float64       `json:"deposited"`
}

func (s *Server) callTool(ctx context.Context, name string, args json.RawMessage) (any, error) {
	switch name {
	case toolGetParams:
		v, p := s.terrain.Snapshot()
		return ParamsResult{ParamsVersion: v, ParamsDigest: p.Digest(), Params: params.ToDocument(p)}, nil

	case toolListFields:
		return map[string]any{"fields": params.Fields()}, nil

	case toolSetParams:
		var a struct {
			Params json.RawMessage `json:"params"`
		}
		if err := json.Unmarshal(args, &a); err != nil {
			return nil, fmt.Errorf("bad arguments: %w", err)
		}
		if len(a.Params) == 0 {
			return nil, fmt.Errorf("missing params")
		}
		if _, err := s.terrain.ApplyParams(a.Params); err != nil {
			return nil, err
		}
		v, p := s.terrain.Snapshot()
		return ParamsResult{ParamsVersion: v, ParamsDigest: p.Digest(), Params: params.ToDocument(p)}, nil

	case toolDescribeChunk:
		var a struct {
			CX *int `json:"cx"`
			CZ *int `json:"cz"`
		}
		if err := json.Unmarshal(args, &a); err != nil {
			return nil, fmt.Errorf("bad arguments: %w", err)
		}
		if a.CX == nil || a.CZ == nil {
			return nil, errors.New("missing cx/cz")
		}
		_, p := s.terrain.Snapshot()
		o, cached, err := s.terrain.Chunk(ctx, chunk.Coord{X: *a.CX, Y: *a.CZ})
		if err != nil {
			return nil, err
		}
		if o.Err != nil {
			return nil, o.Err
		}
		return summarize(o, cached, p), nil

	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

func summarize(o endless.Outcome, cached bool, p params.Parameters) ChunkSummary {
	res := o.Result
	sum := ChunkSummary{
		CX:            o.Coord.X,
		CZ:            o.Coord.Y,
		ParamsVersion: o.Version,
		Digest:        res.Digest(),
		Cached:        cached,
		MinHeight:     float32(math.Inf(1)),
		MaxHeight:     float32(math.Inf(-1)),
		Vertices:      len(res.Mesh.Positions),
		Triangles:     len(res.Mesh.Indices) / 3,
		Droplets:      res.Erosion.Droplets,
		Eroded:        res.Erosion.Eroded,
		Deposited:     res.Erosion.Deposited,
	}
	var total float64
	for _, h := range res.Field.Data {
		sum.MinHeight = min(sum.MinHeight, h)
		sum.MaxHeight = max(sum.MaxHeight, h)
		total += float64(h)
	}
	if n := len(res.Field.Data); n > 0 {
		sum.MeanHeight = total / float64(n)
	}

	counts := make([]int, len(p.Regions)+1)
	for _, id := range res.Regions {
		if int(id) < len(counts) {
			counts[id]++
		}
	}
	for i, c := range counts {
		if c == 0 {
			continue
		}
		name := "Unclassified"
		if i < len(p.Regions) {
			name = p.Regions[i].Name
		}
		sum.Regions = append(sum.Regions, RegionShare{Name: name, Fraction: float64(c) / float64(len(res.Regions))})
	}
	return sum
}
