package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"landmass.dev/internal/sim/endless"
	"landmass.dev/internal/sim/params"
	"landmass.dev/internal/sim/terrain/chunk"
)

// stubTerrain generates synchronously without a scheduler.
type stubTerrain struct {
	mu      sync.Mutex
	version uint64
	p       params.Parameters
}

func newStub() *stubTerrain {
	p := params.Defaults()
	p.ChunkSize = 12
	p.Erosion.Hydraulic.Iterations = 10
	return &stubTerrain{version: 1, p: p}
}

func (s *stubTerrain) Snapshot() (uint64, params.Parameters) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version, s.p.Clone()
}

func (s *stubTerrain) ApplyParams(raw []byte) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := params.Overlay(s.p, raw)
	if err != nil {
		return 0, err
	}
	s.version++
	s.p = p
	return s.version, nil
}

func (s *stubTerrain) Chunk(ctx context.Context, c chunk.Coord) (endless.Outcome, bool, error) {
	v, p := s.Snapshot()
	res, err := chunk.Generate(c, p)
	return endless.Outcome{Coord: c, Version: v, Result: res, Err: err}, false, nil
}

func rpcPost(t *testing.T, base string, payload any, headers map[string]string) (int, rpcResponse) {
	t.Helper()
	b, _ := json.Marshal(payload)
	req, _ := http.NewRequest("POST", base+"/mcp", bytes.NewReader(b))
	req.Header.Set("content-type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer res.Body.Close()
	var out rpcResponse
	if res.StatusCode == http.StatusOK {
		if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
			t.Fatalf("decode: %v", err)
		}
	}
	return res.StatusCode, out
}

func callTool(name string, args any) map[string]any {
	return map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "call_tool",
		"params":  map[string]any{"name": name, "arguments": args},
	}
}

// resultInto re-decodes the generic result into v.
func resultInto(t *testing.T, resp rpcResponse, v any) {
	t.Helper()
	if resp.Error != nil {
		t.Fatalf("rpc error: %+v", resp.Error)
	}
	b, _ := json.Marshal(resp.Result)
	if err := json.Unmarshal(b, v); err != nil {
		t.Fatalf("result: %v", err)
	}
}

func newTestServer(t *testing.T, cfg Config) *httptest.Server {
	t.Helper()
	s, err := NewServer(cfg)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func TestMCP_Initialize_And_ListTools(t *testing.T) {
	ts := newTestServer(t, Config{Terrain: newStub()})

	_, initResp := rpcPost(t, ts.URL, map[string]any{"jsonrpc": "2.0", "id": 1, "method": "initialize"}, nil)
	if initResp.Error != nil {
		t.Fatalf("initialize error: %+v", initResp.Error)
	}

	_, lt := rpcPost(t, ts.URL, map[string]any{"jsonrpc": "2.0", "id": 2, "method": "list_tools"}, nil)
	var out struct {
		Tools []struct {
			Name string `json:"name"`
		} `json:"tools"`
	}
	resultInto(t, lt, &out)
	if len(out.Tools) != 4 {
		t.Fatalf("expected 4 tools, got %d", len(out.Tools))
	}
	for _, tool := range out.Tools {
		if !isKnownTool(tool.Name) {
			t.Fatalf("listed tool %q is not callable", tool.Name)
		}
	}
}

func TestMCP_CallTool_Unknown(t *testing.T) {
	ts := newTestServer(t, Config{Terrain: newStub()})
	_, resp := rpcPost(t, ts.URL, callTool("nope", map[string]any{}), nil)
	if resp.Error == nil || resp.Error.Code != codeMethodNotFound {
		t.Fatalf("expected tool not found, got %+v", resp.Error)
	}
}

func TestMCP_SetAndGetParams(t *testing.T) {
	stub := newStub()
	ts := newTestServer(t, Config{Terrain: stub})

	_, resp := rpcPost(t, ts.URL, callTool(toolSetParams, map[string]any{"params": map[string]any{"noise": map[string]any{"seed": 77}}}), nil)
	var set ParamsResult
	resultInto(t, resp, &set)
	if set.ParamsVersion != 2 || set.Params.Noise.Seed != 77 {
		t.Fatalf("set result: %+v", set)
	}

	_, resp = rpcPost(t, ts.URL, callTool(toolGetParams, map[string]any{}), nil)
	var got ParamsResult
	resultInto(t, resp, &got)
	_, cur := stub.Snapshot()
	if got.ParamsDigest != cur.Digest() || got.ParamsVersion != 2 {
		t.Fatalf("get result: %+v", got)
	}

	_, resp = rpcPost(t, ts.URL, callTool(toolSetParams, map[string]any{"params": map[string]any{"noise": map[string]any{"gain": 1}}}), nil)
	if resp.Error == nil || resp.Error.Code != codeToolFailed {
		t.Fatalf("expected tool failure for gain 1, got %+v", resp.Error)
	}
	if v, _ := stub.Snapshot(); v != 2 {
		t.Fatalf("rejected params bumped the version")
	}
}

func TestMCP_ListFields(t *testing.T) {
	ts := newTestServer(t, Config{Terrain: newStub()})
	_, resp := rpcPost(t, ts.URL, callTool(toolListFields, map[string]any{}), nil)
	var out struct {
		Fields []params.FieldMeta `json:"fields"`
	}
	resultInto(t, resp, &out)
	if len(out.Fields) != len(params.Fields()) {
		t.Fatalf("got %d fields", len(out.Fields))
	}
}

func TestMCP_DescribeChunk(t *testing.T) {
	stub := newStub()
	ts := newTestServer(t, Config{Terrain: stub})

	_, resp := rpcPost(t, ts.URL, callTool(toolDescribeChunk, map[string]any{"cx": 2, "cz": -3}), nil)
	var sum ChunkSummary
	resultInto(t, resp, &sum)

	_, p := stub.Snapshot()
	want, err := chunk.Generate(chunk.Coord{X: 2, Y: -3}, p)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if sum.Digest != want.Digest() || sum.CX != 2 || sum.CZ != -3 {
		t.Fatalf("summary: %+v", sum)
	}
	if sum.Vertices != 12*12 || sum.Triangles != 2*11*11 {
		t.Fatalf("mesh counts: %d verts %d tris", sum.Vertices, sum.Triangles)
	}
	if sum.MinHeight > sum.MaxHeight || sum.MeanHeight < float64(sum.MinHeight) || sum.MeanHeight > float64(sum.MaxHeight) {
		t.Fatalf("height stats: %+v", sum)
	}
	var total float64
	for _, r := range sum.Regions {
		total += r.Fraction
	}
	if total < 0.999 || total > 1.001 {
		t.Fatalf("region fractions sum to %v", total)
	}

	_, resp = rpcPost(t, ts.URL, callTool(toolDescribeChunk, map[string]any{"cx": 1}), nil)
	if resp.Error == nil {
		t.Fatalf("expected error without cz")
	}
}

func TestMCP_HMAC(t *testing.T) {
	secret := "topsecret"
	s, err := NewServer(Config{Terrain: newStub(), HMACSecret: secret})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	now := time.UnixMilli(1700000000000)
	s.now = func() time.Time { return now }
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	payload := map[string]any{"jsonrpc": "2.0", "id": 1, "method": "list_tools"}
	body, _ := json.Marshal(payload)
	tsStr := strconv.FormatInt(now.UnixMilli(), 10)
	headers := map[string]string{
		headerClientID:  "agent_1",
		headerTS:        tsStr,
		headerNonce:     "n1",
		headerSignature: signHMAC([]byte(secret), canonicalString(tsStr, "POST", "/mcp", "agent_1", "n1", body)),
	}

	if code, _ := rpcPost(t, ts.URL, payload, nil); code != http.StatusUnauthorized {
		t.Fatalf("unsigned request: status %d", code)
	}
	if code, resp := rpcPost(t, ts.URL, payload, headers); code != http.StatusOK || resp.Error != nil {
		t.Fatalf("signed request: status %d err %+v", code, resp.Error)
	}
	if code, _ := rpcPost(t, ts.URL, payload, headers); code != http.StatusUnauthorized {
		t.Fatalf("replayed request: status %d", code)
	}
}
