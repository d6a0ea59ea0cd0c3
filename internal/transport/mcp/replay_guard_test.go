package mcp

import (
	"testing"
	"time"
)

func TestReplayGuard(t *testing.T) {
	g := newReplayGuard(10 * time.Second)
	t0 := time.Unix(1760000000, 0)

	steps := []struct {
		client, sig string
		at          time.Duration
		want        bool
	}{
		{"tuner", "a1", 0, true},
		{"tuner", "a1", time.Second, false},
		{"tuner", "b2", time.Second, true},
		{"viewer", "a1", 2 * time.Second, true},
		{"tuner", "a1", 11 * time.Second, true},
		{"tuner", "", 11 * time.Second, true},
		{"tuner", "", 11 * time.Second, true},
	}
	for i, st := range steps {
		if got := g.allow(st.client, st.sig, t0.Add(st.at)); got != st.want {
			t.Fatalf("step %d (%s/%s at %v): allow=%v want %v", i, st.client, st.sig, st.at, got, st.want)
		}
	}
}

func TestReplayGuard_DefaultTTLAndNil(t *testing.T) {
	if g := newReplayGuard(0); g.ttl != 2*signatureWindow {
		t.Fatalf("ttl=%v", g.ttl)
	}
	var g *replayGuard
	if !g.allow("x", "y", time.Now()) {
		t.Fatalf("nil guard should allow")
	}
}
