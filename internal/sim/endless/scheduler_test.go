package endless

import (
	"context"
	"errors"
	"testing"
	"time"

	"landmass.dev/internal/sim/params"
	"landmass.dev/internal/sim/terrain/chunk"
)

func testParams() params.Parameters {
	p := params.Defaults()
	p.ChunkSize = 16
	p.Erosion.Hydraulic.Iterations = 40
	return p
}

func recv(t *testing.T, ch <-chan Outcome) Outcome {
	t.Helper()
	select {
	case o := <-ch:
		return o
	case <-time.After(10 * time.Second):
		t.Fatalf("timed out waiting for outcome")
	}
	return Outcome{}
}

func TestSchedulerMatchesDirectGeneration(t *testing.T) {
	s, err := NewScheduler(testParams(), 3, nil)
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	coords := []chunk.Coord{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: -1, Y: 2}, {X: 5, Y: -5}}
	for _, c := range coords {
		if err := s.Request(ctx, c, nil); err != nil {
			t.Fatalf("Request: %v", err)
		}
	}

	got := map[chunk.Coord]string{}
	for range coords {
		o := recv(t, s.Outcomes())
		if o.Err != nil {
			t.Fatalf("outcome %v: %v", o.Coord, o.Err)
		}
		if !o.Current(s.Version()) {
			t.Fatalf("outcome not current")
		}
		got[o.Coord] = o.Result.Digest()
	}
	for _, c := range coords {
		want, err := chunk.Generate(c, testParams())
		if err != nil {
			t.Fatalf("Generate: %v", err)
		}
		if got[c] != want.Digest() {
			t.Fatalf("coord %v: scheduler digest differs from direct generation", c)
		}
	}
}

func TestSchedulerSetParamsSupersedes(t *testing.T) {
	s, err := NewScheduler(testParams(), 1, nil)
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}
	defer s.Close()

	reply := make(chan Outcome, 2)
	if err := s.Request(context.Background(), chunk.Coord{}, reply); err != nil {
		t.Fatalf("Request: %v", err)
	}
	old := recv(t, reply)

	p := testParams()
	p.Noise.Seed = 11
	v, err := s.SetParams(p)
	if err != nil {
		t.Fatalf("SetParams: %v", err)
	}
	if old.Current(v) {
		t.Fatalf("old outcome still current after SetParams")
	}

	if err := s.Request(context.Background(), chunk.Coord{}, reply); err != nil {
		t.Fatalf("Request: %v", err)
	}
	fresh := recv(t, reply)
	if !fresh.Current(v) {
		t.Fatalf("fresh outcome version=%d want %d", fresh.Version, v)
	}
	if fresh.Result.Digest() == old.Result.Digest() {
		t.Fatalf("seed change had no effect")
	}
}

func TestSchedulerSnapshotIsolation(t *testing.T) {
	s, err := NewScheduler(testParams(), 1, nil)
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}
	defer s.Close()

	_, p := s.Snapshot()
	p.Regions[0].Height = 0.99
	_, again := s.Snapshot()
	if again.Regions[0].Height == 0.99 {
		t.Fatalf("snapshot aliases scheduler state")
	}
}

func TestSchedulerRejectsInvalid(t *testing.T) {
	bad := testParams()
	bad.Noise.FBM.Gain = 1
	if _, err := NewScheduler(bad, 1, nil); !errors.Is(err, params.ErrInvalid) {
		t.Fatalf("NewScheduler err=%v", err)
	}
	s, err := NewScheduler(testParams(), 1, nil)
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}
	defer s.Close()
	if _, err := s.SetParams(bad); !errors.Is(err, params.ErrInvalid) {
		t.Fatalf("SetParams err=%v", err)
	}
	if s.Version() != 1 {
		t.Fatalf("version bumped on invalid params")
	}
}

func TestSchedulerJobErrorsReported(t *testing.T) {
	s, err := NewScheduler(testParams(), 1, nil)
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}
	defer s.Close()
	bad := testParams()
	bad.ChunkSize = 1
	if err := s.Submit(context.Background(), Job{Coord: chunk.Coord{}, Version: 9, Params: bad}); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	o := recv(t, s.Outcomes())
	if !errors.Is(o.Err, params.ErrDegenerateGrid) || o.Result != nil {
		t.Fatalf("outcome=%+v", o)
	}
}

func TestSchedulerClosed(t *testing.T) {
	s, err := NewScheduler(testParams(), 2, nil)
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}
	s.Close()
	s.Close()
	if err := s.Request(context.Background(), chunk.Coord{}, nil); !errors.Is(err, ErrClosed) {
		t.Fatalf("err=%v", err)
	}
	if _, ok := <-s.Outcomes(); ok {
		t.Fatalf("outcomes not closed")
	}
}

func TestSchedulerTrySubmit(t *testing.T) {
	s, err := NewScheduler(testParams(), 1, nil)
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}
	v, p := s.Snapshot()
	reply := make(chan Outcome, 1)
	ok, err := s.TrySubmit(Job{Coord: chunk.Coord{X: 2}, Version: v, Params: p, Reply: reply})
	if err != nil || !ok {
		t.Fatalf("TrySubmit ok=%v err=%v", ok, err)
	}
	if o := recv(t, reply); o.Coord.X != 2 || o.Err != nil {
		t.Fatalf("outcome=%+v", o)
	}
	s.Close()
	if _, err := s.TrySubmit(Job{}); !errors.Is(err, ErrClosed) {
		t.Fatalf("err=%v", err)
	}
}
