package endless

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"landmass.dev/internal/sim/params"
	"landmass.dev/internal/sim/terrain/chunk"
)

var ErrClosed = errors.New("scheduler closed")

type Job struct {
	Coord   chunk.Coord
	Version uint64
	Params  params.Parameters

	// Reply receives the outcome; nil sends to Scheduler.Outcomes.
	Reply chan<- Outcome
}

type Outcome struct {
	Coord   chunk.Coord
	Version uint64
	Result  *chunk.Result
	Err     error
	Elapsed time.Duration
}

// Current reports whether the outcome was generated from the given
// parameter version. Consumers drop outcomes that are not current.
func (o Outcome) Current(version uint64) bool { return o.Version == version }

// Scheduler owns the active parameter snapshot and a fixed pool of workers.
// Jobs carry their own snapshot, so SetParams never affects a job already
// queued.
type Scheduler struct {
	logger *log.Logger

	jobs chan Job
	out  chan Outcome
	done chan struct{}

	mu      sync.Mutex
	version uint64
	params  params.Parameters

	wg   sync.WaitGroup
	once sync.Once
}

func NewScheduler(p params.Parameters, workers int, logger *log.Logger) (*Scheduler, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if workers < 1 {
		workers = 1
	}
	s := &Scheduler{
		logger:  logger,
		jobs:    make(chan Job, workers*4),
		out:     make(chan Outcome, workers*4),
		done:    make(chan struct{}),
		version: 1,
		params:  p.Clone(),
	}
	for i := 0; i < workers; i++ {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.loop()
		}()
	}
	return s, nil
}

func (s *Scheduler) Outcomes() <-chan Outcome { return s.out }

// Snapshot returns the current version and a private copy of its parameters.
func (s *Scheduler) Snapshot() (uint64, params.Parameters) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version, s.params.Clone()
}

// Pending reports queued jobs not yet picked up by a worker.
func (s *Scheduler) Pending() int { return len(s.jobs) }

func (s *Scheduler) Version() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

// SetParams validates p and makes it the active snapshot. Outcomes of
// earlier versions stop being current.
func (s *Scheduler) SetParams(p params.Parameters) (uint64, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.version++
	s.params = p.Clone()
	return s.version, nil
}

// Request queues coord against the current snapshot.
func (s *Scheduler) Request(ctx context.Context, coord chunk.Coord, reply chan<- Outcome) error {
	v, p := s.Snapshot()
	return s.Submit(ctx, Job{Coord: coord, Version: v, Params: p, Reply: reply})
}

// Submit blocks until the job is queued, ctx is done or the scheduler closes.
func (s *Scheduler) Submit(ctx context.Context, job Job) error {
	select {
	case <-s.done:
		return ErrClosed
	default:
	}
	select {
	case s.jobs <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return ErrClosed
	}
}

// TrySubmit queues job only if there is room; it never blocks.
func (s *Scheduler) TrySubmit(job Job) (bool, error) {
	select {
	case <-s.done:
		return false, ErrClosed
	default:
	}
	select {
	case s.jobs <- job:
		return true, nil
	default:
		return false, nil
	}
}

// Close stops the workers and then closes Outcomes. Queued jobs that have not
// started are dropped.
func (s *Scheduler) Close() {
	s.once.Do(func() {
		close(s.done)
		s.wg.Wait()
		close(s.out)
	})
}

func (s *Scheduler) loop() {
	for {
		select {
		case <-s.done:
			return
		case job := <-s.jobs:
			o := s.run(job)
			dst := job.Reply
			if dst == nil {
				dst = s.out
			}
			select {
			case dst <- o:
			case <-s.done:
				return
			}
		}
	}
}

func (s *Scheduler) run(job Job) Outcome {
	start := time.Now()
	res, err := chunk.Generate(job.Coord, job.Params)
	o := Outcome{Coord: job.Coord, Version: job.Version, Result: res, Err: err, Elapsed: time.Since(start)}
	if err != nil && s.logger != nil {
		s.logger.Printf("chunk %d,%d v%d: %v", job.Coord.X, job.Coord.Y, job.Version, err)
	}
	return o
}
