package locate

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/relabs-tech/shuttle_tracker/internal/geo"
)

// Policy selects how the sampler produces readings.
type Policy int

const (
	// PolicyNone: sampler is stopped.
	PolicyNone Policy = iota
	// PolicyContinuous: standing provider subscription, provider-determined cadence.
	PolicyContinuous
	// PolicyPeriodic: one-shot request immediately, then every Interval.
	PolicyPeriodic
)

func (p Policy) String() string {
	switch p {
	case PolicyContinuous:
		return "continuous"
	case PolicyPeriodic:
		return "periodic"
	default:
		return "none"
	}
}

// Sampler drives exactly one policy at a time against a Provider and
// forwards readings to a sink. Switching policy stops the previous
// subscription before the new one starts, and readings from a superseded
// subscription are recognized by generation and dropped, so two sources
// never write to the sink concurrently.
type Sampler struct {
	provider Provider
	opts     Options
	interval time.Duration
	sink     func(geo.Point)
	errSink  func(error)

	mu       sync.Mutex
	policy   Policy
	gen      uint64 // bumped on every start/stop; stale callbacks carry an old gen
	sub      Subscription
	stopPoll chan struct{}
}

// NewSampler wires a sampler to a provider and its sinks. interval is the
// periodic-policy cadence (15 s in the reference behavior).
func NewSampler(provider Provider, opts Options, interval time.Duration, sink func(geo.Point), errSink func(error)) *Sampler {
	return &Sampler{
		provider: provider,
		opts:     opts,
		interval: interval,
		sink:     sink,
		errSink:  errSink,
	}
}

// Start switches the sampler to the given policy, stopping whatever was
// running first. Start(PolicyNone) is equivalent to Stop.
func (s *Sampler) Start(policy Policy) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked()
	s.gen++
	gen := s.gen

	switch policy {
	case PolicyContinuous:
		sub, err := s.provider.Watch(s.opts,
			func(p geo.Point) { s.deliver(gen, p) },
			func(err error) { s.fail(gen, err) },
		)
		if err != nil {
			return fmt.Errorf("start continuous sampling: %w", err)
		}
		s.sub = sub
	case PolicyPeriodic:
		stop := make(chan struct{})
		s.stopPoll = stop
		go s.pollLoop(gen, stop)
	case PolicyNone:
		// stopped above
	default:
		return fmt.Errorf("unknown sampling policy %d", policy)
	}

	s.policy = policy
	return nil
}

// Stop halts sampling. Stopping twice, or stopping a sampler that was
// never started, is a no-op.
func (s *Sampler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
	s.gen++
	s.policy = PolicyNone
}

// Active reports the currently running policy.
func (s *Sampler) Active() Policy {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.policy
}

// stopLocked tears down the running subscription or poll loop.
// Callers must hold s.mu.
func (s *Sampler) stopLocked() {
	if s.sub != nil {
		s.sub.Stop()
		s.sub = nil
	}
	if s.stopPoll != nil {
		close(s.stopPoll)
		s.stopPoll = nil
	}
}

// pollLoop samples immediately on activation and then every interval.
// A failed sample is reported and retried at the next natural tick only.
func (s *Sampler) pollLoop(gen uint64, stop chan struct{}) {
	s.sampleOnce(gen)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.sampleOnce(gen)
		}
	}
}

func (s *Sampler) sampleOnce(gen uint64) {
	ctx := context.Background()
	if s.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}
	p, err := s.provider.Current(ctx, s.opts)
	if err != nil {
		s.fail(gen, err)
		return
	}
	s.deliver(gen, p)
}

func (s *Sampler) deliver(gen uint64, p geo.Point) {
	s.mu.Lock()
	stale := gen != s.gen
	s.mu.Unlock()
	if stale {
		return
	}
	s.sink(p)
}

func (s *Sampler) fail(gen uint64, err error) {
	s.mu.Lock()
	stale := gen != s.gen
	s.mu.Unlock()
	if stale || s.errSink == nil {
		return
	}
	s.errSink(err)
}
