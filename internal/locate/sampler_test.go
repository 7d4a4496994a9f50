package locate

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/relabs-tech/shuttle_tracker/internal/geo"
)

// fakeProvider records subscriptions and answers one-shot requests from a
// settable point.
type fakeProvider struct {
	mu       sync.Mutex
	point    geo.Point
	err      error
	currents int
	watches  int
	sink     func(geo.Point)
	errSink  func(error)
	stops    int
}

type fakeSub struct{ p *fakeProvider }

func (s *fakeSub) Stop() {
	s.p.mu.Lock()
	s.p.stops++
	s.p.sink = nil
	s.p.errSink = nil
	s.p.mu.Unlock()
}

func (p *fakeProvider) Watch(opts Options, sink func(geo.Point), errSink func(error)) (Subscription, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	p.watches++
	p.sink = sink
	p.errSink = errSink
	return &fakeSub{p: p}, nil
}

func (p *fakeProvider) Current(ctx context.Context, opts Options) (geo.Point, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.currents++
	if p.err != nil {
		return geo.Point{}, p.err
	}
	return p.point, nil
}

// push delivers a fix through whatever subscription is live, mimicking the
// asynchronous delivery a real provider does.
func (p *fakeProvider) push(pt geo.Point) bool {
	p.mu.Lock()
	sink := p.sink
	p.mu.Unlock()
	if sink == nil {
		return false
	}
	sink(pt)
	return true
}

func (p *fakeProvider) currentCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.currents
}

func collectPoints() (func(geo.Point), chan geo.Point) {
	ch := make(chan geo.Point, 32)
	return func(p geo.Point) { ch <- p }, ch
}

func TestSampler_PeriodicSamplesImmediately(t *testing.T) {
	fp := &fakeProvider{point: geo.Point{Latitude: 1, Longitude: 2}}
	sink, points := collectPoints()
	s := NewSampler(fp, Options{}, time.Hour, sink, nil)

	if err := s.Start(PolicyPeriodic); err != nil {
		t.Fatalf("Start(periodic) error = %v", err)
	}
	defer s.Stop()

	select {
	case p := <-points:
		if p.Latitude != 1 {
			t.Errorf("first sample = %+v", p)
		}
	case <-time.After(time.Second):
		t.Fatal("periodic policy should sample once immediately")
	}
}

func TestSampler_PeriodicTicks(t *testing.T) {
	fp := &fakeProvider{point: geo.Point{Latitude: 1}}
	sink, points := collectPoints()
	s := NewSampler(fp, Options{}, 10*time.Millisecond, sink, nil)

	if err := s.Start(PolicyPeriodic); err != nil {
		t.Fatalf("Start error = %v", err)
	}
	defer s.Stop()

	for i := 0; i < 3; i++ {
		select {
		case <-points:
		case <-time.After(time.Second):
			t.Fatalf("only %d samples arrived, want 3", i)
		}
	}
	if fp.currentCalls() < 3 {
		t.Errorf("Current called %d times, want at least 3", fp.currentCalls())
	}
}

func TestSampler_ContinuousForwardsFixes(t *testing.T) {
	fp := &fakeProvider{}
	sink, points := collectPoints()
	s := NewSampler(fp, Options{}, time.Hour, sink, nil)

	if err := s.Start(PolicyContinuous); err != nil {
		t.Fatalf("Start(continuous) error = %v", err)
	}
	defer s.Stop()

	if !fp.push(geo.Point{Latitude: 7, Longitude: 8}) {
		t.Fatal("no live subscription after Start(continuous)")
	}
	select {
	case p := <-points:
		if p.Latitude != 7 {
			t.Errorf("forwarded fix = %+v", p)
		}
	case <-time.After(time.Second):
		t.Fatal("fix never reached the sink")
	}
}

func TestSampler_PolicySwitchStopsOldSource(t *testing.T) {
	fp := &fakeProvider{point: geo.Point{Latitude: 1}}
	sink, _ := collectPoints()
	s := NewSampler(fp, Options{}, time.Hour, sink, nil)

	if err := s.Start(PolicyContinuous); err != nil {
		t.Fatalf("Start error = %v", err)
	}
	if err := s.Start(PolicyPeriodic); err != nil {
		t.Fatalf("switch to periodic error = %v", err)
	}
	defer s.Stop()

	fp.mu.Lock()
	stops := fp.stops
	fp.mu.Unlock()
	if stops != 1 {
		t.Errorf("old subscription stopped %d times, want 1", stops)
	}
	if got := s.Active(); got != PolicyPeriodic {
		t.Errorf("Active() = %v, want periodic", got)
	}
}

func TestSampler_StaleDeliveryDropped(t *testing.T) {
	fp := &fakeProvider{}
	sink, points := collectPoints()
	s := NewSampler(fp, Options{}, time.Hour, sink, nil)

	if err := s.Start(PolicyContinuous); err != nil {
		t.Fatalf("Start error = %v", err)
	}
	fp.mu.Lock()
	oldSink := fp.sink
	fp.mu.Unlock()

	s.Stop()

	// a callback from the superseded subscription arrives late
	oldSink(geo.Point{Latitude: 99})

	select {
	case p := <-points:
		t.Errorf("stale fix %+v reached the sink after Stop", p)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSampler_StopIsIdempotent(t *testing.T) {
	fp := &fakeProvider{}
	s := NewSampler(fp, Options{}, time.Hour, func(geo.Point) {}, nil)

	s.Stop()
	if err := s.Start(PolicyContinuous); err != nil {
		t.Fatalf("Start error = %v", err)
	}
	s.Stop()
	s.Stop()
	if got := s.Active(); got != PolicyNone {
		t.Errorf("Active() = %v, want none", got)
	}
}

func TestSampler_WatchFailureSurfaces(t *testing.T) {
	fp := &fakeProvider{err: ErrUnavailable}
	s := NewSampler(fp, Options{}, time.Hour, func(geo.Point) {}, nil)

	err := s.Start(PolicyContinuous)
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("Start error = %v, want ErrUnavailable", err)
	}
}

func TestSampler_PeriodicErrorGoesToErrSink(t *testing.T) {
	fp := &fakeProvider{err: ErrTimeout}
	errs := make(chan error, 8)
	s := NewSampler(fp, Options{}, time.Hour, func(geo.Point) {}, func(err error) { errs <- err })

	if err := s.Start(PolicyPeriodic); err != nil {
		t.Fatalf("Start error = %v", err)
	}
	defer s.Stop()

	select {
	case err := <-errs:
		if !errors.Is(err, ErrTimeout) {
			t.Errorf("error = %v, want ErrTimeout", err)
		}
	case <-time.After(time.Second):
		t.Fatal("sample failure never reached the error sink")
	}
}
