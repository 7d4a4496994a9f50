// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package locate

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/relabs-tech/shuttle_tracker/internal/geo"
)

// PlaybackProvider walks a route polyline at a fixed ground speed.
// Used by the shuttle simulator and by tests that need deterministic
// movement without a GPS receiver.
type PlaybackProvider struct {
	path    *geo.Path
	speed   float64 // meters per second
	cadence time.Duration
	start   time.Time
}

// NewPlaybackProvider creates a playback source over the given waypoints.
// cadence is how often a Watch subscription emits (1 s is a realistic
// receiver rate).
func NewPlaybackProvider(waypoints []geo.Point, speedMps float64, cadence time.Duration) (*PlaybackProvider, error) {
	if len(waypoints) < 2 {
		return nil, errors.New("playback needs at least two waypoints")
	}
	if speedMps <= 0 {
		return nil, errors.New("playback speed must be positive")
	}
	if cadence <= 0 {
		cadence = time.Second
	}
	return &PlaybackProvider{
		path:    geo.NewPath(waypoints),
		speed:   speedMps,
		cadence: cadence,
		start:   time.Now(),
	}, nil
}

func (p *PlaybackProvider) at(t time.Time) geo.Point {
	elapsed := t.Sub(p.start).Seconds()
	return p.path.At(elapsed * p.speed)
}

type playbackSub struct {
	once sync.Once
	done chan struct{}
}

func (s *playbackSub) Stop() {
	s.once.Do(func() { close(s.done) })
}

// Watch emits the simulated position every cadence tick.
func (p *PlaybackProvider) Watch(opts Options, sink func(geo.Point), errSink func(error)) (Subscription, error) {
	sub := &playbackSub{done: make(chan struct{})}
	go func() {
		ticker := time.NewTicker(p.cadence)
		defer ticker.Stop()
		for {
			select {
			case <-sub.done:
				return
			case t := <-ticker.C:
				sink(p.at(t))
			}
		}
	}()
	return sub, nil
}

// Current returns the simulated position right now.
func (p *PlaybackProvider) Current(ctx context.Context, opts Options) (geo.Point, error) {
	return p.at(time.Now()), nil
}
