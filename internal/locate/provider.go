// Package locate samples the device's physical position under one of two
// policies: a standing provider subscription while driving, or one-shot
// requests on a fixed interval while riding.
package locate

import (
	"context"
	"errors"
	"time"

	"github.com/relabs-tech/shuttle_tracker/internal/geo"
)

var (
	// ErrTimeout means no fix arrived within Options.Timeout.
	ErrTimeout = errors.New("locate: timed out waiting for a fix")
	// ErrUnavailable means the provider cannot produce fixes at all
	// (no device, port gone, permission denied).
	ErrUnavailable = errors.New("locate: position unavailable")
)

// Options control how a fix is requested.
type Options struct {
	HighAccuracy bool // request best available accuracy
	Timeout      time.Duration
	NoCache      bool // never serve a previously computed fix
}

// Subscription is a handle on a standing watch. Stop is idempotent.
type Subscription interface {
	Stop()
}

// Provider is anything that can produce position fixes: a GPS receiver on
// a serial port, a route playback, a test fake.
type Provider interface {
	// Watch registers a standing subscription. The provider invokes sink
	// on every new fix at its own cadence and errSink on failures; a
	// first-fix wait longer than Options.Timeout reports ErrTimeout on
	// errSink once but does not cancel the watch. Fixes must be delivered
	// asynchronously, never from inside Watch itself.
	Watch(opts Options, sink func(geo.Point), errSink func(error)) (Subscription, error)

	// Current issues a single one-shot fix request, bounded by ctx.
	Current(ctx context.Context, opts Options) (geo.Point, error)
}
