// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package tracker is the live location synchronization subsystem: it
// ties the role controller, the sampler, the feed channel, and the
// position store together and serializes all their callbacks onto one
// event loop. The view layer only ever talks to this package.
package tracker

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/relabs-tech/shuttle_tracker/internal/catalog"
	"github.com/relabs-tech/shuttle_tracker/internal/channel"
	"github.com/relabs-tech/shuttle_tracker/internal/geo"
	"github.com/relabs-tech/shuttle_tracker/internal/locate"
	"github.com/relabs-tech/shuttle_tracker/internal/session"
	"github.com/relabs-tech/shuttle_tracker/internal/track"
)

// SelfDriverID keys the device's own position while riding, when it does
// not represent any route entity.
const SelfDriverID = "self"

// Config for one tracker instance.
type Config struct {
	BaseURL        string // ws:// feed base
	Scheme         channel.Scheme
	SeedURL        string // optional one-shot HTTP seed, empty to skip
	Center         geo.Point
	DefaultRouteID string

	PollInterval   time.Duration // periodic sampling cadence
	FixTimeout     time.Duration // bound on waiting for a fix
	ReconnectDelay time.Duration

	// Notify, when set, is called from the event loop after every store
	// update. The view layer hangs its render refresh here.
	Notify func(track.Record)

	// Dial overrides the websocket dialer. Tests use it to feed
	// synthetic connections.
	Dial channel.Dialer
}

type eventKind int

const (
	evSample eventKind = iota
	evSampleErr
	evChannel
)

type event struct {
	kind    eventKind
	point   geo.Point
	err     error
	gen     uint64 // which connection an evChannel came from
	chEvent channel.Event
}

// Tracker is the subsystem facade.
type Tracker struct {
	cfg     Config
	cat     *catalog.Catalog
	store   *track.Store
	sampler *locate.Sampler
	ctrl    *session.Controller

	mu      sync.Mutex
	conn    *channel.Conn
	scope   channel.Scope
	connGen uint64 // bumped whenever a new connection is opened

	events chan event
	done   chan struct{}
	once   sync.Once
}

// New builds a tracker in rider mode on the default route. It does not
// touch the network until Start.
func New(cfg Config, cat *catalog.Catalog, provider locate.Provider, authorize session.Authorizer) *Tracker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 15 * time.Second
	}
	if cfg.FixTimeout <= 0 {
		cfg.FixTimeout = 5 * time.Second
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = 5 * time.Second
	}

	t := &Tracker{
		cfg:    cfg,
		cat:    cat,
		store:  track.NewStore(cfg.Center),
		events: make(chan event, 64),
		done:   make(chan struct{}),
	}

	t.sampler = locate.NewSampler(
		provider,
		locate.Options{HighAccuracy: true, Timeout: cfg.FixTimeout, NoCache: true},
		cfg.PollInterval,
		func(p geo.Point) { t.push(event{kind: evSample, point: p}) },
		func(err error) { t.push(event{kind: evSampleErr, err: err}) },
	)

	routeFor := func(driverID string) (string, bool) {
		r, ok := cat.RouteForDriver(driverID)
		return r.ID, ok
	}
	t.ctrl = session.NewController(cfg.DefaultRouteID, authorize, routeFor, t.applyTransition)

	return t
}

// Start seeds the store, opens the rider channel, begins periodic
// sampling, and runs the event loop until ctx is cancelled or Stop is
// called.
func (t *Tracker) Start(ctx context.Context) error {
	t.seed(ctx)

	if err := t.sampler.Start(locate.PolicyPeriodic); err != nil {
		// rider mode survives without local fixes; the feed still works
		log.Printf("tracker: periodic sampling unavailable: %v", err)
	}

	sc := scopeFor(t.ctrl.Session())
	addr := channel.Address(t.cfg.BaseURL, t.cfg.Scheme, sc)
	t.mu.Lock()
	t.scope = sc
	t.connGen++
	t.conn = channel.Open(addr, t.channelSink(t.connGen), t.connOptions(t.ctrl.Session()))
	t.mu.Unlock()

	go t.loop(ctx)
	return nil
}

// Stop tears the subsystem down: channel closed, sampler stopped, event
// loop drained. Records stay in the store for whoever still reads it.
func (t *Tracker) Stop() {
	t.once.Do(func() { close(t.done) })
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
	t.sampler.Stop()
}

// BecomeDriver switches this session to driver mode for the given
// identity, if the authorization gate allows it.
func (t *Tracker) BecomeDriver(driverID string) error {
	return t.ctrl.BecomeDriver(driverID)
}

// BecomeRider drops back to rider mode.
func (t *Tracker) BecomeRider() error {
	return t.ctrl.BecomeRider()
}

// Session returns the current role state.
func (t *Tracker) Session() session.Session {
	return t.ctrl.Session()
}

// Position answers the view layer's render tick. Unknown pairs come back
// at the default center, never empty.
func (t *Tracker) Position(routeID, driverID string) track.Record {
	return t.store.Read(routeID, driverID)
}

// Positions returns every record observed this session.
func (t *Tracker) Positions() []track.Record {
	return t.store.Snapshot()
}

// Catalog exposes the route catalog to the view layer.
func (t *Tracker) Catalog() *catalog.Catalog {
	return t.cat
}

// ConnState reports the channel state, for a status indicator.
func (t *Tracker) ConnState() channel.State {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return channel.StateDisconnected
	}
	return t.conn.State()
}

// SamplerPolicy reports the active sampling policy.
func (t *Tracker) SamplerPolicy() locate.Policy {
	return t.sampler.Active()
}

func (t *Tracker) push(ev event) {
	select {
	case <-t.done:
	case t.events <- ev:
	default:
		// loop is behind; positions are absolute, dropping one is safe
		log.Printf("tracker: event queue full, dropping %d", ev.kind)
	}
}

// channelSink binds a connection's events to its generation, so a frame
// queued before a re-address is still attributed to the connection that
// read it, not to whichever one is current by the time it is handled.
func (t *Tracker) channelSink(gen uint64) func(channel.Event) {
	return func(ev channel.Event) {
		t.push(event{kind: evChannel, gen: gen, chEvent: ev})
	}
}

func (t *Tracker) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.done:
			return
		case ev := <-t.events:
			t.handle(ev)
		}
	}
}

func (t *Tracker) handle(ev event) {
	switch ev.kind {
	case evSample:
		t.handleSample(ev.point)
	case evSampleErr:
		log.Printf("tracker: location sampling error: %v", ev.err)
	case evChannel:
		t.handleChannel(ev)
	}
}

// handleSample applies a local fix to the store and, in driver mode,
// publishes it. The local view always reflects the freshest local fix
// even when the publish is dropped.
func (t *Tracker) handleSample(p geo.Point) {
	s := t.ctrl.Session()
	now := time.Now()

	if s.Mode != session.ModeDriver {
		t.store.Apply(s.RouteID, SelfDriverID, p, now)
		t.notify(t.store.Read(s.RouteID, SelfDriverID))
		return
	}

	t.store.Apply(s.RouteID, s.DriverID, p, now)
	t.notify(t.store.Read(s.RouteID, s.DriverID))

	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn != nil {
		conn.Publish(t.publishFor(s, p))
	}
}

// publishFor shapes the outbound message for the active address scheme:
// the payload only carries what the address does not already encode.
func (t *Tracker) publishFor(s session.Session, p geo.Point) channel.Publish {
	msg := channel.Publish{Latitude: p.Latitude, Longitude: p.Longitude}
	switch t.cfg.Scheme {
	case channel.SchemeGlobal:
		msg.DriverID = s.DriverID
		msg.RouteID = s.RouteID
		msg.Mode = "driver"
	case channel.SchemeRoute:
		msg.DriverID = s.DriverID
	}
	return msg
}

func (t *Tracker) handleChannel(ev event) {
	switch ev.chEvent.Kind {
	case channel.KindOpened:
		log.Printf("tracker: channel open")
	case channel.KindMessage:
		t.mu.Lock()
		sc := t.scope
		stale := ev.gen != t.connGen
		t.mu.Unlock()
		if stale {
			// queued frame from a superseded connection; resolving it
			// against the new scope would file it under the wrong route
			log.Printf("tracker: discarding frame from stale connection")
			return
		}
		u, err := channel.ParseUpdate(ev.chEvent.Payload, sc)
		if err != nil {
			log.Printf("tracker: discarding inbound message: %v", err)
			return
		}
		s := t.ctrl.Session()
		if s.Mode == session.ModeDriver && u.RouteID == s.RouteID && u.DriverID == s.DriverID {
			// our own update echoed back; the local fix is fresher
			return
		}
		pt := geo.Point{Latitude: u.Latitude, Longitude: u.Longitude}
		t.store.Apply(u.RouteID, u.DriverID, pt, time.Now())
		t.notify(t.store.Read(u.RouteID, u.DriverID))
	case channel.KindError:
		log.Printf("tracker: channel error: %v", ev.chEvent.Err)
	case channel.KindClosed:
		// records freeze at their last value; reconnect is the
		// channel's own job
		log.Printf("tracker: channel closed")
	}
}

func (t *Tracker) notify(rec track.Record) {
	if t.cfg.Notify != nil {
		t.cfg.Notify(rec)
	}
}

func scopeFor(s session.Session) channel.Scope {
	sc := channel.Scope{Role: "user", RouteID: s.RouteID}
	if s.Mode == session.ModeDriver {
		sc.Role = "driver"
		sc.DriverID = s.DriverID
	}
	return sc
}

// applyTransition performs the ordered side effects of a role change:
// (1) sampler policy swap, (2) channel re-address. The controller
// commits the session afterwards.
func (t *Tracker) applyTransition(next session.Session) error {
	policy := locate.PolicyPeriodic
	if next.Mode == session.ModeDriver {
		policy = locate.PolicyContinuous
	}
	if err := t.sampler.Start(policy); err != nil {
		if next.Mode == session.ModeDriver {
			// a driver without a fix source is useless; stay a rider
			if rerr := t.sampler.Start(locate.PolicyPeriodic); rerr != nil {
				log.Printf("tracker: periodic fallback failed too: %v", rerr)
			}
			return err
		}
		log.Printf("tracker: periodic sampling unavailable: %v", err)
	}

	sc := scopeFor(next)
	addr := channel.Address(t.cfg.BaseURL, t.cfg.Scheme, sc)

	t.mu.Lock()
	old := t.conn
	if old != nil && old.Addr() == addr {
		t.scope = sc
		t.mu.Unlock()
		return nil
	}
	t.scope = sc
	// the generation moves with the scope, so frames the old connection
	// already read can never resolve against the new addressing
	t.connGen++
	gen := t.connGen
	t.mu.Unlock()

	// Old link goes down before the new one comes up, so stale
	// addressing can never carry fresh publishes.
	if old != nil {
		old.Close()
	}
	nc := channel.Open(addr, t.channelSink(gen), t.connOptions(next))
	t.mu.Lock()
	t.conn = nc
	t.mu.Unlock()
	return nil
}

func (t *Tracker) connOptions(s session.Session) channel.Options {
	opts := channel.Options{
		Dial:           t.cfg.Dial,
		ReconnectDelay: t.cfg.ReconnectDelay,
	}
	if s.Mode == session.ModeDriver {
		hello := channel.Hello{DriverID: s.DriverID, RouteID: s.RouteID, Mode: "driver"}
		opts.Hello = func() interface{} { return hello }
	}
	return opts
}
