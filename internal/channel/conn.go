// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package channel maintains a best-effort always-on link to the remote
// location feed. A lost link re-enters connecting after a fixed delay,
// forever, unless the owner tears the connection down.
package channel

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// State of one logical connection.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateOpen
	StateClosing
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	default:
		return "disconnected"
	}
}

// Wire is the minimal socket surface the connection needs. gorilla's
// *websocket.Conn satisfies it; tests substitute a scripted fake.
type Wire interface {
	ReadMessage() (int, []byte, error)
	WriteJSON(v interface{}) error
	Close() error
}

// Dialer opens a Wire to an address.
type Dialer func(ctx context.Context, addr string) (Wire, error)

func gorillaDial(ctx context.Context, addr string) (Wire, error) {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, addr, nil)
	if err != nil {
		return nil, err
	}
	return ws, nil
}

// Options tune a connection. Zero values fall back to the reference
// behavior: gorilla dialer, 5 s reconnect delay, 10 s dial timeout.
type Options struct {
	Dial           Dialer
	ReconnectDelay time.Duration
	DialTimeout    time.Duration
	// Hello, when set, produces a one-time identity message sent on every
	// open before any update traffic.
	Hello func() interface{}
}

// Conn owns the socket handle, the reconnect timer, and the
// should-reconnect flag for one logical address. All of that state lives
// here rather than in ambient variables so teardown can invalidate it
// atomically.
type Conn struct {
	addr    string
	onEvent func(Event)
	dial    Dialer
	delay   time.Duration
	dialTO  time.Duration
	hello   func() interface{}

	mu              sync.Mutex
	state           State
	ws              Wire
	attempt         int
	dropped         int
	shouldReconnect bool
	connecting      bool // at most one attempt in flight
	timer           *time.Timer
}

// Open creates a connection to addr and starts connecting immediately.
// Every lifecycle change and inbound frame is delivered to onEvent.
func Open(addr string, onEvent func(Event), opts Options) *Conn {
	c := &Conn{
		addr:            addr,
		onEvent:         onEvent,
		dial:            opts.Dial,
		delay:           opts.ReconnectDelay,
		dialTO:          opts.DialTimeout,
		hello:           opts.Hello,
		shouldReconnect: true,
	}
	if c.dial == nil {
		c.dial = gorillaDial
	}
	if c.delay <= 0 {
		c.delay = 5 * time.Second
	}
	if c.dialTO <= 0 {
		c.dialTO = 10 * time.Second
	}
	go c.connect()
	return c
}

// Addr returns the address this connection was opened against.
func (c *Conn) Addr() string { return c.addr }

// State returns the current connection state.
func (c *Conn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Attempts returns how many connect attempts have been made.
func (c *Conn) Attempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempt
}

// Dropped returns how many publishes were discarded while the link was
// not open.
func (c *Conn) Dropped() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dropped
}

// Publish sends one message if the link is open. If it is not, the
// message is dropped without queueing; the next sample will try again.
// Returns whether the message went out.
func (c *Conn) Publish(v interface{}) bool {
	c.mu.Lock()
	if c.state != StateOpen || c.ws == nil {
		c.dropped++
		c.mu.Unlock()
		return false
	}
	ws := c.ws
	c.mu.Unlock()

	if err := ws.WriteJSON(v); err != nil {
		// the read loop will notice the dead socket and reconnect
		c.mu.Lock()
		c.dropped++
		c.mu.Unlock()
		log.Printf("channel: publish failed: %v", err)
		return false
	}
	return true
}

// Close tears the connection down for good. The should-reconnect flag is
// cleared before anything else so a reconnect timer firing mid-teardown
// cannot resurrect the link. Safe to call more than once.
func (c *Conn) Close() {
	c.mu.Lock()
	c.shouldReconnect = false
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	ws := c.ws
	c.ws = nil
	if ws != nil {
		c.state = StateClosing
	} else {
		c.state = StateDisconnected
	}
	c.mu.Unlock()

	if ws != nil {
		_ = ws.Close()
		c.mu.Lock()
		c.state = StateDisconnected
		c.mu.Unlock()
	}
}

func (c *Conn) emit(ev Event) {
	if c.onEvent != nil {
		c.onEvent(ev)
	}
}

func (c *Conn) connect() {
	c.mu.Lock()
	if !c.shouldReconnect || c.connecting || c.state == StateOpen {
		c.mu.Unlock()
		return
	}
	c.connecting = true
	c.state = StateConnecting
	c.attempt++
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), c.dialTO)
	ws, err := c.dial(ctx, c.addr)
	cancel()

	c.mu.Lock()
	c.connecting = false
	if !c.shouldReconnect {
		// torn down while dialing
		c.state = StateDisconnected
		c.mu.Unlock()
		if err == nil {
			_ = ws.Close()
		}
		return
	}
	if err != nil {
		c.state = StateDisconnected
		c.mu.Unlock()
		c.emit(Event{Kind: KindError, Err: err})
		c.scheduleReconnect()
		return
	}
	// Identity goes out before the state flips to open, so no publish can
	// interleave with it on the socket.
	hello := c.hello
	c.mu.Unlock()
	if hello != nil {
		if msg := hello(); msg != nil {
			if werr := ws.WriteJSON(msg); werr != nil {
				log.Printf("channel: hello failed: %v", werr)
			}
		}
	}

	c.mu.Lock()
	if !c.shouldReconnect {
		c.state = StateDisconnected
		c.mu.Unlock()
		_ = ws.Close()
		return
	}
	c.ws = ws
	c.state = StateOpen
	c.mu.Unlock()

	c.emit(Event{Kind: KindOpened})
	go c.readLoop(ws)
}

func (c *Conn) readLoop(ws Wire) {
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			c.mu.Lock()
			if c.ws != ws {
				// superseded or explicitly closed; not our loss to report
				c.mu.Unlock()
				return
			}
			c.ws = nil
			c.state = StateDisconnected
			tearingDown := !c.shouldReconnect
			c.mu.Unlock()

			c.emit(Event{Kind: KindClosed})
			if !tearingDown {
				log.Printf("channel: connection to %s lost, reconnect in %s", c.addr, c.delay)
				c.scheduleReconnect()
			}
			return
		}
		c.emit(Event{Kind: KindMessage, Payload: data})
	}
}

func (c *Conn) scheduleReconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.shouldReconnect || c.timer != nil {
		return
	}
	c.timer = time.AfterFunc(c.delay, func() {
		c.mu.Lock()
		c.timer = nil
		if !c.shouldReconnect {
			// teardown raced the timer; do nothing
			c.mu.Unlock()
			return
		}
		c.mu.Unlock()
		c.connect()
	})
}
