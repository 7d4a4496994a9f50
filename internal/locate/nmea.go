// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package locate

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	nmea "github.com/adrianmo/go-nmea"
	serial "github.com/jacobsa/go-serial/serial"

	"github.com/relabs-tech/shuttle_tracker/internal/geo"
)

// SerialProvider reads NMEA sentences from a GPS receiver on a serial
// port and turns valid RMC fixes into position readings.
type SerialProvider struct {
	Port string // e.g. /dev/serial0, /dev/ttyUSB0
	Baud uint
}

// NewSerialProvider returns a provider for the given serial port.
func NewSerialProvider(port string, baud uint) *SerialProvider {
	return &SerialProvider{Port: port, Baud: baud}
}

func (p *SerialProvider) open() (io.ReadWriteCloser, error) {
	serialOpts := serial.OpenOptions{
		PortName:              p.Port,
		BaudRate:              p.Baud,
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       1,
		ParityMode:            serial.PARITY_NONE,
		InterCharacterTimeout: 0,
	}
	port, err := serial.Open(serialOpts)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrUnavailable, p.Port, err)
	}
	return port, nil
}

type serialSub struct {
	port io.Closer
	once sync.Once
	done chan struct{}
}

func (s *serialSub) Stop() {
	s.once.Do(func() {
		close(s.done)
		_ = s.port.Close()
	})
}

// Watch opens the port and streams RMC fixes until stopped. The cadence
// is whatever the receiver emits; there is no internal timer. If no valid
// fix arrives within opts.Timeout the error sink gets ErrTimeout once and
// the watch keeps reading (the receiver's own retry semantics apply).
func (p *SerialProvider) Watch(opts Options, sink func(geo.Point), errSink func(error)) (Subscription, error) {
	port, err := p.open()
	if err != nil {
		return nil, err
	}
	sub := &serialSub{port: port, done: make(chan struct{})}

	var firstFix sync.Once
	if opts.Timeout > 0 {
		timer := time.AfterFunc(opts.Timeout, func() {
			firstFix.Do(func() {
				if errSink != nil {
					errSink(ErrTimeout)
				}
			})
		})
		// a real fix beats the timer
		origSink := sink
		sink = func(pt geo.Point) {
			firstFix.Do(func() { timer.Stop() })
			origSink(pt)
		}
	}

	go func() {
		reader := bufio.NewReader(port)
		for {
			pt, err := readFix(reader)
			if err != nil {
				select {
				case <-sub.done:
					// stopped by the caller; the read error is ours
					return
				default:
				}
				log.Printf("gps: read error: %v", err)
				if errSink != nil {
					errSink(fmt.Errorf("%w: %v", ErrUnavailable, err))
				}
				return
			}
			select {
			case <-sub.done:
				return
			default:
			}
			sink(pt)
		}
	}()

	return sub, nil
}

// Current opens the port and blocks until the first valid RMC fix or the
// context deadline, whichever comes first.
func (p *SerialProvider) Current(ctx context.Context, opts Options) (geo.Point, error) {
	port, err := p.open()
	if err != nil {
		return geo.Point{}, err
	}
	defer port.Close()

	type result struct {
		pt  geo.Point
		err error
	}
	ch := make(chan result, 1)
	go func() {
		reader := bufio.NewReader(port)
		pt, err := readFix(reader)
		ch <- result{pt, err}
	}()

	select {
	case <-ctx.Done():
		// unblock the reader goroutine
		_ = port.Close()
		return geo.Point{}, ErrTimeout
	case r := <-ch:
		if r.err != nil {
			return geo.Point{}, fmt.Errorf("%w: %v", ErrUnavailable, r.err)
		}
		return r.pt, nil
	}
}

// readFix consumes NMEA sentences until a usable RMC fix appears.
// Partial or garbled sentences are skipped; a receiver warming up emits
// plenty of those.
func readFix(reader *bufio.Reader) (geo.Point, error) {
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return geo.Point{}, err
		}

		line = strings.TrimSpace(line)
		if line == "" || !strings.HasPrefix(line, "$") {
			continue
		}

		sentence, err := nmea.Parse(line)
		if err != nil {
			continue
		}
		if sentence.DataType() != nmea.TypeRMC {
			continue
		}
		m := sentence.(nmea.RMC)
		if m.Validity != nmea.ValidRMC {
			// void fix; keep reading
			continue
		}
		return geo.Point{Latitude: m.Latitude, Longitude: m.Longitude}, nil
	}
}
