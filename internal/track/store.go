// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package track keeps the last known position of every moving entity
// observed during the session. Records are never removed; a dead channel
// or a stopped sampler freezes them at their last value.
package track

import (
	"sync"
	"time"

	"github.com/relabs-tech/shuttle_tracker/internal/geo"
)

// Key identifies one moving entity on one route. DriverID may be empty
// for route-level records (single-entity deployments, seed data).
type Key struct {
	RouteID  string
	DriverID string
}

// Record is the reconciled last known position for one key.
type Record struct {
	RouteID     string    `json:"routeId"`
	DriverID    string    `json:"driverId,omitempty"`
	Point       geo.Point `json:"point"`
	LastUpdated time.Time `json:"lastUpdated"`
}

// Store is a mutex-guarded last-received-wins position table.
// There is no out-of-order rejection: the transport offers no ordering
// guarantee, so none is asserted here.
type Store struct {
	mu      sync.RWMutex
	records map[Key]Record
	center  geo.Point
}

// NewStore creates an empty store that answers reads for unknown keys
// with the given default center.
func NewStore(center geo.Point) *Store {
	return &Store{
		records: make(map[Key]Record),
		center:  center,
	}
}

// Apply upserts the record for (routeID, driverID). Records are only ever
// replaced, never deleted.
func (s *Store) Apply(routeID, driverID string, p geo.Point, ts time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[Key{RouteID: routeID, DriverID: driverID}] = Record{
		RouteID:     routeID,
		DriverID:    driverID,
		Point:       p,
		LastUpdated: ts,
	}
}

// Read returns the record for (routeID, driverID), or a record at the
// default center when the pair has never been observed. The view layer
// always has something to render.
func (s *Store) Read(routeID, driverID string) Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if rec, ok := s.records[Key{RouteID: routeID, DriverID: driverID}]; ok {
		return rec
	}
	return Record{RouteID: routeID, DriverID: driverID, Point: s.center}
}

// Latest returns the most recently updated record on the given route,
// across all drivers. Used by the seed endpoint.
func (s *Store) Latest(routeID string) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var best Record
	found := false
	for k, rec := range s.records {
		if k.RouteID != routeID {
			continue
		}
		if !found || rec.LastUpdated.After(best.LastUpdated) {
			best = rec
			found = true
		}
	}
	return best, found
}

// Snapshot returns a copy of every record, for the view layer's render tick.
func (s *Store) Snapshot() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Record, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec)
	}
	return out
}

// Len reports the number of records observed so far.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
