// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package feedserver is the location feed the trackers connect to: a
// websocket hub addressed by the same three path schemes the client
// speaks, an HTTP seed endpoint, and an optional MQTT mirror.
package feedserver

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/relabs-tech/shuttle_tracker/internal/catalog"
	"github.com/relabs-tech/shuttle_tracker/internal/channel"
	"github.com/relabs-tech/shuttle_tracker/internal/geo"
	"github.com/relabs-tech/shuttle_tracker/internal/track"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // map clients connect from anywhere
	},
}

// Server holds the hub, the shared position store, and the route catalog.
type Server struct {
	hub    *hub
	store  *track.Store
	cat    *catalog.Catalog
	mirror *Mirror
}

// NewServer wires a feed server. mirror may be nil-equivalent (disabled).
func NewServer(store *track.Store, cat *catalog.Catalog, mirror *Mirror) *Server {
	return &Server{
		hub:    newHub(),
		store:  store,
		cat:    cat,
		mirror: mirror,
	}
}

// Routes returns the feed's HTTP handler.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws/location/", s.handleWS)
	mux.HandleFunc("/api/location", s.handleSeed)
	mux.HandleFunc("/api/routes", s.handleRoutes)
	mux.HandleFunc("/api/health", s.handleHealth)
	return mux
}

// Run serves the feed until the listener fails.
func (s *Server) Run(addr string) error {
	log.Printf("feed: listening on %s", addr)
	return http.ListenAndServe(addr, s.Routes())
}

// parseWSPath maps a request path onto a subscription scope:
//
//	/ws/location/                          global
//	/ws/location/<role>/<routeID>/         one route
//	/ws/location/driver/<routeID>/<id>/    one driver
func (s *Server) parseWSPath(path string) (subKey, channel.Scope, error) {
	rest := strings.TrimPrefix(path, "/ws/location/")
	rest = strings.Trim(rest, "/")
	if rest == "" {
		return subKey{}, channel.Scope{}, nil
	}

	parts := strings.Split(rest, "/")
	role := parts[0]
	if role != "user" && role != "driver" {
		return subKey{}, channel.Scope{}, fmt.Errorf("unknown role %q", role)
	}
	switch len(parts) {
	case 2:
		routeID := parts[1]
		if _, ok := s.cat.Route(routeID); !ok {
			return subKey{}, channel.Scope{}, fmt.Errorf("unknown route %q", routeID)
		}
		return subKey{RouteID: routeID},
			channel.Scope{Role: role, RouteID: routeID}, nil
	case 3:
		if role != "driver" {
			return subKey{}, channel.Scope{}, fmt.Errorf("driver-scoped path needs the driver role")
		}
		routeID, driverID := parts[1], parts[2]
		if _, ok := s.cat.Route(routeID); !ok {
			return subKey{}, channel.Scope{}, fmt.Errorf("unknown route %q", routeID)
		}
		return subKey{RouteID: routeID, DriverID: driverID},
			channel.Scope{Role: role, RouteID: routeID, DriverID: driverID}, nil
	default:
		return subKey{}, channel.Scope{}, fmt.Errorf("unroutable path %q", path)
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	key, scope, err := s.parseWSPath(r.URL.Path)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("feed: websocket upgrade failed: %v", err)
		return
	}

	c := newClient(conn, key)
	s.hub.add(c)
	log.Printf("feed: client %s subscribed at %s", c.id, r.URL.Path)

	go c.writePump()
	s.readPump(c, scope)
}

// readPump consumes frames from one client. Valid updates go into the
// store and out to every covering subscriber; anything else is logged
// and dropped without touching the connection.
func (s *Server) readPump(c *client, scope channel.Scope) {
	defer func() {
		s.hub.remove(c)
		_ = c.conn.Close()
		log.Printf("feed: client %s gone", c.id)
	}()

	c.conn.SetReadLimit(4096)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("feed: read error from %s: %v", c.id, err)
			}
			return
		}

		u, err := channel.ParseUpdate(data, scope)
		if err != nil {
			// identity hellos land here too; neither is fatal
			log.Printf("feed: ignoring frame from %s: %v", c.id, err)
			continue
		}
		if _, ok := s.cat.Route(u.RouteID); !ok {
			log.Printf("feed: ignoring update for unknown route %q", u.RouteID)
			continue
		}

		s.accept(u)
	}
}

// accept records one update and distributes it.
func (s *Server) accept(u channel.Update) {
	pt := geo.Point{Latitude: u.Latitude, Longitude: u.Longitude}
	s.store.Apply(u.RouteID, u.DriverID, pt, time.Now())

	msg, err := json.Marshal(u)
	if err != nil {
		log.Printf("feed: marshal update: %v", err)
		return
	}
	s.hub.fanout(u.RouteID, u.DriverID, msg)
	if s.mirror != nil {
		s.mirror.Publish(u.RouteID, u.DriverID, msg)
	}
}

// handleSeed answers the trackers' one-shot startup fetch with the last
// known position on a route, falling back to the default center.
func (s *Server) handleSeed(w http.ResponseWriter, r *http.Request) {
	routeID := r.URL.Query().Get("route")

	var pt geo.Point
	if rec, ok := s.store.Latest(routeID); ok {
		pt = rec.Point
	} else {
		pt = s.store.Read(routeID, "").Point
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(pt); err != nil {
		log.Printf("feed: seed encode: %v", err)
	}
}

// handleRoutes serves the static route catalog to the view layer.
func (s *Server) handleRoutes(w http.ResponseWriter, r *http.Request) {
	type routeOut struct {
		ID        string       `json:"id"`
		Name      string       `json:"name"`
		Color     string       `json:"color"`
		Waypoints [][2]float64 `json:"waypoints"`
	}
	out := make([]routeOut, 0, len(s.cat.Routes))
	for _, rt := range s.cat.Routes {
		out = append(out, routeOut{ID: rt.ID, Name: rt.Name, Color: rt.Color, Waypoints: rt.Waypoints})
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(out); err != nil {
		log.Printf("feed: routes encode: %v", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"clients":   s.hub.count(),
		"positions": s.store.Len(),
	})
}
