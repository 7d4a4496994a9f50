// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package feedserver

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/relabs-tech/shuttle_tracker/internal/catalog"
	"github.com/relabs-tech/shuttle_tracker/internal/channel"
	"github.com/relabs-tech/shuttle_tracker/internal/geo"
	"github.com/relabs-tech/shuttle_tracker/internal/track"
)

var testCenter = geo.Point{Latitude: 39.747389, Longitude: -105.224338}

const testCatalogYAML = `
routes:
  - id: silver
    name: Silver Line
    color: "#C0C0C0"
    waypoints:
      - [39.751230, -105.222302]
      - [39.753914, -105.226298]
    drivers: [silver-1]
  - id: gold
    name: Gold Line
    color: "#FFD700"
    waypoints:
      - [39.747389, -105.224338]
      - [39.750100, -105.226500]
    drivers: [gold-1]
`

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	cat, err := catalog.Parse([]byte(testCatalogYAML))
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	srv := NewServer(track.NewStore(testCenter), cat, nil)
	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(ts.Close)
	return srv, ts
}

func wsURL(ts *httptest.Server, path string) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + path
}

func dialWS(t *testing.T, ts *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts, path), nil)
	if err != nil {
		t.Fatalf("dial %s: %v", path, err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readUpdate(t *testing.T, conn *websocket.Conn) channel.Update {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var u channel.Update
	if err := json.Unmarshal(data, &u); err != nil {
		t.Fatalf("unmarshal %s: %v", data, err)
	}
	return u
}

func TestParseWSPath(t *testing.T) {
	srv, _ := newTestServer(t)

	tests := []struct {
		path    string
		wantKey subKey
		wantErr bool
	}{
		{"/ws/location/", subKey{}, false},
		{"/ws/location/user/silver/", subKey{RouteID: "silver"}, false},
		{"/ws/location/driver/silver/", subKey{RouteID: "silver"}, false},
		{"/ws/location/driver/silver/silver-1/", subKey{RouteID: "silver", DriverID: "silver-1"}, false},
		{"/ws/location/user/silver/silver-1/", subKey{}, true},
		{"/ws/location/user/nowhere/", subKey{}, true},
		{"/ws/location/spectator/silver/", subKey{}, true},
		{"/ws/location/driver/silver/silver-1/extra/", subKey{}, true},
	}

	for _, tt := range tests {
		key, _, err := srv.parseWSPath(tt.path)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseWSPath(%q) error = %v, wantErr %v", tt.path, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && key != tt.wantKey {
			t.Errorf("parseWSPath(%q) key = %+v, want %+v", tt.path, key, tt.wantKey)
		}
	}
}

func TestFeed_DriverPublishFansOut(t *testing.T) {
	srv, ts := newTestServer(t)

	global := dialWS(t, ts, "/ws/location/")
	rider := dialWS(t, ts, "/ws/location/user/silver/")
	driver := dialWS(t, ts, "/ws/location/driver/silver/silver-1/")

	// driver-scoped address: identity comes from the path
	if err := driver.WriteJSON(channel.Publish{Latitude: 39.7600, Longitude: -105.2200}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	for name, conn := range map[string]*websocket.Conn{"rider": rider, "global": global} {
		u := readUpdate(t, conn)
		if u.RouteID != "silver" || u.DriverID != "silver-1" {
			t.Errorf("%s saw identity (%q, %q), want (silver, silver-1)", name, u.RouteID, u.DriverID)
		}
		if u.Latitude != 39.7600 {
			t.Errorf("%s saw latitude %f", name, u.Latitude)
		}
	}

	rec := srv.store.Read("silver", "silver-1")
	if rec.Point.Latitude != 39.7600 {
		t.Errorf("store latitude = %f, want 39.7600", rec.Point.Latitude)
	}
}

func TestFeed_RouteScopingIsolatesRoutes(t *testing.T) {
	_, ts := newTestServer(t)

	silverRider := dialWS(t, ts, "/ws/location/user/silver/")
	goldDriver := dialWS(t, ts, "/ws/location/driver/gold/gold-1/")

	if err := goldDriver.WriteJSON(channel.Publish{Latitude: 1, Longitude: 2}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	_ = silverRider.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	if _, _, err := silverRider.ReadMessage(); err == nil {
		t.Error("silver subscriber received a gold update")
	}
}

func TestFeed_HelloAndGarbageAreIgnored(t *testing.T) {
	_, ts := newTestServer(t)

	rider := dialWS(t, ts, "/ws/location/user/silver/")
	driver := dialWS(t, ts, "/ws/location/driver/silver/silver-1/")

	if err := driver.WriteJSON(channel.Hello{DriverID: "silver-1", RouteID: "silver", Mode: "driver"}); err != nil {
		t.Fatalf("hello: %v", err)
	}
	if err := driver.WriteMessage(websocket.TextMessage, []byte("{broken")); err != nil {
		t.Fatalf("garbage: %v", err)
	}
	if err := driver.WriteJSON(channel.Publish{Latitude: 39.7600, Longitude: -105.2200}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	// only the real update comes through
	u := readUpdate(t, rider)
	if u.Latitude != 39.7600 {
		t.Errorf("first delivered frame has latitude %f, want 39.7600", u.Latitude)
	}
}

func TestFeed_UnknownPathRejected(t *testing.T) {
	_, ts := newTestServer(t)

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(ts, "/ws/location/user/nowhere/"), nil)
	if err == nil {
		t.Fatal("dial to an unknown route should fail")
	}
	if resp == nil || resp.StatusCode != http.StatusNotFound {
		t.Errorf("handshake response = %+v, want 404", resp)
	}
}

func TestFeed_SeedEndpoint(t *testing.T) {
	srv, ts := newTestServer(t)

	get := func(url string) geo.Point {
		t.Helper()
		resp, err := http.Get(url)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		defer resp.Body.Close()
		var pt geo.Point
		if err := json.NewDecoder(resp.Body).Decode(&pt); err != nil {
			t.Fatalf("decode: %v", err)
		}
		return pt
	}

	// nothing observed yet: default center
	if pt := get(ts.URL + "/api/location?route=silver"); pt != testCenter {
		t.Errorf("cold seed = %+v, want center", pt)
	}

	srv.store.Apply("silver", "silver-1", geo.Point{Latitude: 39.76, Longitude: -105.22}, time.Now())
	if pt := get(ts.URL + "/api/location?route=silver"); pt.Latitude != 39.76 {
		t.Errorf("warm seed = %+v, want the last position", pt)
	}
}

func TestFeed_RoutesEndpoint(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/routes")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()

	var routes []struct {
		ID    string `json:"id"`
		Color string `json:"color"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&routes); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(routes) != 2 || routes[0].ID != "silver" || routes[0].Color != "#C0C0C0" {
		t.Errorf("routes = %+v", routes)
	}
}

func TestFeed_HealthEndpoint(t *testing.T) {
	_, ts := newTestServer(t)
	dialWS(t, ts, "/ws/location/")

	// subscription registration races the handshake returning
	deadline := time.Now().Add(time.Second)
	for {
		resp, err := http.Get(ts.URL + "/api/health")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		var body struct {
			Clients   int `json:"clients"`
			Positions int `json:"positions"`
		}
		err = json.NewDecoder(resp.Body).Decode(&body)
		resp.Body.Close()
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if body.Clients == 1 {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("clients = %d, want 1", body.Clients)
		}
		time.Sleep(10 * time.Millisecond)
	}
}
