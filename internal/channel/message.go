package channel

import (
	"encoding/json"
	"errors"
)

// Publish is the outbound driver-to-feed payload. Under the global scheme
// the mode hint disambiguates publishers from echo traffic.
type Publish struct {
	DriverID  string  `json:"driverId,omitempty"`
	RouteID   string  `json:"routeId,omitempty"`
	Mode      string  `json:"mode,omitempty"` // "driver" under the global scheme
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Hello is the one-time identity message a driver session sends right
// after the link opens, before any update traffic. It carries no
// coordinates, so subscribers discard it as malformed and only the feed
// cares.
type Hello struct {
	DriverID string `json:"driverId"`
	RouteID  string `json:"routeId"`
	Mode     string `json:"mode"`
}

// Update is one inbound position update after scope defaults are applied.
type Update struct {
	RouteID   string  `json:"routeId"`
	DriverID  string  `json:"driverId"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// ErrBadMessage marks an inbound frame that cannot be used: not JSON, or
// missing coordinates. Such frames are dropped and logged; they never
// take the connection down.
var ErrBadMessage = errors.New("channel: malformed location message")

// ParseUpdate decodes an inbound frame. When the address scheme already
// encodes route or driver identity, the payload may omit them; the
// connection's scope fills the gaps.
func ParseUpdate(data []byte, sc Scope) (Update, error) {
	var raw struct {
		RouteID   string   `json:"routeId"`
		DriverID  string   `json:"driverId"`
		Latitude  *float64 `json:"latitude"`
		Longitude *float64 `json:"longitude"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return Update{}, ErrBadMessage
	}
	if raw.Latitude == nil || raw.Longitude == nil {
		return Update{}, ErrBadMessage
	}
	u := Update{
		RouteID:   raw.RouteID,
		DriverID:  raw.DriverID,
		Latitude:  *raw.Latitude,
		Longitude: *raw.Longitude,
	}
	if u.RouteID == "" {
		u.RouteID = sc.RouteID
	}
	if u.DriverID == "" {
		u.DriverID = sc.DriverID
	}
	return u, nil
}
