package tracker

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/relabs-tech/shuttle_tracker/internal/geo"
)

// seed pre-populates the store with the feed's last known position for
// the default route, once per start, before the channel opens. Any
// failure is logged and ignored; the default center stands in.
func (t *Tracker) seed(ctx context.Context) {
	if t.cfg.SeedURL == "" {
		return
	}

	u, err := url.Parse(t.cfg.SeedURL)
	if err != nil {
		log.Printf("tracker: bad seed url: %v", err)
		return
	}
	if t.cfg.DefaultRouteID != "" {
		q := u.Query()
		q.Set("route", t.cfg.DefaultRouteID)
		u.RawQuery = q.Encode()
	}

	reqCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, u.String(), nil)
	if err != nil {
		log.Printf("tracker: seed request: %v", err)
		return
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Printf("tracker: seed fetch failed: %v", err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		log.Printf("tracker: seed fetch returned %s", resp.Status)
		return
	}

	var body struct {
		Latitude  *float64 `json:"latitude"`
		Longitude *float64 `json:"longitude"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		log.Printf("tracker: seed decode failed: %v", err)
		return
	}
	if body.Latitude == nil || body.Longitude == nil {
		log.Printf("tracker: seed response missing coordinates")
		return
	}

	pt := geo.Point{Latitude: *body.Latitude, Longitude: *body.Longitude}
	t.store.Apply(t.cfg.DefaultRouteID, "", pt, time.Now())
	log.Printf("tracker: seeded route %q at (%f, %f)", t.cfg.DefaultRouteID, pt.Latitude, pt.Longitude)
}
