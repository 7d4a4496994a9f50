// Package catalog loads the static route catalog: named, colored,
// ordered waypoint loops, plus the driver-to-route assignment table.
package catalog

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/relabs-tech/shuttle_tracker/internal/geo"
)

// Route is one logical service loop.
type Route struct {
	ID        string       `yaml:"id" validate:"required"`
	Name      string       `yaml:"name" validate:"required"`
	Color     string       `yaml:"color" validate:"required,hexcolor"`
	Waypoints [][2]float64 `yaml:"waypoints" validate:"required,min=2"` // [lat, lon]
	Drivers   []string     `yaml:"drivers"`
}

// Points returns the waypoints as geo points, in route order.
func (r Route) Points() []geo.Point {
	pts := make([]geo.Point, len(r.Waypoints))
	for i, w := range r.Waypoints {
		pts[i] = geo.Point{Latitude: w[0], Longitude: w[1]}
	}
	return pts
}

// Catalog is the full set of routes for a deployment.
type Catalog struct {
	Routes []Route `yaml:"routes" validate:"required,min=1,dive"`
}

// Load reads and validates a routes.yml file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read route catalog: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates raw catalog YAML.
func Parse(data []byte) (*Catalog, error) {
	var cat Catalog
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return nil, fmt.Errorf("parse route catalog: %w", err)
	}
	v := validator.New()
	if err := v.Struct(cat); err != nil {
		return nil, fmt.Errorf("invalid route catalog: %w", err)
	}
	seen := make(map[string]string) // driverID -> routeID
	for _, r := range cat.Routes {
		for _, d := range r.Drivers {
			if prev, dup := seen[d]; dup {
				return nil, fmt.Errorf("driver %q assigned to both route %q and route %q", d, prev, r.ID)
			}
			seen[d] = r.ID
		}
	}
	return &cat, nil
}

// Route returns the route with the given ID.
func (c *Catalog) Route(id string) (Route, bool) {
	for _, r := range c.Routes {
		if r.ID == id {
			return r, true
		}
	}
	return Route{}, false
}

// RouteForDriver resolves the fixed driver-to-route assignment.
// Each driver ID maps to exactly one route.
func (c *Catalog) RouteForDriver(driverID string) (Route, bool) {
	for _, r := range c.Routes {
		for _, d := range r.Drivers {
			if d == driverID {
				return r, true
			}
		}
	}
	return Route{}, false
}
