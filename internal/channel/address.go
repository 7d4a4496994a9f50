package channel

import (
	"fmt"
	"strings"
)

// Scheme selects how feed addresses encode route and driver identity.
// All three appear across deployments of this system; "driver" is the
// superset and the default.
type Scheme int

const (
	// SchemeGlobal: one shared feed, payload fields disambiguate.
	SchemeGlobal Scheme = iota
	// SchemeRoute: address scoped to a role and route.
	SchemeRoute
	// SchemeDriver: address additionally scoped to a driver identity.
	SchemeDriver
)

func (s Scheme) String() string {
	switch s {
	case SchemeGlobal:
		return "global"
	case SchemeRoute:
		return "route"
	case SchemeDriver:
		return "driver"
	default:
		return "unknown"
	}
}

// ParseScheme maps a config value to a Scheme.
func ParseScheme(s string) (Scheme, error) {
	switch s {
	case "global":
		return SchemeGlobal, nil
	case "route":
		return SchemeRoute, nil
	case "driver":
		return SchemeDriver, nil
	default:
		return SchemeGlobal, fmt.Errorf("unknown address scheme %q", s)
	}
}

// Scope is the identity a connection speaks for: the session's role and,
// when relevant, which route and driver it represents.
type Scope struct {
	Role     string // "user" or "driver"
	RouteID  string
	DriverID string
}

// Address computes the feed address for a scope under a scheme. This is
// the only place role/route/driver addressing logic lives; the connection
// itself just takes "the current address".
//
// Riders never carry a driver identity, so under SchemeDriver a rider
// still subscribes at the role/route address; the feed fans driver-scoped
// publishes out to it.
func Address(base string, scheme Scheme, sc Scope) string {
	base = strings.TrimRight(base, "/")
	switch scheme {
	case SchemeRoute:
		return fmt.Sprintf("%s/ws/location/%s/%s/", base, sc.Role, sc.RouteID)
	case SchemeDriver:
		if sc.Role == "driver" && sc.DriverID != "" {
			return fmt.Sprintf("%s/ws/location/driver/%s/%s/", base, sc.RouteID, sc.DriverID)
		}
		return fmt.Sprintf("%s/ws/location/user/%s/", base, sc.RouteID)
	default:
		return base + "/ws/location/"
	}
}
