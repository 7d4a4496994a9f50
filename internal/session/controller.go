package session

import (
	"errors"
	"fmt"
	"log"
	"sync"
)

var (
	// ErrNotAuthorized: the authorization gate rejected the candidate.
	ErrNotAuthorized = errors.New("session: driver authorization rejected")
	// ErrUnknownDriver: the candidate has no route assignment.
	ErrUnknownDriver = errors.New("session: driver has no route assignment")
)

// Authorizer decides whether this device may represent the given driver.
// The policy behind it (password, token, whatever) stays outside the core.
type Authorizer func(driverID string) bool

// Apply performs the side effects of a mode change, in order: sampler
// policy swap first, then channel re-address. The controller commits the
// session only after Apply returns, so publishes can never race ahead of
// the new addressing.
type Apply func(next Session) error

// Controller is the {rider, driver} state machine.
type Controller struct {
	authorize Authorizer
	routeFor  func(driverID string) (string, bool)
	apply     Apply

	mu      sync.Mutex
	session Session
}

// NewController starts in rider mode on the given default route.
func NewController(defaultRouteID string, authorize Authorizer, routeFor func(string) (string, bool), apply Apply) *Controller {
	return &Controller{
		authorize: authorize,
		routeFor:  routeFor,
		apply:     apply,
		session:   Session{Mode: ModeRider, RouteID: defaultRouteID},
	}
}

// Session returns the current session.
func (c *Controller) Session() Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// BecomeDriver attempts the rider-to-driver transition for the given
// driver identity. A failed gate or an unknown driver leaves the session
// exactly as it was.
func (c *Controller) BecomeDriver(driverID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session.Mode == ModeDriver && c.session.DriverID == driverID {
		return nil
	}
	if c.authorize == nil || !c.authorize(driverID) {
		log.Printf("session: driver mode rejected for %q", driverID)
		return ErrNotAuthorized
	}
	routeID, ok := c.routeFor(driverID)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownDriver, driverID)
	}

	next := Session{Mode: ModeDriver, DriverID: driverID, RouteID: routeID}
	if c.apply != nil {
		if err := c.apply(next); err != nil {
			return fmt.Errorf("enter driver mode: %w", err)
		}
	}
	c.session = next
	log.Printf("session: now driver %q on route %q", driverID, routeID)
	return nil
}

// BecomeRider drops back to rider mode. Unconditional: the continuous
// sampler is stopped and the driver identity cleared synchronously. The
// last sampled position stays in the store untouched.
func (c *Controller) BecomeRider() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session.Mode == ModeRider {
		return nil
	}
	next := Session{Mode: ModeRider, RouteID: c.session.RouteID}
	var err error
	if c.apply != nil {
		err = c.apply(next)
	}
	// the transition itself is unconditional; a side-effect failure is
	// reported but does not keep us in driver mode
	c.session = next
	log.Printf("session: now rider on route %q", next.RouteID)
	return err
}
