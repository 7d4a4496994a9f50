// Package session owns which role this device is playing: a passive
// rider consuming updates, or the driver publishing them.
package session

// Mode is the session role.
type Mode int

const (
	ModeRider Mode = iota
	ModeDriver
)

func (m Mode) String() string {
	if m == ModeDriver {
		return "driver"
	}
	return "rider"
}

// Session is the whole role state for one running instance. It is
// replaced wholesale on every toggle, never mutated field by field.
// DriverID is non-empty exactly when Mode is ModeDriver.
type Session struct {
	Mode     Mode
	DriverID string
	RouteID  string
}
