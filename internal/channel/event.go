package channel

// EventKind tags a connection lifecycle or traffic event.
type EventKind int

const (
	// KindOpened: the link is up; publishes will go out.
	KindOpened EventKind = iota
	// KindMessage: one inbound frame, payload attached.
	KindMessage
	// KindError: a connect or read failure; the connection will retry
	// on its own unless it was torn down.
	KindError
	// KindClosed: the link dropped or was closed.
	KindClosed
)

func (k EventKind) String() string {
	switch k {
	case KindOpened:
		return "opened"
	case KindMessage:
		return "message"
	case KindError:
		return "error"
	case KindClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Event is delivered to the connection's single dispatch callback for
// every lifecycle change and inbound frame. Tests feed synthetic events
// through the same path without a real socket.
type Event struct {
	Kind    EventKind
	Payload []byte // KindMessage only
	Err     error  // KindError only
}
