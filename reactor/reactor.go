// File: reactor/reactor.go
// Author: momentics <momentics@gmail.com>
//
// Platform-neutral readiness poller contract.

package reactor

// EventType is a bit set of readiness conditions.
type EventType uint32

const (
	EventRead EventType = 1 << iota
	EventWrite
	// EventError covers error, hangup and peer half-close.
	EventError
)

// Event is one readiness notification.
type Event struct {
	Fd     int
	Events EventType
}

// Poller is an edge-triggered readiness facility. A registered descriptor is
// reported once per readiness transition.
type Poller interface {
	// Register starts edge-triggered monitoring of fd for events.
	Register(fd int, events EventType) error

	// Unregister stops monitoring fd.
	Unregister(fd int) error

	// Wait fills events without blocking and returns how many were written.
	Wait(events []Event) (int, error)

	// Close releases the poller handle.
	Close() error
}
