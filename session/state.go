// Package session manages the lifecycle of one secure peer link: an
// explicit connection state machine, a Manager that owns a single handshake
// run and the resulting channel keys, and heartbeat bookkeeping.
package session

import (
	"sync"
)

// State is the runtime state of a managed connection.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
	Reconnecting
	ShuttingDown
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Reconnecting:
		return "reconnecting"
	case ShuttingDown:
		return "shutting-down"
	default:
		return "unknown"
	}
}

// transitions lists the legal edges. Anything not listed, like jumping
// straight from Disconnected to Connected, is a bug in the caller.
var transitions = map[State][]State{
	Disconnected: {Connecting, ShuttingDown},
	Connecting:   {Connected, Disconnected, ShuttingDown},
	Connected:    {Reconnecting, Disconnected, ShuttingDown},
	Reconnecting: {Connected, Disconnected, ShuttingDown},
	ShuttingDown: {Disconnected},
}

// machine guards the current state and validates every transition.
type machine struct {
	mu      sync.Mutex
	current State
}

func (m *machine) Current() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

func (m *machine) transition(next State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, allowed := range transitions[m.current] {
		if next == allowed {
			m.current = next
			return nil
		}
	}
	return &TransitionError{From: m.current, To: next}
}
