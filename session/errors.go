package session

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrAlreadyEstablished means Establish was called on a manager that
	// is not sitting in Disconnected.
	ErrAlreadyEstablished = errors.New("skybridge/session: session already established")

	// ErrNoSession means a session accessor was used before a successful
	// handshake.
	ErrNoSession = errors.New("skybridge/session: no active session")
)

// TransitionError reports an illegal state-machine edge.
type TransitionError struct {
	From State
	To   State
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("skybridge/session: illegal transition %s -> %s", e.From, e.To)
}

// InvalidStateError reports an operation attempted in the wrong state.
type InvalidStateError struct {
	Expected State
	Actual   State
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("skybridge/session: invalid state: expected %s, got %s", e.Expected, e.Actual)
}

// RateLimitedError reports a heartbeat sent before the configured interval
// elapsed, with a hint for when to retry.
type RateLimitedError struct {
	RetryIn time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("skybridge/session: heartbeat rate limited, retry in %s", e.RetryIn)
}
