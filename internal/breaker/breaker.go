// Package breaker implements a minimal circuit breaker state machine.
//
// It stands in for the sibling digital.vasic.concurrency/pkg/breaker module
// that internal/recovery.CircuitBreaker was originally written against; that
// module lives outside this repository, so this package reproduces the
// surface recovery.CircuitBreaker depends on: Config, State, New, Execute,
// State, Failures, Reset.
package breaker

import (
	"errors"
	"sync"
	"time"
)

// State is the circuit breaker's current state.
type State int

const (
	Closed State = iota
	HalfOpen
	Open
)

// ErrOpen is returned by Execute when the breaker is open and the reset
// timeout has not yet elapsed.
var ErrOpen = errors.New("circuit breaker is open")

// Config configures a CircuitBreaker.
type Config struct {
	MaxFailures      int
	Timeout          time.Duration
	HalfOpenRequests int
}

// CircuitBreaker trips to Open after MaxFailures consecutive failures and
// starts allowing probe requests again once Timeout has elapsed since the
// last failure, without changing its reported State until a probe succeeds
// while already HalfOpen. A probe that succeeds while the breaker is still
// reported Open does not by itself close the breaker. Nothing in this
// package moves the breaker to HalfOpen; Reset returns it straight to
// Closed.
type CircuitBreaker struct {
	mu              sync.Mutex
	state           State
	failures        int
	lastFailureTime time.Time
	cfg             *Config
}

// New creates a CircuitBreaker from cfg.
func New(cfg *Config) *CircuitBreaker {
	return &CircuitBreaker{cfg: cfg}
}

// Execute runs fn if the breaker allows it, recording the outcome.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	cb.mu.Lock()
	if !cb.allowRequestLocked() {
		cb.mu.Unlock()
		return ErrOpen
	}
	cb.mu.Unlock()

	err := fn()

	cb.mu.Lock()
	defer cb.mu.Unlock()
	if err != nil {
		cb.recordFailureLocked()
	} else {
		cb.recordSuccessLocked()
	}
	return err
}

func (cb *CircuitBreaker) allowRequestLocked() bool {
	switch cb.state {
	case Closed:
		return true
	case Open:
		return time.Since(cb.lastFailureTime) > cb.cfg.Timeout
	case HalfOpen:
		return true
	default:
		return false
	}
}

func (cb *CircuitBreaker) recordFailureLocked() {
	cb.failures++
	cb.lastFailureTime = time.Now()
	if cb.state == Closed && cb.failures >= cb.cfg.MaxFailures {
		cb.state = Open
	}
}

func (cb *CircuitBreaker) recordSuccessLocked() {
	switch cb.state {
	case Closed:
		cb.failures = 0
	case HalfOpen:
		cb.state = Closed
		cb.failures = 0
	}
}

// State returns the current state.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Failures returns the current consecutive failure count.
func (cb *CircuitBreaker) Failures() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.failures
}

// Reset forces the breaker back to Closed with a zeroed failure count.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = Closed
	cb.failures = 0
}
