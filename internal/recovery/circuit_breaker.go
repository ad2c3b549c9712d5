// Package recovery provides fault-tolerance primitives for the provider pool:
// circuit breakers keyed by provider name, and retry/backoff helpers for the
// transient-failure branch of the provider state machine.
//
// CircuitBreaker and CircuitBreakerManager wrap internal/breaker, adding
// logger integration (including logged state changes), named circuit
// breakers, and a centralized manager.
package recovery

import (
	"sync"
	"time"

	innerbreaker "catalogizer/subtitles/internal/breaker"
	"go.uber.org/zap"
)

// CircuitState represents the state of a circuit breaker.
type CircuitState int

const (
	StateClosed   CircuitState = iota // Normal operation — requests pass through
	StateHalfOpen                     // Probing — limited requests pass through
	StateOpen                         // Failing — requests are rejected immediately
)

// String returns a human-readable state name.
func (s CircuitState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// mapBreakState translates innerbreaker.State to CircuitState.
func mapBreakState(s innerbreaker.State) CircuitState {
	switch s {
	case innerbreaker.Closed:
		return StateClosed
	case innerbreaker.HalfOpen:
		return StateHalfOpen
	case innerbreaker.Open:
		return StateOpen
	default:
		return StateClosed
	}
}

// CircuitBreakerConfig contains configuration for a circuit breaker.
type CircuitBreakerConfig struct {
	Name         string
	MaxFailures  int
	ResetTimeout time.Duration
	Logger       *zap.Logger
}

// CircuitBreaker wraps internal/breaker.CircuitBreaker with logger
// integration and named identification, so the pool can key one
// breaker per provider and log its transitions without the provider
// loop itself knowing about breaker internals.
type CircuitBreaker struct {
	name   string
	inner  *innerbreaker.CircuitBreaker
	logger *zap.Logger
}

// NewCircuitBreaker creates a new circuit breaker backed by
// internal/breaker.
func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	maxFailures := config.MaxFailures
	if maxFailures <= 0 {
		maxFailures = 5
	}
	resetTimeout := config.ResetTimeout
	if resetTimeout <= 0 {
		resetTimeout = 60 * time.Second
	}

	cfg := &innerbreaker.Config{
		MaxFailures:      maxFailures,
		Timeout:          resetTimeout,
		HalfOpenRequests: 1,
	}

	return &CircuitBreaker{
		name:   config.Name,
		inner:  innerbreaker.New(cfg),
		logger: config.Logger,
	}
}

// Execute wraps fn with circuit breaker protection, delegating to the
// internal/breaker engine and logging every state transition.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	prevState := mapBreakState(cb.inner.State())

	err := cb.inner.Execute(fn)

	newState := mapBreakState(cb.inner.State())

	if cb.logger != nil {
		if err != nil {
			cb.logger.Warn("Circuit breaker recorded failure",
				zap.String("name", cb.name),
				zap.Int("failures", cb.inner.Failures()),
				zap.String("state", newState.String()))
		} else {
			cb.logger.Debug("Circuit breaker recorded success",
				zap.String("name", cb.name),
				zap.String("state", newState.String()))
		}
	}

	if prevState != newState && cb.logger != nil {
		cb.logger.Info("Circuit breaker state changed",
			zap.String("name", cb.name),
			zap.String("old_state", prevState.String()),
			zap.String("new_state", newState.String()))
	}

	return err
}

// GetState returns the current circuit breaker state.
func (cb *CircuitBreaker) GetState() CircuitState {
	return mapBreakState(cb.inner.State())
}

// CircuitBreakerManager manages a named registry of circuit breakers.
//
// Design pattern: Registry — centralized lookup and creation of named breakers.
type CircuitBreakerManager struct {
	breakers map[string]*CircuitBreaker
	mutex    sync.RWMutex
	logger   *zap.Logger
}

// NewCircuitBreakerManager creates a new circuit breaker manager.
func NewCircuitBreakerManager(logger *zap.Logger) *CircuitBreakerManager {
	return &CircuitBreakerManager{
		breakers: make(map[string]*CircuitBreaker),
		logger:   logger,
	}
}

// GetOrCreate retrieves an existing circuit breaker by name, or creates a new one.
func (m *CircuitBreakerManager) GetOrCreate(name string, config CircuitBreakerConfig) *CircuitBreaker {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if cb, exists := m.breakers[name]; exists {
		return cb
	}

	config.Name = name
	if config.Logger == nil {
		config.Logger = m.logger
	}

	cb := NewCircuitBreaker(config)
	m.breakers[name] = cb

	if m.logger != nil {
		m.logger.Info("Created new circuit breaker", zap.String("name", name))
	}
	return cb
}
