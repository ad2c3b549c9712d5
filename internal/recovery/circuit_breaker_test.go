package recovery

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestLogger() *zap.Logger {
	logger, _ := zap.NewDevelopment()
	return logger
}

// newProviderBreaker mirrors pool.New's per-provider construction:
// breakers.GetOrCreate(name, CircuitBreakerConfig{MaxFailures: 2,
// ResetTimeout: time.Minute}).
func newProviderBreaker(name string, maxFailures int, resetTimeout time.Duration) *CircuitBreaker {
	return NewCircuitBreaker(CircuitBreakerConfig{
		Name:         name,
		MaxFailures:  maxFailures,
		ResetTimeout: resetTimeout,
		Logger:       newTestLogger(),
	})
}

func TestCircuitState_String(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "half-open", StateHalfOpen.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "unknown", CircuitState(99).String())
}

func TestNewCircuitBreaker_ZeroAndNegativeConfigUseDefaults(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{Name: "opensubtitles", Logger: newTestLogger()})
	assert.Equal(t, StateClosed, cb.GetState())

	cb = NewCircuitBreaker(CircuitBreakerConfig{Name: "opensubtitles", MaxFailures: -1, ResetTimeout: -1, Logger: newTestLogger()})
	assert.Equal(t, StateClosed, cb.GetState())
}

// TestCircuitBreaker_OpensAfterPoolConfiguredMaxFailures mirrors the
// pool's ServiceUnavailable classification: every consecutive
// ServiceUnavailable failure is routed through Execute, and the
// provider is discarded once the breaker reports StateOpen.
func TestCircuitBreaker_OpensAfterPoolConfiguredMaxFailures(t *testing.T) {
	cb := newProviderBreaker("flaky", 2, time.Minute)
	failWith := errors.New("service unavailable")

	err := cb.Execute(func() error { return failWith })
	require.Error(t, err)
	assert.Equal(t, StateClosed, cb.GetState(), "first failure should not yet open the breaker")

	err = cb.Execute(func() error { return failWith })
	require.Error(t, err)
	assert.Equal(t, StateOpen, cb.GetState(), "second consecutive failure should open the breaker")
}

func TestCircuitBreaker_SuccessResetsConsecutiveFailureCount(t *testing.T) {
	cb := newProviderBreaker("flaky", 2, time.Minute)
	failWith := errors.New("service unavailable")

	require.Error(t, cb.Execute(func() error { return failWith }))
	require.NoError(t, cb.Execute(func() error { return nil }))
	assert.Equal(t, StateClosed, cb.GetState())

	// A single renewed failure after a success should not open a breaker
	// configured for two consecutive failures.
	require.Error(t, cb.Execute(func() error { return failWith }))
	assert.Equal(t, StateClosed, cb.GetState())
}

func TestCircuitBreaker_AllowsOneProbeAfterResetTimeoutElapses(t *testing.T) {
	cb := newProviderBreaker("flaky", 1, 20*time.Millisecond)
	failWith := errors.New("service unavailable")

	require.Error(t, cb.Execute(func() error { return failWith }))
	assert.Equal(t, StateOpen, cb.GetState())

	// Before the reset timeout, the breaker rejects every request without
	// even calling fn.
	var called bool
	err := cb.Execute(func() error { called = true; return nil })
	assert.Error(t, err)
	assert.False(t, called)

	time.Sleep(30 * time.Millisecond)

	err = cb.Execute(func() error { called = true; return nil })
	require.NoError(t, err)
	assert.True(t, called, "a request after the reset timeout should reach fn as a probe")
}

// TestCircuitBreakerManager_GetOrCreateKeysByProviderName mirrors
// pool.New wiring each provider's breaker off a shared
// CircuitBreakerManager, keyed by provider name.
func TestCircuitBreakerManager_GetOrCreateKeysByProviderName(t *testing.T) {
	m := NewCircuitBreakerManager(newTestLogger())

	a := m.GetOrCreate("opensubtitles", CircuitBreakerConfig{MaxFailures: 2, ResetTimeout: time.Minute})
	b := m.GetOrCreate("opensubtitles", CircuitBreakerConfig{MaxFailures: 2, ResetTimeout: time.Minute})
	assert.Same(t, a, b, "the same provider name must return the same breaker instance")

	c := m.GetOrCreate("napiprojekt", CircuitBreakerConfig{MaxFailures: 2, ResetTimeout: time.Minute})
	assert.NotSame(t, a, c)
}

func TestCircuitBreakerManager_ConcurrentGetOrCreateReturnsSameBreaker(t *testing.T) {
	m := NewCircuitBreakerManager(newTestLogger())

	var wg sync.WaitGroup
	breakers := make([]*CircuitBreaker, 16)
	for i := range breakers {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			breakers[i] = m.GetOrCreate("opensubtitles", CircuitBreakerConfig{MaxFailures: 2, ResetTimeout: time.Minute})
		}()
	}
	wg.Wait()

	for _, cb := range breakers[1:] {
		assert.Same(t, breakers[0], cb)
	}
}
