// Package semaphore provides a bounded-concurrency gate used by the
// provider pool to cap the number of simultaneous provider calls at
// the configured max worker count.
package semaphore

import "context"

// Semaphore bounds concurrent access to a resource pool. Acquire
// blocks until a slot is free or ctx is cancelled.
type Semaphore struct {
	ch chan struct{}
}

// New returns a Semaphore with maxConcurrent slots.
func New(maxConcurrent int) *Semaphore {
	return &Semaphore{ch: make(chan struct{}, maxConcurrent)}
}

// Acquire takes a slot, blocking until one is free or ctx is done.
func (s *Semaphore) Acquire(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case s.ch <- struct{}{}:
		return nil
	}
}

// Release frees a slot previously taken by Acquire.
func (s *Semaphore) Release() {
	select {
	case <-s.ch:
	default:
	}
}
