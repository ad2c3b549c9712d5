// Package lazy provides one-shot initialization primitives. The pool
// uses Service to defer constructing and initializing a provider
// session until a video actually needs that provider.
package lazy

import "sync"

// Service memoizes the result of init, run at most once across any
// number of concurrent Get calls.
type Service[T any] struct {
	once    sync.Once
	service T
	initErr error
	init    func() (T, error)
}

// NewService wraps init so it runs on the first Get call only.
func NewService[T any](init func() (T, error)) *Service[T] {
	return &Service[T]{init: init}
}

// Get runs init on the first call and returns its cached result on
// every subsequent call, including a cached error.
func (s *Service[T]) Get() (T, error) {
	s.once.Do(func() {
		s.service, s.initErr = s.init()
	})
	return s.service, s.initErr
}
