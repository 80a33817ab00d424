package operation

import "sync"

// State is the single mutable value shared by all operations of a server.
// Access goes through With, which holds the lock only while fn runs.
type State[S any] struct {
	mu    sync.Mutex
	value S
}

func NewState[S any](value S) *State[S] {
	return &State[S]{value: value}
}

// With runs fn with exclusive access to the state. fn must not block on I/O.
func (s *State[S]) With(fn func(*S) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&s.value)
}

// Snapshot returns a shallow copy of the current value.
func (s *State[S]) Snapshot() S {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value
}
