// Package reqlock implements the keyed single-flight lock of §4.4: a
// set of currently-held string keys used to coalesce overlapping
// operations on the same logical subject. Unlike
// golang.org/x/sync/singleflight.Group.Do (which blocks a second caller
// until the first finishes and hands it the same result), TryAcquire
// here returns immediately — the caller decides what "already in
// flight" means for its own request (the read gateway, on finding a key
// held, runs its own metadata lookup rather than waiting for the
// holder's).
package reqlock

import "sync"

// Set is a concurrent set of held keys, safe for concurrent use.
type Set struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func New() *Set {
	return &Set{held: make(map[string]struct{})}
}

// TryAcquire attempts to acquire key and, on success, runs fn while
// holding it. It returns false without calling fn if key is already
// held by another in-flight caller. The key is inserted before fn runs
// (so a reentrant call from within fn for the same key correctly
// observes it held) and removed once fn returns, whether fn returns
// normally or panics.
func (s *Set) TryAcquire(key string, fn func()) (acquired bool) {
	s.mu.Lock()
	if _, busy := s.held[key]; busy {
		s.mu.Unlock()
		return false
	}
	s.held[key] = struct{}{}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.held, key)
		s.mu.Unlock()
	}()

	fn()
	return true
}
