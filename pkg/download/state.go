package download

import "sync"

// RunState carries the content hashes seen during one run so identical bytes
// served under different URLs are stored only once, across all products in
// the run. Safe for concurrent use.
type RunState struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewRunState creates an empty RunState.
func NewRunState() *RunState {
	return &RunState{seen: make(map[string]struct{})}
}

// MarkSeen records the hash and reports whether it was new.
func (s *RunState) MarkSeen(hash string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.seen[hash]; dup {
		return false
	}
	s.seen[hash] = struct{}{}
	return true
}

// Seen reports whether the hash has been recorded without recording it.
func (s *RunState) Seen(hash string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.seen[hash]
	return ok
}

// Len returns the number of distinct hashes recorded.
func (s *RunState) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}
