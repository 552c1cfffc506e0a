package fetch

import "sync"

// Sequencer tags in-flight searches with a monotonically increasing
// sequence number so callers can discard results that were superseded
// by a newer request. Winner is the last issued request, not the last
// one to complete.
type Sequencer struct {
	mu     sync.Mutex
	issued uint64
}

// Next issues a new sequence number.
func (s *Sequencer) Next() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.issued++
	return s.issued
}

// Latest reports whether seq belongs to the most recently issued
// request. Results carrying a stale sequence must be dropped, never
// applied to current state.
func (s *Sequencer) Latest(seq uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return seq == s.issued
}
