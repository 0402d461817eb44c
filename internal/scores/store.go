package scores

import (
	"sync"

	"github.com/rwhssa/rwhs-basketball-livestream/internal/domain"
)

// Store holds at most one snapshot. Replace swaps the pointer under a short
// exclusive lock, so readers see either no snapshot or a complete one.
// Every Replace bumps a version so consumers can order snapshots that reach
// them by different paths.
type Store struct {
	mu      sync.RWMutex
	current *domain.ScoreSnapshot
	version uint64
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{}
}

// Replace makes snapshot the current value and returns its version, which is
// strictly greater than any earlier one. The snapshot must not be mutated afterwards.
func (s *Store) Replace(snapshot *domain.ScoreSnapshot) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.version++
	s.current = snapshot
	return s.version
}

// Read returns the current snapshot, or false if no update has happened yet.
func (s *Store) Read() (*domain.ScoreSnapshot, bool) {
	snapshot, _, ok := s.ReadVersion()
	return snapshot, ok
}

// ReadVersion is Read plus the version the snapshot was stored at.
func (s *Store) ReadVersion() (*domain.ScoreSnapshot, uint64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current, s.version, s.current != nil
}
