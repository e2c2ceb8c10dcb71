package topology

import (
	"sync"

	"github.com/google/go-cmp/cmp"

	"wormmap/internal/domain"
)

// Snapshot retains the last emitted graph and suppresses re-emission of
// structurally identical ones. The rendering layer mutates the graph
// instance it is given (positions, selection), so handing it a fresh but
// equal graph every tick would discard that state and make the map
// jitter. The retained copy is owned exclusively by the Snapshot and is
// never handed out.
type Snapshot struct {
	mu   sync.Mutex
	last *domain.Graph
}

// ShouldEmit reports whether candidate is worth emitting:
//
//   - a non-empty candidate that deep-equals the retained snapshot is
//     suppressed (nothing changed);
//   - an empty candidate is suppressed while the retained snapshot is
//     populated, so a transient empty poll cannot clobber the display.
//
// Everything else emits, including the first populated graph and an empty
// candidate when nothing was ever emitted.
func (s *Snapshot) ShouldEmit(candidate *domain.Graph) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if candidate.Empty() {
		return s.last.Empty()
	}
	return !cmp.Equal(candidate, s.last)
}

// Commit replaces the retained snapshot with a defensive deep copy of
// candidate, so later in-place mutation of the emitted graph cannot
// corrupt the comparison baseline.
func (s *Snapshot) Commit(candidate *domain.Graph) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = candidate.Clone()
}
