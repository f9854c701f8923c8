package telemetry

import (
	"sync"

	"github.com/hil-labs/wireship/internal/domain"
)

// Store is the append-only record store for one session. Frames are held in
// decode order; the ingest loop appends, the command dispatcher snapshots
// for status and export. Safe for concurrent use.
type Store struct {
	mu     sync.Mutex
	frames []domain.Frame
}

// Append adds frames to the store in order.
func (s *Store) Append(frames ...domain.Frame) {
	s.mu.Lock()
	s.frames = append(s.frames, frames...)
	s.mu.Unlock()
}

// Len returns the number of stored frames.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}

// Snapshot returns a copy of the stored frames. The copy is detached: later
// appends do not affect it.
func (s *Store) Snapshot() []domain.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Frame, len(s.frames))
	copy(out, s.frames)
	return out
}

// Reset discards all stored frames. Called when a new session starts.
func (s *Store) Reset() {
	s.mu.Lock()
	s.frames = s.frames[:0]
	s.mu.Unlock()
}
