package session

import (
	"context"
	"sync"
	"time"

	"scifind-backend/internal/models"
)

// Session tracks one in-flight or completed run (SPEC_FULL.md §4.10).
type Session struct {
	ID      string
	Query   string
	Handler *CheckpointHandler

	cancel context.CancelFunc
	done   chan struct{}

	mu              sync.Mutex
	startedAt       time.Time
	progress        models.ProgressSnapshot
	lastDecidedSig  string
	collection      models.PaperCollection
	isComplete      bool
	err             error
}

func newSession(id, query string, cancel context.CancelFunc) *Session {
	return &Session{
		ID:       id,
		Query:    query,
		Handler:  NewCheckpointHandler(),
		cancel:   cancel,
		done:     make(chan struct{}),
		startedAt: time.Now(),
	}
}

// Report implements engine.PhaseReporter, recording the engine's last
// announced phase for snapshots taken while no checkpoint is pending.
func (s *Session) Report(phase models.Phase, details string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.progress = models.ProgressSnapshot{Phase: phase, Details: details, UpdatedAt: time.Now()}
}

// finish records the run's terminal outcome and closes done, unblocking any
// waiter in Start/Decide.
func (s *Session) finish(coll models.PaperCollection, err error) {
	s.mu.Lock()
	s.collection = coll
	s.err = err
	s.isComplete = true
	s.mu.Unlock()
	close(s.done)
}

func (s *Session) elapsed() time.Duration {
	return time.Since(s.startedAt)
}
