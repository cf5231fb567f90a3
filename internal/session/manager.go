package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"scifind-backend/internal/config"
	"scifind-backend/internal/engine"
	"scifind-backend/internal/models"
)

// Runner is the subset of *engine.Engine the Manager drives; narrowed to an
// interface so tests can substitute a stub run.
type Runner interface {
	Run(ctx context.Context, runID, userText string, maxResultsOverride *int, decider engine.Decider, reporter engine.PhaseReporter) (models.PaperCollection, error)
}

// Manager owns the set of in-flight and completed sessions (SPEC_FULL.md
// §4.10's session lifecycle).
type Manager struct {
	mu              sync.RWMutex
	sessions        map[string]*Session
	engine          Runner
	decideTimeout   time.Duration
	resultMaxPapers int
}

func NewManager(eng Runner, cfg *config.Config) *Manager {
	timeout := time.Duration(cfg.Session.DecideTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	maxPapers := cfg.Session.ResultPayloadMaxPapers
	if maxPapers <= 0 {
		maxPapers = 30
	}
	return &Manager{
		sessions:        make(map[string]*Session),
		engine:          eng,
		decideTimeout:   timeout,
		resultMaxPapers: maxPapers,
	}
}

// Start spawns a background run for query and waits up to the configured
// timeout for either a pending checkpoint or completion before returning.
// maxResults, when non-nil, overrides the parsed intent's result cap
// (domain selection is a process-wide wiring choice, not a per-call one —
// see DESIGN.md).
func (m *Manager) Start(query string, maxResults *int) (string, models.Snapshot, error) {
	id := uuid.NewString()
	ctx, cancel := context.WithCancel(context.Background())
	sess := newSession(id, query, cancel)

	m.mu.Lock()
	m.sessions[id] = sess
	m.mu.Unlock()

	go func() {
		coll, err := m.engine.Run(ctx, id, query, maxResults, sess.Handler, sess)
		sess.finish(coll, err)
	}()

	m.waitForSettle(sess, m.decideTimeout)
	return id, m.snapshot(sess), nil
}

// Decide hands a decision to sessionID's pending checkpoint, then waits for
// the run to advance to a new checkpoint, complete, or time out —
// SPEC_FULL.md §4.10's monotonic-advance rule: a stale checkpoint is never
// re-returned.
func (m *Manager) Decide(ctx context.Context, sessionID string, action models.DecisionAction, revisedData map[string]interface{}, note string) (models.Snapshot, error) {
	sess, err := m.lookup(sessionID)
	if err != nil {
		return models.Snapshot{}, err
	}

	ckpt, pending := sess.Handler.Pending()
	sess.mu.Lock()
	complete := sess.isComplete
	sess.mu.Unlock()
	if complete {
		return models.Snapshot{}, fmt.Errorf("session %s is already complete", sessionID)
	}
	if !pending {
		return models.Snapshot{}, fmt.Errorf("session %s has no pending checkpoint", sessionID)
	}

	sig := ckpt.Signature()
	sess.Handler.SetDecision(ctx, models.Decision{Action: action, RevisedData: revisedData, Note: note})

	m.waitForAdvance(sess, sig, m.decideTimeout)
	return m.snapshot(sess), nil
}

// Get returns sessionID's current snapshot without affecting its state.
func (m *Manager) Get(sessionID string) (models.Snapshot, error) {
	sess, err := m.lookup(sessionID)
	if err != nil {
		return models.Snapshot{}, err
	}
	return m.snapshot(sess), nil
}

// Collection returns the completed run's collection, used by the export
// tool surface; callers must check IsComplete via Get first.
func (m *Manager) Collection(sessionID string) (models.PaperCollection, error) {
	sess, err := m.lookup(sessionID)
	if err != nil {
		return models.PaperCollection{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if !sess.isComplete {
		return models.PaperCollection{}, fmt.Errorf("session %s is not complete", sessionID)
	}
	return sess.collection, nil
}

// Cleanup cancels a running session's background task, if any, and removes it.
func (m *Manager) Cleanup(sessionID string) error {
	m.mu.Lock()
	sess, ok := m.sessions[sessionID]
	if ok {
		delete(m.sessions, sessionID)
	}
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("session %s not found", sessionID)
	}
	sess.cancel()
	return nil
}

func (m *Manager) lookup(sessionID string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, ok := m.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("session %s not found", sessionID)
	}
	return sess, nil
}

func (m *Manager) waitForSettle(sess *Session, timeout time.Duration) {
	select {
	case <-sess.Handler.Changed():
	case <-sess.done:
	case <-time.After(timeout):
	}
}

func (m *Manager) waitForAdvance(sess *Session, previousSig string, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return
		}
		select {
		case <-sess.Handler.Changed():
			if ckpt, pending := sess.Handler.Pending(); pending && ckpt.Signature() != previousSig {
				return
			}
		case <-sess.done:
			return
		case <-time.After(remaining):
			return
		}
	}
}

// ResultPayloadView is the truncated wire shape for a RESULT_REVIEW
// checkpoint's payload (SPEC_FULL.md §4.10's serialization invariant).
type ResultPayloadView struct {
	Collection       models.PaperCollection `json:"collection"`
	AccumulatedCount int                    `json:"accumulated_count"`
	Truncated        bool                   `json:"truncated,omitempty"`
	TotalPapers      int                    `json:"total_papers,omitempty"`
}

func (m *Manager) payloadFor(ckpt models.Checkpoint) interface{} {
	switch ckpt.Kind {
	case models.StrategyConfirmation:
		return ckpt.StrategyPayload
	case models.ResultReview:
		rp := ckpt.ResultPayload
		total := len(rp.Collection.Papers)
		if m.resultMaxPapers > 0 && total > m.resultMaxPapers {
			truncated := rp.Collection
			truncated.Papers = append([]models.Paper(nil), rp.Collection.Papers[:m.resultMaxPapers]...)
			return ResultPayloadView{Collection: truncated, AccumulatedCount: rp.AccumulatedCount, Truncated: true, TotalPapers: total}
		}
		return ResultPayloadView{Collection: rp.Collection, AccumulatedCount: rp.AccumulatedCount}
	default:
		return nil
	}
}

func (m *Manager) snapshot(sess *Session) models.Snapshot {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	snap := models.Snapshot{
		SessionID:  sess.ID,
		Query:      sess.Query,
		IsComplete: sess.isComplete,
	}
	if sess.err != nil {
		snap.Error = sess.err.Error()
	}

	if ckpt, pending := sess.Handler.Pending(); pending {
		snap.HasPendingCheckpoint = true
		snap.CheckpointKind = ckpt.Kind
		snap.CheckpointID = ckpt.CheckpointID()
		snap.CheckpointPayload = m.payloadFor(ckpt)
	} else if !sess.isComplete {
		snap.Phase = sess.progress.Phase
		snap.PhaseDetails = sess.progress.Details
		if !sess.progress.UpdatedAt.IsZero() {
			snap.PhaseUpdated = sess.progress.UpdatedAt.Format(time.RFC3339)
		}
		snap.ElapsedS = sess.elapsed().Seconds()
	}

	if sess.isComplete {
		snap.PaperCount = len(sess.collection.Papers)
	}

	return snap
}
