// Package session exposes the Workflow Engine to out-of-process callers
// over a synchronous start/decide/get/export tool surface (SPEC_FULL.md
// §4.10), grounded on BaSui01-agentflow/agent/hitl/interrupt.go's
// channel-based pending/response pattern.
package session

import (
	"context"
	"sync"

	"scifind-backend/internal/models"
)

// CheckpointHandler implements engine.Decider using two coordinating
// signals: a checkpoint becomes pending when Handle is called, and stays
// pending until SetDecision delivers a decision, which Handle is blocked
// waiting on (SPEC_FULL.md §4.10's "checkpoint handler contract").
type CheckpointHandler struct {
	mu         sync.Mutex
	pending    bool
	checkpoint models.Checkpoint
	changeCh   chan struct{}
	decisionCh chan models.Decision
}

func NewCheckpointHandler() *CheckpointHandler {
	return &CheckpointHandler{
		changeCh:   make(chan struct{}),
		decisionCh: make(chan models.Decision),
	}
}

// Handle records ckpt, marks it pending, broadcasts the change to anyone
// waiting via Changed, then blocks until SetDecision delivers a decision or
// ctx is cancelled.
func (h *CheckpointHandler) Handle(ctx context.Context, ckpt models.Checkpoint) (models.Decision, error) {
	h.mu.Lock()
	h.checkpoint = ckpt
	h.pending = true
	old := h.changeCh
	h.changeCh = make(chan struct{})
	h.mu.Unlock()
	close(old)

	select {
	case decision := <-h.decisionCh:
		return decision, nil
	case <-ctx.Done():
		return models.Decision{}, ctx.Err()
	}
}

// SetDecision delivers a decision to the goroutine blocked in Handle and
// clears pending. It must only be called when Pending() is true.
func (h *CheckpointHandler) SetDecision(ctx context.Context, decision models.Decision) {
	h.mu.Lock()
	h.pending = false
	h.mu.Unlock()

	select {
	case h.decisionCh <- decision:
	case <-ctx.Done():
	}
}

// Pending returns the current checkpoint and whether it is still awaiting a
// decision.
func (h *CheckpointHandler) Pending() (models.Checkpoint, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.checkpoint, h.pending
}

// Changed returns a channel closed the next time Handle records a new
// checkpoint, letting a waiter block without polling.
func (h *CheckpointHandler) Changed() <-chan struct{} {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.changeCh
}
