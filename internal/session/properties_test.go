package session_test

import (
	"context"
	"sync"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"scifind-backend/internal/engine"
	"scifind-backend/internal/models"
	"scifind-backend/internal/session"
)

// twoCheckpointRunner pauses on a STRATEGY_CONFIRMATION checkpoint, then a
// RESULT_REVIEW checkpoint, then completes.
type twoCheckpointRunner struct{}

func (twoCheckpointRunner) Run(ctx context.Context, runID, userText string, maxResultsOverride *int, decider engine.Decider, reporter engine.PhaseReporter) (models.PaperCollection, error) {
	intent := models.ParsedIntent{Topic: "t", Concepts: []string{"c"}, IntentType: models.IntentSurvey}
	strategy := models.SearchStrategy{Queries: []models.SearchQuery{{BooleanQuery: "x"}}, Sources: []string{"s"}}
	if _, err := decider.Handle(ctx, models.NewStrategyCheckpoint(runID, 0, intent, strategy)); err != nil {
		return models.PaperCollection{}, err
	}

	coll := models.PaperCollection{Papers: []models.Paper{{ID: "p1", Title: "Paper One"}}}
	if _, err := decider.Handle(ctx, models.NewResultCheckpoint(runID, 0, coll, 1)); err != nil {
		return models.PaperCollection{}, err
	}

	return coll, nil
}

// Property 9 (SPEC_FULL.md §8): each decide call either advances to a
// different checkpoint, reports completion, or reports no pending
// checkpoint — a stale checkpoint id is never re-observed.
func TestProperty_Manager_DecideNeverReObservesSameCheckpoint(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 20
	properties := gopter.NewProperties(parameters)

	properties.Property("decide advances past the checkpoint just decided", prop.ForAll(
		func(approveFirst bool) bool {
			mgr := session.NewManager(twoCheckpointRunner{}, testSessionConfig())
			id, snap, err := mgr.Start("find papers", nil)
			if err != nil || !snap.HasPendingCheckpoint {
				return false
			}
			firstID := snap.CheckpointID
			firstKind := snap.CheckpointKind

			action := models.Approve
			if !approveFirst {
				action = models.Reject
			}
			next, err := mgr.Decide(context.Background(), id, action, nil, "")
			if err != nil {
				return false
			}
			if next.IsComplete {
				return true
			}
			if !next.HasPendingCheckpoint {
				return true
			}
			return next.CheckpointID != firstID || next.CheckpointKind != firstKind
		},
		gen.Bool(),
	))

	properties.TestingRun(t)
}

// Property 13 (SPEC_FULL.md §8): two concurrently running sessions never
// observe each other's checkpoint or completion state.
func TestProperty_Manager_SessionsAreIsolated(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 20
	properties := gopter.NewProperties(parameters)

	properties.Property("session A's snapshot never reflects session B's state", prop.ForAll(
		func(aChecks, bImmediate bool) bool {
			var runnerA session.Runner = checkpointRunner{}
			if !aChecks {
				runnerA = immediateRunner{}
			}
			var runnerB session.Runner = immediateRunner{}
			if !bImmediate {
				runnerB = checkpointRunner{}
			}

			mgrA := session.NewManager(runnerA, testSessionConfig())
			mgrB := session.NewManager(runnerB, testSessionConfig())

			var wg sync.WaitGroup
			var idA, idB string
			var snapA, snapB models.Snapshot
			wg.Add(2)
			go func() { defer wg.Done(); idA, snapA, _ = mgrA.Start("query-a", nil) }()
			go func() { defer wg.Done(); idB, snapB, _ = mgrB.Start("query-b", nil) }()
			wg.Wait()

			gotA, errA := mgrA.Get(idA)
			gotB, errB := mgrB.Get(idB)
			if errA != nil || errB != nil {
				return false
			}
			if gotA.SessionID != idA || gotB.SessionID != idB {
				return false
			}
			if gotA.Query != "query-a" || gotB.Query != "query-b" {
				return false
			}
			return snapA.SessionID != snapB.SessionID
		},
		gen.Bool(),
		gen.Bool(),
	))

	properties.TestingRun(t)
}
