// Package engine drives one research run through the six pipeline stages,
// pausing at checkpoints for a decider when one is configured (SPEC_FULL.md
// §4.9), grounded on internal/services/search_service.go's
// service-orchestrates-collaborators shape.
package engine

import (
	"context"
	"fmt"
	"log/slog"

	"scifind-backend/internal/config"
	"scifind-backend/internal/models"
)

// Decider handles a checkpoint synchronously and returns the reviewer's
// decision. The Session Layer's checkpoint handler is the production
// implementation (SPEC_FULL.md §4.10); tests may supply a stub.
type Decider interface {
	Handle(ctx context.Context, ckpt models.Checkpoint) (models.Decision, error)
}

// Phase reporter lets the engine announce progress without depending on the
// Session Layer directly.
type PhaseReporter interface {
	Report(phase models.Phase, details string)
}

type noopReporter struct{}

func (noopReporter) Report(models.Phase, string) {}

// IntentParser is the Intent Parser stage's contract (SPEC_FULL.md §4.3).
type IntentParser interface {
	Parse(ctx context.Context, userText string) (models.ParsedIntent, error)
}

// QueryBuilder is the Query Builder stage's contract (SPEC_FULL.md §4.4).
type QueryBuilder interface {
	Build(ctx context.Context, input models.QueryBuilderInput) models.SearchStrategy
}

// Searcher is the Searcher stage's contract (SPEC_FULL.md §4.5).
type Searcher interface {
	Search(ctx context.Context, strategy models.SearchStrategy) []models.RawPaper
}

// Deduplicator is the Deduplicator stage's contract (SPEC_FULL.md §4.6).
type Deduplicator interface {
	Deduplicate(ctx context.Context, papers []models.RawPaper) []models.RawPaper
}

// Scorer is the Relevance Scorer stage's contract (SPEC_FULL.md §4.7).
type Scorer interface {
	Score(ctx context.Context, papers []models.RawPaper, intent models.ParsedIntent) []models.ScoredPaper
}

// Organizer is the Result Organizer stage's contract (SPEC_FULL.md §4.8).
type Organizer interface {
	Organize(scored []models.ScoredPaper, strategy models.SearchStrategy, originalQuery string) models.PaperCollection
}

// Stages bundles the six injected pipeline stages the engine drives.
type Stages struct {
	IntentParser IntentParser
	QueryBuilder QueryBuilder
	Searcher     Searcher
	Deduplicator Deduplicator
	Scorer       Scorer
	Organizer    Organizer
}

// Engine drives one run (SPEC_FULL.md §4.9).
type Engine struct {
	stages                    Stages
	maxIterations             int
	strategyCheckpointEnabled bool
	logger                    *slog.Logger
}

func New(stages Stages, cfg *config.Config, logger *slog.Logger) *Engine {
	maxIterations := cfg.Workflow.MaxIterations
	if maxIterations <= 0 {
		maxIterations = 5
	}
	return &Engine{
		stages:                    stages,
		maxIterations:             maxIterations,
		strategyCheckpointEnabled: cfg.Workflow.StrategyCheckpointEnabled,
		logger:                    logger,
	}
}

// Run executes the algorithm in SPEC_FULL.md §4.9 verbatim: intent parse is
// fatal; each iteration builds a strategy, optionally confirms it, searches,
// deduplicates, scores, organizes, then optionally reviews the result before
// deciding whether to iterate again.
func (e *Engine) Run(ctx context.Context, runID, userText string, maxResultsOverride *int, decider Decider, reporter PhaseReporter) (models.PaperCollection, error) {
	if reporter == nil {
		reporter = noopReporter{}
	}

	state := models.NewWorkflowState()

	intent, err := e.stages.IntentParser.Parse(ctx, userText)
	if err != nil {
		return models.PaperCollection{}, fmt.Errorf("run %s: intent parse failed: %w", runID, err)
	}
	if maxResultsOverride != nil {
		intent.Constraints.MaxResults = *maxResultsOverride
	}

	var lastCollection models.PaperCollection

	for state.CurrentIteration < e.maxIterations {
		iteration := state.CurrentIteration

		reporter.Report(models.PhaseQueryBuilding, "")
		strategy := e.stages.QueryBuilder.Build(ctx, models.QueryBuilderInput{
			Intent:             intent,
			PreviousStrategies: state.PreviousStrategies(),
			UserFeedback:       state.LatestFeedback(),
		})

		if e.strategyCheckpointEnabled && decider != nil {
			ckpt := models.NewStrategyCheckpoint(runID, iteration, intent, strategy)
			decision, err := decider.Handle(ctx, ckpt)
			if err != nil {
				return models.PaperCollection{}, fmt.Errorf("run %s: strategy checkpoint decider failed: %w", runID, err)
			}
			switch decision.Action {
			case models.Edit:
				revised, err := decodeStrategy(decision.RevisedData)
				if err != nil {
					return models.PaperCollection{}, fmt.Errorf("run %s: edited strategy invalid: %w", runID, err)
				}
				strategy = revised
			case models.Reject:
				feedback := coerce(decision)
				state.Record(strategy, 0, &feedback)
				continue
			}
		}

		reporter.Report(models.PhaseSearching, "")
		raw := e.stages.Searcher.Search(ctx, strategy)

		reporter.Report(models.PhaseDeduplicating, "")
		deduped := e.stages.Deduplicator.Deduplicate(ctx, raw)

		reporter.Report(models.PhaseScoring, "")
		scored := e.stages.Scorer.Score(ctx, deduped, intent)

		reporter.Report(models.PhaseOrganizing, "")
		coll := e.stages.Organizer.Organize(scored, strategy, userText)
		lastCollection = coll

		var decision models.Decision
		if decider != nil {
			reporter.Report(models.PhaseWaitingCheckpoint, "")
			ckpt := models.NewResultCheckpoint(runID, iteration, coll, state.AccumulatedCount())
			decision, err = decider.Handle(ctx, ckpt)
			if err != nil {
				return models.PaperCollection{}, fmt.Errorf("run %s: result checkpoint decider failed: %w", runID, err)
			}
		} else {
			decision = models.NewApproveDecision()
		}

		if decision.Action == models.Approve {
			state.Record(strategy, len(coll.Papers), nil)
			state.IsComplete = true
			return models.MergeAccumulated(coll, state.AccumulatedPapers()), nil
		}

		feedback := coerce(decision)
		state.AccumulateRelevant(coll.Papers, feedback.MarkedRelevant)
		state.Record(strategy, len(coll.Papers), &feedback)
	}

	state.IsComplete = true
	return lastCollection, nil
}

// coerce implements SPEC_FULL.md §4.9's `coerce`: if revised_data parses as
// a UserFeedback, use it; otherwise build one from the decision's note.
func coerce(decision models.Decision) models.UserFeedback {
	if decision.RevisedData != nil {
		if fb, ok := decodeUserFeedback(decision.RevisedData); ok {
			return fb
		}
	}
	return models.NewUserFeedback(decision.Note)
}
