package engine_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scifind-backend/internal/config"
	"scifind-backend/internal/engine"
	"scifind-backend/internal/models"
)

type stubIntentParser struct {
	intent models.ParsedIntent
	err    error
}

func (s stubIntentParser) Parse(ctx context.Context, userText string) (models.ParsedIntent, error) {
	return s.intent, s.err
}

type stubQueryBuilder struct{}

func (stubQueryBuilder) Build(ctx context.Context, input models.QueryBuilderInput) models.SearchStrategy {
	return models.SearchStrategy{
		Queries: []models.SearchQuery{{BooleanQuery: "x"}},
		Sources: []string{"s1"},
	}
}

type stubSearcher struct{}

func (stubSearcher) Search(ctx context.Context, strategy models.SearchStrategy) []models.RawPaper {
	return []models.RawPaper{{ID: "p1", Title: "Paper One", Source: "s1"}}
}

type stubDeduplicator struct{}

func (stubDeduplicator) Deduplicate(ctx context.Context, papers []models.RawPaper) []models.RawPaper {
	return papers
}

type stubScorer struct{}

func (stubScorer) Score(ctx context.Context, papers []models.RawPaper, intent models.ParsedIntent) []models.ScoredPaper {
	out := make([]models.ScoredPaper, len(papers))
	for i, p := range papers {
		out[i] = models.ScoredPaper{Paper: p, RelevanceScore: 0.9}
	}
	return out
}

type stubOrganizer struct{}

func (stubOrganizer) Organize(scored []models.ScoredPaper, strategy models.SearchStrategy, originalQuery string) models.PaperCollection {
	papers := make([]models.Paper, len(scored))
	for i, s := range scored {
		papers[i] = models.ProjectPaper(s)
	}
	return models.PaperCollection{Papers: papers, Metadata: models.CollectionMetadata{Query: originalQuery, TotalFound: len(papers)}}
}

func testStages() engine.Stages {
	return engine.Stages{
		IntentParser: stubIntentParser{intent: models.ParsedIntent{Topic: "t", Concepts: []string{"c"}, IntentType: models.IntentSurvey}},
		QueryBuilder: stubQueryBuilder{},
		Searcher:     stubSearcher{},
		Deduplicator: stubDeduplicator{},
		Scorer:       stubScorer{},
		Organizer:    stubOrganizer{},
	}
}

func testConfig(maxIterations int, strategyCheckpoint bool) *config.Config {
	cfg := &config.Config{}
	cfg.Workflow.MaxIterations = maxIterations
	cfg.Workflow.StrategyCheckpointEnabled = strategyCheckpoint
	return cfg
}

type stubDecider struct {
	decisions []models.Decision
	calls     int
}

func (d *stubDecider) Handle(ctx context.Context, ckpt models.Checkpoint) (models.Decision, error) {
	i := d.calls
	if i >= len(d.decisions) {
		i = len(d.decisions) - 1
	}
	d.calls++
	return d.decisions[i], nil
}

func TestEngine_Run_NilDeciderAutoApprovesFirstIteration(t *testing.T) {
	eng := engine.New(testStages(), testConfig(5, false), discardLogger())

	coll, err := eng.Run(context.Background(), "run1", "find papers", nil, nil, nil)

	require.NoError(t, err)
	require.Len(t, coll.Papers, 1)
	assert.Equal(t, "p1", coll.Papers[0].ID)
}

func TestEngine_Run_IntentParseFailureIsFatal(t *testing.T) {
	stages := testStages()
	stages.IntentParser = stubIntentParser{err: assert.AnError}
	eng := engine.New(stages, testConfig(5, false), discardLogger())

	_, err := eng.Run(context.Background(), "run1", "find papers", nil, nil, nil)
	assert.Error(t, err)
}

func TestEngine_Run_ResultApproveEndsRun(t *testing.T) {
	decider := &stubDecider{decisions: []models.Decision{{Action: models.Approve}}}
	eng := engine.New(testStages(), testConfig(5, false), discardLogger())

	coll, err := eng.Run(context.Background(), "run1", "find papers", nil, decider, nil)

	require.NoError(t, err)
	assert.Len(t, coll.Papers, 1)
	assert.Equal(t, 1, decider.calls)
}

func TestEngine_Run_ResultRejectIteratesUntilApprove(t *testing.T) {
	decider := &stubDecider{decisions: []models.Decision{
		{Action: models.Reject, Note: "try again"},
		{Action: models.Approve},
	}}
	eng := engine.New(testStages(), testConfig(5, false), discardLogger())

	coll, err := eng.Run(context.Background(), "run1", "find papers", nil, decider, nil)

	require.NoError(t, err)
	assert.Len(t, coll.Papers, 1)
	assert.Equal(t, 2, decider.calls)
}

func TestEngine_Run_MaxIterationsCeilingStopsWithoutApproval(t *testing.T) {
	decider := &stubDecider{decisions: []models.Decision{{Action: models.Reject, Note: "again"}}}
	eng := engine.New(testStages(), testConfig(2, false), discardLogger())

	coll, err := eng.Run(context.Background(), "run1", "find papers", nil, decider, nil)

	require.NoError(t, err)
	assert.Len(t, coll.Papers, 1)
	assert.Equal(t, 2, decider.calls)
}

func TestEngine_Run_StrategyCheckpointEditReplacesStrategy(t *testing.T) {
	editedStrategy := map[string]interface{}{
		"queries": []interface{}{map[string]interface{}{"boolean_query": "edited"}},
		"sources": []interface{}{"s1"},
	}
	decider := &stubDecider{decisions: []models.Decision{
		{Action: models.Edit, RevisedData: editedStrategy},
		{Action: models.Approve},
	}}
	eng := engine.New(testStages(), testConfig(5, true), discardLogger())

	coll, err := eng.Run(context.Background(), "run1", "find papers", nil, decider, nil)

	require.NoError(t, err)
	assert.Len(t, coll.Papers, 1)
}

func TestEngine_Run_StrategyCheckpointRejectRecordsAndContinues(t *testing.T) {
	decider := &stubDecider{decisions: []models.Decision{
		{Action: models.Reject, Note: "not this strategy"},
		{Action: models.Approve},
		{Action: models.Approve},
	}}
	eng := engine.New(testStages(), testConfig(5, true), discardLogger())

	coll, err := eng.Run(context.Background(), "run1", "find papers", nil, decider, nil)

	require.NoError(t, err)
	assert.Len(t, coll.Papers, 1)
}

func TestEngine_Run_MaxResultsOverrideAppliesToIntent(t *testing.T) {
	override := 42
	eng := engine.New(testStages(), testConfig(5, false), discardLogger())

	_, err := eng.Run(context.Background(), "run1", "find papers", &override, nil, nil)
	require.NoError(t, err)
}
