package pipeline_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scifind-backend/internal/models"
	"scifind-backend/internal/pipeline"
)

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

func TestDeduplicator_ExactPassOnly_NoLLM(t *testing.T) {
	d := pipeline.NewDeduplicator(nil, false, 10, discardLogger())
	papers := []models.RawPaper{
		{ID: "1", Title: "Attention Is All You Need", Source: "s"},
		{ID: "2", Title: "attention is all you need", Source: "s"},
		{ID: "3", Title: "A Totally Different Paper", Source: "s"},
	}

	out := d.Deduplicate(context.Background(), papers)
	require.Len(t, out, 2)
}

func TestDeduplicator_MergeGroup_BackfillsFieldsAndMaxCitations(t *testing.T) {
	d := pipeline.NewDeduplicator(nil, false, 10, discardLogger())
	papers := []models.RawPaper{
		{ID: "1", Title: "Same Paper", Source: "s", CitationCount: 5, Venue: strPtr("ICML")},
		{ID: "2", Title: "same paper", Source: "s", CitationCount: 50, Year: intPtr(2019), DOI: strPtr("10.1/x")},
	}

	out := d.Deduplicate(context.Background(), papers)
	require.Len(t, out, 1)
	merged := out[0]
	assert.Equal(t, 50, merged.CitationCount)
	require.NotNil(t, merged.Venue)
	assert.Equal(t, "ICML", *merged.Venue)
	require.NotNil(t, merged.Year)
	assert.Equal(t, 2019, *merged.Year)
	require.NotNil(t, merged.DOI)
	assert.Equal(t, "10.1/x", *merged.DOI)
}

func TestDeduplicator_ExactGroups_DOITakesPrecedence(t *testing.T) {
	d := pipeline.NewDeduplicator(nil, false, 10, discardLogger())
	papers := []models.RawPaper{
		{ID: "1", Title: "Title A", Source: "s", DOI: strPtr("10.1/same")},
		{ID: "2", Title: "Title B Completely Different", Source: "s", DOI: strPtr("10.1/SAME")},
	}

	out := d.Deduplicate(context.Background(), papers)
	require.Len(t, out, 1)
}

func TestDeduplicator_SemanticPass_SkippedWhenSingletonsOutOfBounds(t *testing.T) {
	client := &fakeModelClient{}
	d := pipeline.NewDeduplicator(client, true, 1, discardLogger())
	papers := []models.RawPaper{
		{ID: "1", Title: "Paper One", Source: "s"},
		{ID: "2", Title: "Paper Two", Source: "s"},
	}

	out := d.Deduplicate(context.Background(), papers)
	require.Len(t, out, 2)
	assert.Equal(t, 0, client.callCount)
}

func TestDeduplicator_SemanticPass_FallsBackOnModelError(t *testing.T) {
	client := &fakeModelClient{jsonErrs: []error{errors.New("model down")}}
	d := pipeline.NewDeduplicator(client, true, 10, discardLogger())
	papers := []models.RawPaper{
		{ID: "1", Title: "Paper One", Source: "s"},
		{ID: "2", Title: "Paper Two", Source: "s"},
		{ID: "3", Title: "Paper Three", Source: "s"},
	}

	out := d.Deduplicate(context.Background(), papers)
	require.Len(t, out, 3)
}

func TestDeduplicator_SemanticPass_GroupsUngroupedSingletons(t *testing.T) {
	client := &fakeModelClient{jsonResponses: []map[string]interface{}{
		{"groups": []interface{}{[]interface{}{"1", "2"}}},
	}}
	d := pipeline.NewDeduplicator(client, true, 10, discardLogger())
	papers := []models.RawPaper{
		{ID: "1", Title: "Paper One", Source: "s"},
		{ID: "2", Title: "Paper Two Entirely", Source: "s"},
		{ID: "3", Title: "Unrelated Paper", Source: "s"},
	}

	out := d.Deduplicate(context.Background(), papers)
	require.Len(t, out, 2)
}
