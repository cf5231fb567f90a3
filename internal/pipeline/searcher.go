package pipeline

import (
	"context"
	"log/slog"
	"sort"

	"scifind-backend/internal/models"
)

// SourceClient is one configured search source, satisfied by
// *searchclient.Client.
type SourceClient interface {
	SearchAdvanced(ctx context.Context, strategy models.SearchStrategy) ([]models.RawPaper, error)
}

// Searcher implements the Searcher stage (SPEC_FULL.md §4.5): it dispatches
// strategy.Sources concurrently (grounded on
// internal/providers/manager.go's searchMerge fan-out) and flattens results
// in source-name order, dropping any source's failure.
type Searcher struct {
	sources map[string]SourceClient
	logger  *slog.Logger
}

func NewSearcher(sources map[string]SourceClient, logger *slog.Logger) *Searcher {
	return &Searcher{sources: sources, logger: logger}
}

type sourceResult struct {
	name   string
	papers []models.RawPaper
	err    error
}

// Search resolves strategy.Sources against the configured set, falling back
// to the full set if the intersection is empty, then fans out one goroutine
// per resolved source and flattens in source-name order.
func (s *Searcher) Search(ctx context.Context, strategy models.SearchStrategy) []models.RawPaper {
	if len(strategy.Queries) == 0 || len(s.sources) == 0 {
		return nil
	}

	names := s.resolveSources(strategy.Sources)
	if len(names) == 0 {
		return nil
	}

	resultChan := make(chan sourceResult, len(names))
	for _, name := range names {
		go func(name string) {
			client := s.sources[name]
			papers, err := client.SearchAdvanced(ctx, strategy)
			resultChan <- sourceResult{name: name, papers: papers, err: err}
		}(name)
	}

	collected := make(map[string][]models.RawPaper, len(names))
	for range names {
		res := <-resultChan
		if res.err != nil {
			s.logger.Warn("search source failed, dropping", slog.String("source", res.name), slog.String("error", res.err.Error()))
			continue
		}
		collected[res.name] = res.papers
	}

	sort.Strings(names)
	var out []models.RawPaper
	for _, name := range names {
		out = append(out, collected[name]...)
	}
	return out
}

func (s *Searcher) resolveSources(requested []string) []string {
	var names []string
	for _, name := range requested {
		if _, ok := s.sources[name]; ok {
			names = append(names, name)
		}
	}
	if len(names) > 0 {
		return names
	}
	names = make([]string, 0, len(s.sources))
	for name := range s.sources {
		names = append(names, name)
	}
	return names
}
