// Command researchcli runs one research workflow synchronously against the
// query words given on the command line, with no decider attached — the
// engine auto-approves every checkpoint (SPEC_FULL.md §4.9) — and prints
// the Markdown export of the resulting collection (SPEC_FULL.md §6's dev
// command-line surface).
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"scifind-backend/internal/config"
	"scifind-backend/internal/engine"
	"scifind-backend/internal/export"
	"scifind-backend/internal/modelclient"
	"scifind-backend/internal/pipeline"
	"scifind-backend/internal/searchclient"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: researchcli <query-words...>")
		os.Exit(1)
	}
	query := strings.Join(os.Args[1:], " ")

	out, err := run(query)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Println(out)
}

func run(query string) (string, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return "", fmt.Errorf("load config: %w", err)
	}

	logger, err := config.NewLogger(cfg)
	if err != nil {
		return "", fmt.Errorf("build logger: %w", err)
	}

	model, err := modelclient.New(modelclient.Config{
		Provider:    cfg.Model.Provider,
		APIKey:      cfg.Model.APIKey,
		BaseURL:     cfg.Model.BaseURL,
		ModelName:   cfg.Model.ModelName,
		Temperature: cfg.Model.Temperature,
		MaxTokens:   cfg.Model.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("build model client: %w", err)
	}

	sourceName := cfg.Search.Name
	if sourceName == "" {
		sourceName = "default"
	}
	source := searchclient.New(searchclient.Config{
		Name:           sourceName,
		BaseURL:        cfg.Search.BaseURL,
		APIKey:         cfg.Search.APIKey,
		RequestsPerSec: cfg.Search.RatePerSec,
		MaxRetries:     cfg.Search.MaxRetries,
		MaxCalls:       cfg.Search.MaxCalls,
	}, logger)
	sources := map[string]pipeline.SourceClient{sourceName: source}
	availableSources := []string{sourceName}

	stages := engine.Stages{
		IntentParser: pipeline.NewIntentParser(model, cfg.Domain, logger),
		QueryBuilder: pipeline.NewQueryBuilder(model, cfg.Domain, availableSources, logger),
		Searcher:     pipeline.NewSearcher(sources, logger),
		Deduplicator: pipeline.NewDeduplicator(model, cfg.Dedup.LLMEnabled, cfg.Dedup.LLMMaxCandidates, logger),
		Scorer:       pipeline.NewScorer(model, cfg.Scorer.BatchSize, cfg.Scorer.MaxConcurrency, logger),
		Organizer:    pipeline.NewOrganizer(cfg.Organizer.MinRelevance),
	}
	eng := engine.New(stages, cfg, logger)

	runID := config.NewRunID()
	coll, err := eng.Run(context.Background(), runID, query, nil, nil, nil)
	if err != nil {
		return "", fmt.Errorf("workflow failed: %w", err)
	}

	return export.Render(coll, export.Markdown)
}
