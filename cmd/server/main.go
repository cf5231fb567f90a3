// Command server runs the research workflow's MCP tool surface over stdio
// (SPEC_FULL.md §4.10, §6): start/decide/get/export, backed by the Workflow
// Engine and its six pipeline stages, wired by hand here the way the
// teacher's cmd/server/main.go wires its own HTTP/NATS bring-up.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"scifind-backend/internal/config"
	"scifind-backend/internal/engine"
	"scifind-backend/internal/mcpserver"
	"scifind-backend/internal/modelclient"
	"scifind-backend/internal/pipeline"
	"scifind-backend/internal/searchclient"
	"scifind-backend/internal/session"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := config.NewLogger(cfg)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}

	mgr, err := buildManager(cfg, logger)
	if err != nil {
		return fmt.Errorf("build session manager: %w", err)
	}

	srv := mcpserver.New(mgr, logger)
	logger.Info("scifind-backend research workflow server starting")
	return srv.ServeStdio()
}

// buildManager wires the model client, the single configured search source,
// the six pipeline stages, and the engine into a session.Manager — the hand
// wiring this module's small dependency graph doesn't need wire for
// (DESIGN.md's "dropped teacher modules").
func buildManager(cfg *config.Config, logger *slog.Logger) (*session.Manager, error) {
	model, err := modelclient.New(modelclient.Config{
		Provider:    cfg.Model.Provider,
		APIKey:      cfg.Model.APIKey,
		BaseURL:     cfg.Model.BaseURL,
		ModelName:   cfg.Model.ModelName,
		Temperature: cfg.Model.Temperature,
		MaxTokens:   cfg.Model.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("build model client: %w", err)
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

	availableSources := make([]string, 0, len(sources))
	for name := range sources {
		availableSources = append(availableSources, name)
	}

	stages := engine.Stages{
		IntentParser: pipeline.NewIntentParser(model, cfg.Domain, logger),
		QueryBuilder: pipeline.NewQueryBuilder(model, cfg.Domain, availableSources, logger),
		Searcher:     pipeline.NewSearcher(sources, logger),
		Deduplicator: pipeline.NewDeduplicator(model, cfg.Dedup.LLMEnabled, cfg.Dedup.LLMMaxCandidates, logger),
		Scorer:       pipeline.NewScorer(model, cfg.Scorer.BatchSize, cfg.Scorer.MaxConcurrency, logger),
		Organizer:    pipeline.NewOrganizer(cfg.Organizer.MinRelevance),
	}

	eng := engine.New(stages, cfg, logger)
	return session.NewManager(eng, cfg), nil
}
