package main

import (
	"log/slog"

	"github.com/PFerreria/Concilium/pkg/artifacts"
	"github.com/PFerreria/Concilium/pkg/config"
	"github.com/PFerreria/Concilium/pkg/extraction"
	"github.com/PFerreria/Concilium/pkg/persistence"
	"github.com/PFerreria/Concilium/pkg/pipeline"
	"github.com/PFerreria/Concilium/pkg/render"
)

// newOrchestrator wires the stages configured in cfg around the given stores.
func newOrchestrator(
	cfg config.Config,
	jobs persistence.JobRepository,
	store artifacts.Store,
	logger *slog.Logger,
	opts ...pipeline.Option,
) (*pipeline.Orchestrator, error) {
	format, err := cfg.DiagramFormat()
	if err != nil {
		return nil, err
	}

	strategies, err := render.NewStrategies(cfg.Render.Order, render.GraphvizOptions{
		Binary: cfg.Render.GraphvizBinary,
	})
	if err != nil {
		return nil, err
	}

	if cfg.LLM.Enabled() {
		extractor := extraction.NewOpenAIExtractor(extraction.OpenAIConfig{
			BaseURL: cfg.LLM.BaseURL,
			APIKey:  cfg.LLM.APIKey,
			Model:   cfg.LLM.Model,
			Timeout: cfg.LLM.Timeout,
		}, logger)

		opts = append(opts, pipeline.WithExtractor(extractor))
	}

	logger.Info("Pipeline configured",
		"diagram_format", format,
		"renderer_order", cfg.Render.Order,
		"no_diagram", cfg.Render.NoDiagram,
		"extraction", cfg.LLM.Enabled(),
	)

	return pipeline.NewOrchestrator(
		pipeline.Config{
			DiagramFormat:     format,
			NoDiagram:         cfg.Render.NoDiagram,
			ExtractionTimeout: cfg.LLM.Timeout,
		},
		jobs,
		store,
		render.NewChain(logger, strategies...),
		logger,
		opts...,
	), nil
}
