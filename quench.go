// Package quench provides a library for LLM-powered dataset refinement.
//
// A refinement run loads a JSONL dataset, applies a recipe of ops (mappers
// that rewrite records with a text-generation model, filters that drop
// records), and exports the result.
//
// Basic usage:
//
//	client, err := quench.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	recipe, err := config.LoadRecipe("recipe.yaml")
//	summary, err := client.Run(ctx, recipe)
package quench

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/quench-data/quench/application/pipeline"
	"github.com/quench-data/quench/domain/op"
	"github.com/quench-data/quench/infrastructure/model"
	"github.com/quench-data/quench/infrastructure/ops"
	"github.com/quench-data/quench/infrastructure/provider"
	"github.com/quench-data/quench/infrastructure/tracing"
	"github.com/quench-data/quench/internal/config"
	"github.com/quench-data/quench/internal/log"
)

// Client assembles the op registry, the model registry and the engine
// factories for refinement runs.
type Client struct {
	appCfg   config.AppConfig
	logger   *slog.Logger
	models   *model.Registry
	registry *op.Registry
}

// New creates a Client.
func New(opts ...Option) (*Client, error) {
	cfg := newClientConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	logger := cfg.logger
	if logger == nil {
		logger = log.New(log.Format(cfg.appCfg.LogFormat()), cfg.appCfg.LogLevel())
	}

	models := model.NewRegistry()
	for modelType, factory := range cfg.modelFactories {
		models.RegisterFactory(modelType, factory)
	}

	registry := op.NewRegistry()
	deps := ops.Deps{
		Models:           models,
		AcceleratorCount: cfg.appCfg.AcceleratorCount(),
		Logger:           logger,
	}
	if err := ops.RegisterAll(registry, deps); err != nil {
		return nil, fmt.Errorf("register ops: %w", err)
	}

	return &Client{
		appCfg:   cfg.appCfg,
		logger:   logger,
		models:   models,
		registry: registry,
	}, nil
}

// Ops exposes the op registry, e.g. for registering project-specific ops.
func (c *Client) Ops() *op.Registry {
	return c.registry
}

// Run executes a recipe and returns its summary.
func (c *Client) Run(ctx context.Context, recipe config.Recipe) (pipeline.Summary, error) {
	var execOpts []pipeline.Option

	if recipe.TraceDBURL != "" {
		tracer, err := tracing.NewTracer(ctx, recipe.TraceDBURL, recipe.ProjectName)
		if err != nil {
			return pipeline.Summary{}, err
		}
		defer func() { _ = tracer.Close() }()
		execOpts = append(execOpts, pipeline.WithTracer(tracer))
	}

	executor := pipeline.NewExecutor(recipe, c.registry, c.logger, execOpts...)
	return executor.Run(ctx)
}

// Close releases client resources.
func (c *Client) Close() error {
	return nil
}

// vllmFactory builds batched engine handles against the configured server.
func vllmFactory(endpoint config.Endpoint) model.Factory {
	return func(spec model.Spec, _ int) (provider.TextGenerator, error) {
		engine := NewEngineConfig(endpoint, spec.Name)
		tps, _ := spec.Params["tensor_parallel_size"].(int)
		return provider.NewVLLMEngine(engine, provider.WithTensorParallelSize(tps)), nil
	}
}

// pipelineFactory builds single-call handles against the configured server.
func pipelineFactory(endpoint config.Endpoint) model.Factory {
	return func(spec model.Spec, _ int) (provider.TextGenerator, error) {
		return provider.NewPipelineEngine(NewEngineConfig(endpoint, spec.Name)), nil
	}
}

// NewEngineConfig maps an endpoint config onto engine connection settings.
func NewEngineConfig(endpoint config.Endpoint, modelName string) provider.EngineConfig {
	return provider.EngineConfig{
		BaseURL:    endpoint.BaseURL(),
		APIKey:     endpoint.APIKey(),
		Model:      modelName,
		Timeout:    endpoint.Timeout(),
		MaxRetries: endpoint.MaxRetries(),
	}
}
