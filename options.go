package quench

import (
	"log/slog"

	"github.com/quench-data/quench/infrastructure/model"
	"github.com/quench-data/quench/internal/config"
)

// clientConfig holds configuration for Client construction.
type clientConfig struct {
	appCfg         config.AppConfig
	logger         *slog.Logger
	modelFactories map[string]model.Factory
}

// newClientConfig creates a clientConfig with defaults from the environment
// left unset; callers normally pass WithAppConfig.
func newClientConfig() *clientConfig {
	cfg := &clientConfig{
		modelFactories: map[string]model.Factory{},
	}
	cfg.applyEngineFactories()
	return cfg
}

// applyEngineFactories installs the default engine factories for the
// current app config.
func (c *clientConfig) applyEngineFactories() {
	c.modelFactories[model.TypeVLLM] = vllmFactory(c.appCfg.VLLMEndpoint())
	c.modelFactories[model.TypePipeline] = pipelineFactory(c.appCfg.PipelineEndpoint())
}

// Option configures the Client.
type Option func(*clientConfig)

// WithAppConfig supplies the ambient configuration (log settings,
// accelerator count, engine endpoints).
func WithAppConfig(appCfg config.AppConfig) Option {
	return func(c *clientConfig) {
		c.appCfg = appCfg
		c.applyEngineFactories()
	}
}

// WithLogger replaces the logger built from the app config.
func WithLogger(logger *slog.Logger) Option {
	return func(c *clientConfig) {
		c.logger = logger
	}
}

// WithModelFactory replaces the factory for a backend kind. Tests use this
// to hand out fake generators.
func WithModelFactory(modelType string, factory model.Factory) Option {
	return func(c *clientConfig) {
		c.modelFactories[modelType] = factory
	}
}
