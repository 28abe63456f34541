package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

// EndpointEnv holds environment configuration for one model endpoint.
// Nested under a prefix, e.g. VLLM_ENDPOINT_BASE_URL.
type EndpointEnv struct {
	// BaseURL is the endpoint base URL, e.g. http://localhost:8000/v1.
	BaseURL string `envconfig:"BASE_URL"`

	// APIKey authenticates against the endpoint. Local servers usually
	// accept any value.
	APIKey string `envconfig:"API_KEY" default:"EMPTY"`

	// Timeout is the per-request timeout.
	Timeout time.Duration `envconfig:"TIMEOUT" default:"120s"`

	// MaxRetries bounds retries for transient endpoint failures.
	MaxRetries int `envconfig:"MAX_RETRIES" default:"5"`
}

// EnvConfig holds all environment-based configuration.
type EnvConfig struct {
	// LogLevel is the log verbosity level.
	// Env: LOG_LEVEL (default: INFO)
	LogLevel string `envconfig:"LOG_LEVEL" default:"INFO"`

	// LogFormat is the log output format (pretty or json).
	// Env: LOG_FORMAT (default: pretty)
	LogFormat string `envconfig:"LOG_FORMAT" default:"pretty"`

	// AcceleratorCount is the number of accelerator cards the batched
	// engine may claim. Env: ACCELERATOR_COUNT (default: 0)
	AcceleratorCount int `envconfig:"ACCELERATOR_COUNT" default:"0"`

	// VLLMEndpoint configures the batched engine server.
	VLLMEndpoint EndpointEnv `envconfig:"VLLM_ENDPOINT"`

	// PipelineEndpoint configures the single-call generation server.
	PipelineEndpoint EndpointEnv `envconfig:"PIPELINE_ENDPOINT"`
}

// LoadFromEnv loads configuration from environment variables.
func LoadFromEnv() (EnvConfig, error) {
	var cfg EnvConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return EnvConfig{}, err
	}
	return cfg, nil
}

// ToAppConfig converts the environment configuration into an AppConfig,
// filling endpoint defaults.
func (c EnvConfig) ToAppConfig() AppConfig {
	vllmURL := c.VLLMEndpoint.BaseURL
	if vllmURL == "" {
		vllmURL = DefaultVLLMBaseURL
	}
	pipeURL := c.PipelineEndpoint.BaseURL
	if pipeURL == "" {
		pipeURL = DefaultPipelineBaseURL
	}

	return AppConfig{
		logLevel:         c.LogLevel,
		logFormat:        c.LogFormat,
		acceleratorCount: c.AcceleratorCount,
		vllmEndpoint: NewEndpoint(
			vllmURL, c.VLLMEndpoint.APIKey,
			c.VLLMEndpoint.Timeout, c.VLLMEndpoint.MaxRetries,
		),
		pipelineEndpoint: NewEndpoint(
			pipeURL, c.PipelineEndpoint.APIKey,
			c.PipelineEndpoint.Timeout, c.PipelineEndpoint.MaxRetries,
		),
	}
}
