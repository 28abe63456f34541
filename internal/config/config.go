// Package config provides application configuration for the pipeline: ambient
// settings from the environment and the refinement recipe from YAML.
package config

import (
	"time"
)

// Default configuration values.
const (
	DefaultLogLevel        = "INFO"
	DefaultNumProc         = 1
	DefaultEndpointTimeout = 120 * time.Second
	DefaultMaxRetries      = 5
	DefaultInitialDelay    = 2 * time.Second
	DefaultBackoffFactor   = 2.0
	DefaultVLLMBaseURL     = "http://localhost:8000/v1"
	DefaultPipelineBaseURL = "http://localhost:8080/v1"
)

// Endpoint configures one model-serving endpoint.
type Endpoint struct {
	baseURL    string
	apiKey     string
	timeout    time.Duration
	maxRetries int
}

// NewEndpoint creates an Endpoint.
func NewEndpoint(baseURL, apiKey string, timeout time.Duration, maxRetries int) Endpoint {
	if timeout <= 0 {
		timeout = DefaultEndpointTimeout
	}
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	return Endpoint{baseURL: baseURL, apiKey: apiKey, timeout: timeout, maxRetries: maxRetries}
}

// BaseURL returns the endpoint base URL.
func (e Endpoint) BaseURL() string { return e.baseURL }

// APIKey returns the endpoint API key.
func (e Endpoint) APIKey() string { return e.apiKey }

// Timeout returns the per-request timeout.
func (e Endpoint) Timeout() time.Duration { return e.timeout }

// MaxRetries returns the retry budget for transient endpoint failures.
func (e Endpoint) MaxRetries() int { return e.maxRetries }

// AppConfig is the assembled ambient configuration.
type AppConfig struct {
	logLevel         string
	logFormat        string
	acceleratorCount int
	vllmEndpoint     Endpoint
	pipelineEndpoint Endpoint
}

// LogLevel returns the log verbosity level.
func (c AppConfig) LogLevel() string { return c.logLevel }

// LogFormat returns the log output format (pretty or json).
func (c AppConfig) LogFormat() string { return c.logFormat }

// AcceleratorCount returns the number of accelerator cards available to the
// batched engine.
func (c AppConfig) AcceleratorCount() int { return c.acceleratorCount }

// VLLMEndpoint returns the batched engine endpoint.
func (c AppConfig) VLLMEndpoint() Endpoint { return c.vllmEndpoint }

// PipelineEndpoint returns the single-call engine endpoint.
func (c AppConfig) PipelineEndpoint() Endpoint { return c.pipelineEndpoint }
