package provider

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// EngineConfig holds connection settings shared by both engines.
type EngineConfig struct {
	BaseURL       string
	APIKey        string
	Model         string
	Timeout       time.Duration
	MaxRetries    int
	InitialDelay  time.Duration
	BackoffFactor float64
	HTTPClient    *http.Client
}

// newClient builds a go-openai client for an OpenAI-compatible server.
func newClient(cfg EngineConfig) *openai.Client {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	if cfg.HTTPClient != nil {
		clientCfg.HTTPClient = cfg.HTTPClient
	} else if cfg.Timeout > 0 {
		clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	return openai.NewClientWithConfig(clientCfg)
}

// retryPolicy retries transient failures with exponential backoff.
type retryPolicy struct {
	maxRetries    int
	initialDelay  time.Duration
	backoffFactor float64
}

func newRetryPolicy(cfg EngineConfig) retryPolicy {
	p := retryPolicy{
		maxRetries:    cfg.MaxRetries,
		initialDelay:  cfg.InitialDelay,
		backoffFactor: cfg.BackoffFactor,
	}
	if p.maxRetries < 0 {
		p.maxRetries = 0
	}
	if p.initialDelay <= 0 {
		p.initialDelay = 2 * time.Second
	}
	if p.backoffFactor <= 0 {
		p.backoffFactor = 2.0
	}
	return p
}

func (p retryPolicy) do(ctx context.Context, fn func() error) error {
	delay := p.initialDelay
	var lastErr error

	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !isRetryable(lastErr) {
			return lastErr
		}

		if attempt < p.maxRetries {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
				delay = time.Duration(float64(delay) * p.backoffFactor)
			}
		}
	}

	return lastErr
}

func isRetryable(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return true
		}
		return false
	}

	var reqErr *openai.RequestError
	return errors.As(err, &reqErr)
}

// wrapEngineError converts go-openai errors into EngineError.
func wrapEngineError(operation string, err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return NewEngineError(operation, apiErr.HTTPStatusCode, apiErr.Message, err)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return NewEngineError(operation, reqErr.HTTPStatusCode, reqErr.Error(), err)
	}

	return NewEngineError(operation, 0, err.Error(), err)
}

// toOpenAIRequest converts a Conversation into a chat completion request.
func toOpenAIRequest(model string, conv Conversation) openai.ChatCompletionRequest {
	turns := conv.Messages()
	messages := make([]openai.ChatCompletionMessage, len(turns))
	for i, m := range turns {
		messages[i] = openai.ChatCompletionMessage{
			Role:    m.Role(),
			Content: m.Content(),
		}
	}

	req := openai.ChatCompletionRequest{
		Model:    model,
		Messages: messages,
	}

	params := conv.Params()
	if params.Temperature() > 0 {
		req.Temperature = float32(params.Temperature())
	}
	if params.TopP() > 0 {
		req.TopP = float32(params.TopP())
	}
	if params.MaxTokens() > 0 {
		req.MaxTokens = params.MaxTokens()
	}

	return req
}

// firstChoice extracts the first completion text from a response.
func firstChoice(operation string, resp openai.ChatCompletionResponse) (Completion, error) {
	if len(resp.Choices) == 0 {
		return Completion{}, NewEngineError(operation, 0, "no choices in response", nil)
	}
	choice := resp.Choices[0]
	return NewCompletion(choice.Message.Content, string(choice.FinishReason)), nil
}
