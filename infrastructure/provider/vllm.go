package provider

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/sync/errgroup"
)

// VLLMEngine talks to a vLLM server through its OpenAI-compatible API. The
// server claims exclusive placement on its accelerator cards and batches
// concurrent requests internally, so a batch is submitted as parallel
// requests and the server schedules them together.
//
// Exactly one engine instance should exist per server; the pipeline enforces
// a single worker for ops using it.
type VLLMEngine struct {
	client             *openai.Client
	model              string
	retry              retryPolicy
	tensorParallelSize int
}

// VLLMOption configures a VLLMEngine.
type VLLMOption func(*VLLMEngine)

// WithTensorParallelSize records the tensor-parallel degree the server was
// started with. Informational; the serving process owns the actual layout.
func WithTensorParallelSize(n int) VLLMOption {
	return func(e *VLLMEngine) { e.tensorParallelSize = n }
}

// NewVLLMEngine creates a VLLMEngine from connection settings.
func NewVLLMEngine(cfg EngineConfig, opts ...VLLMOption) *VLLMEngine {
	e := &VLLMEngine{
		client: newClient(cfg),
		model:  cfg.Model,
		retry:  newRetryPolicy(cfg),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// TensorParallelSize returns the recorded tensor-parallel degree.
func (e *VLLMEngine) TensorParallelSize() int { return e.tensorParallelSize }

// Generate submits the conversation as a one-item batch and returns the
// first completion.
func (e *VLLMEngine) Generate(ctx context.Context, conv Conversation) (Completion, error) {
	completions, err := e.GenerateBatch(ctx, []Conversation{conv})
	if err != nil {
		return Completion{}, err
	}
	return completions[0], nil
}

// GenerateBatch produces one completion per conversation, in order.
func (e *VLLMEngine) GenerateBatch(ctx context.Context, convs []Conversation) ([]Completion, error) {
	if len(convs) == 0 {
		return nil, fmt.Errorf("vllm generate: %w", ErrEmptyBatch)
	}

	completions := make([]Completion, len(convs))
	g, gctx := errgroup.WithContext(ctx)

	for i, conv := range convs {
		i, conv := i, conv
		g.Go(func() error {
			req := toOpenAIRequest(e.model, conv)

			var resp openai.ChatCompletionResponse
			err := e.retry.do(gctx, func() error {
				var callErr error
				resp, callErr = e.client.CreateChatCompletion(gctx, req)
				return callErr
			})
			if err != nil {
				return wrapEngineError("vllm_chat", err)
			}

			completion, err := firstChoice("vllm_chat", resp)
			if err != nil {
				return err
			}
			completions[i] = completion
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return completions, nil
}

var (
	_ TextGenerator      = (*VLLMEngine)(nil)
	_ BatchTextGenerator = (*VLLMEngine)(nil)
)
