package provider

import (
	"context"

	openai "github.com/sashabaranov/go-openai"
)

// PipelineEngine is the single-call generation path: one request, one
// completion, no device claims. It targets any OpenAI-compatible chat
// endpoint (a transformers serving process, TGI, Ollama).
type PipelineEngine struct {
	client *openai.Client
	model  string
	retry  retryPolicy
}

// NewPipelineEngine creates a PipelineEngine from connection settings.
func NewPipelineEngine(cfg EngineConfig) *PipelineEngine {
	return &PipelineEngine{
		client: newClient(cfg),
		model:  cfg.Model,
		retry:  newRetryPolicy(cfg),
	}
}

// Generate produces a completion for the conversation. Only newly generated
// text is returned; the prompt is never echoed back.
func (e *PipelineEngine) Generate(ctx context.Context, conv Conversation) (Completion, error) {
	req := toOpenAIRequest(e.model, conv)

	var resp openai.ChatCompletionResponse
	err := e.retry.do(ctx, func() error {
		var callErr error
		resp, callErr = e.client.CreateChatCompletion(ctx, req)
		return callErr
	})
	if err != nil {
		return Completion{}, wrapEngineError("pipeline_chat", err)
	}

	return firstChoice("pipeline_chat", resp)
}

var _ TextGenerator = (*PipelineEngine)(nil)
