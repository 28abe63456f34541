// Package provider abstracts conversational text-generation backends. Two
// engines exist: a batched high-throughput engine (vLLM-style server claiming
// whole accelerator cards) and a single-call pipeline engine. Both speak the
// OpenAI-compatible chat completion protocol.
package provider

import (
	"context"
	"errors"
)

// ErrEmptyBatch indicates a batch call was made with no requests.
var ErrEmptyBatch = errors.New("empty batch")

// Message represents one chat turn.
type Message struct {
	role    string
	content string
}

// NewMessage creates a Message.
func NewMessage(role, content string) Message {
	return Message{role: role, content: content}
}

// Role returns the message role ("system", "user", "assistant").
func (m Message) Role() string { return m.role }

// Content returns the message content.
func (m Message) Content() string { return m.content }

// SystemMessage creates a system message.
func SystemMessage(content string) Message {
	return NewMessage("system", content)
}

// UserMessage creates a user message.
func UserMessage(content string) Message {
	return NewMessage("user", content)
}

// SamplingParams are generation parameters passed through to the backend.
// Zero values mean "use the backend default".
type SamplingParams struct {
	temperature float64
	topP        float64
	maxTokens   int
}

// NewSamplingParams creates empty SamplingParams.
func NewSamplingParams() SamplingParams {
	return SamplingParams{}
}

// WithTemperature returns params with the sampling temperature set.
func (p SamplingParams) WithTemperature(t float64) SamplingParams {
	p.temperature = t
	return p
}

// WithTopP returns params with nucleus sampling top-p set.
func (p SamplingParams) WithTopP(v float64) SamplingParams {
	p.topP = v
	return p
}

// WithMaxTokens returns params with the completion token limit set.
func (p SamplingParams) WithMaxTokens(n int) SamplingParams {
	p.maxTokens = n
	return p
}

// Temperature returns the sampling temperature.
func (p SamplingParams) Temperature() float64 { return p.temperature }

// TopP returns the nucleus sampling top-p.
func (p SamplingParams) TopP() float64 { return p.topP }

// MaxTokens returns the completion token limit.
func (p SamplingParams) MaxTokens() int { return p.maxTokens }

// Conversation is an ordered list of chat turns plus sampling parameters.
type Conversation struct {
	messages []Message
	params   SamplingParams
}

// NewConversation creates a Conversation from messages.
func NewConversation(messages ...Message) Conversation {
	msgs := make([]Message, len(messages))
	copy(msgs, messages)
	return Conversation{messages: msgs}
}

// WithParams returns the conversation with sampling parameters attached.
func (c Conversation) WithParams(p SamplingParams) Conversation {
	c.params = p
	return c
}

// Messages returns the chat turns.
func (c Conversation) Messages() []Message {
	msgs := make([]Message, len(c.messages))
	copy(msgs, c.messages)
	return msgs
}

// Params returns the sampling parameters.
func (c Conversation) Params() SamplingParams { return c.params }

// Completion is a generated reply.
type Completion struct {
	text         string
	finishReason string
}

// NewCompletion creates a Completion.
func NewCompletion(text, finishReason string) Completion {
	return Completion{text: text, finishReason: finishReason}
}

// Text returns the generated text. Engines return only newly generated
// text, never the echoed prompt.
func (c Completion) Text() string { return c.text }

// FinishReason returns why generation stopped.
func (c Completion) FinishReason() string { return c.finishReason }

// TextGenerator is a live model handle able to answer one conversation.
type TextGenerator interface {
	// Generate produces a completion for the conversation.
	Generate(ctx context.Context, conv Conversation) (Completion, error)
}

// BatchTextGenerator additionally accepts a batch of conversations. The
// batched engine schedules them together on the accelerator.
type BatchTextGenerator interface {
	TextGenerator

	// GenerateBatch produces one completion per conversation, in order.
	GenerateBatch(ctx context.Context, convs []Conversation) ([]Completion, error)
}

// EngineError wraps backend errors with the failed operation and the HTTP
// status when one is available.
type EngineError struct {
	operation  string
	statusCode int
	message    string
	cause      error
}

// NewEngineError creates an EngineError.
func NewEngineError(operation string, statusCode int, message string, cause error) *EngineError {
	return &EngineError{
		operation:  operation,
		statusCode: statusCode,
		message:    message,
		cause:      cause,
	}
}

// Error implements the error interface.
func (e *EngineError) Error() string {
	if e.cause != nil {
		return e.message + ": " + e.cause.Error()
	}
	return e.message
}

// Unwrap returns the underlying cause.
func (e *EngineError) Unwrap() error { return e.cause }

// Operation returns the operation that failed.
func (e *EngineError) Operation() string { return e.operation }

// StatusCode returns the HTTP status code, or 0 when unknown.
func (e *EngineError) StatusCode() int { return e.statusCode }
