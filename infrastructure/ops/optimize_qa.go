package ops

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/quench-data/quench/domain/op"
	"github.com/quench-data/quench/domain/record"
	"github.com/quench-data/quench/infrastructure/model"
	"github.com/quench-data/quench/infrastructure/provider"
)

// OptimizeQAName is the registry name of the QA optimizer.
const OptimizeQAName = "optimize_qa_mapper"

// DefaultModel is the model used when the recipe names none.
const DefaultModel = "Qwen/Qwen2.5-7B-Instruct"

// Default prompt templates. The model is instructed to answer in a fixed
// two-section format that DefaultOutputPattern recovers.
const (
	DefaultSystemPrompt = "请优化输入的问答对，使【问题】和【回答】都更加详细、准确。" +
		"必须按照以下标记格式，直接输出优化后的问答对：\n" +
		"【问题】\n" +
		"优化后的问题\n" +
		"【回答】\n" +
		"优化后的回答"
	DefaultInputTemplate  = "以下是原始问答对：\n%s"
	DefaultQAPairTemplate = "【问题】\n%s\n【回答】\n%s"
	DefaultOutputPattern  = `(?s)【问题】\s*(.*?)\s*【回答】\s*(.*)`
)

// ErrNoAccelerator indicates the batched engine was requested without an
// available accelerator card.
var ErrNoAccelerator = errors.New("batched engine requires an accelerator")

// ErrBadOutputPattern indicates the output pattern does not have exactly
// two capture groups.
var ErrBadOutputPattern = errors.New("output pattern must have exactly two capture groups")

// OptimizeQAConfig configures the QA optimizer. Zero values select the
// defaults above.
type OptimizeQAConfig struct {
	// Model is the model identifier to load.
	Model string

	// SystemPrompt replaces the fixed instruction text.
	SystemPrompt string

	// InputTemplate wraps the formatted QA pair (one %s slot).
	InputTemplate string

	// QAPairTemplate combines question and answer (two %s slots,
	// question first).
	QAPairTemplate string

	// OutputPattern extracts the optimized question and answer from the
	// raw reply. Must have exactly two capture groups; applied with dot
	// matching newlines.
	OutputPattern string

	// QueryKey and ResponseKey are the record fields read and written.
	QueryKey    string
	ResponseKey string

	// EnableVLLM selects the batched engine instead of the single-call
	// pipeline. The batched engine claims a whole accelerator, so the
	// executor runs the op with one worker.
	EnableVLLM bool

	// ModelParams are passed opaquely to the model loader.
	ModelParams map[string]any

	// SamplingParams are passed through to the generation call.
	SamplingParams provider.SamplingParams
}

// OptimizeQA asks a model to rewrite a question-answer pair to be more
// detailed and accurate, then writes each half back into the record when it
// parses out non-empty.
type OptimizeQA struct {
	systemPrompt   string
	inputTemplate  string
	qaPairTemplate string
	outputPattern  *regexp.Regexp
	queryKey       string
	responseKey    string
	enableVLLM     bool
	sampling       provider.SamplingParams
	modelKey       model.Key
	models         *model.Registry
	log            *slog.Logger
}

// NewOptimizeQA creates the op, fails fast on invalid configuration, and
// prepares (but does not load) its model.
func NewOptimizeQA(cfg OptimizeQAConfig, deps Deps) (*OptimizeQA, error) {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = DefaultSystemPrompt
	}
	if cfg.InputTemplate == "" {
		cfg.InputTemplate = DefaultInputTemplate
	}
	if cfg.QAPairTemplate == "" {
		cfg.QAPairTemplate = DefaultQAPairTemplate
	}
	if cfg.OutputPattern == "" {
		cfg.OutputPattern = DefaultOutputPattern
	}
	if cfg.QueryKey == "" {
		cfg.QueryKey = record.DefaultQueryKey
	}
	if cfg.ResponseKey == "" {
		cfg.ResponseKey = record.DefaultResponseKey
	}

	pattern, err := regexp.Compile(cfg.OutputPattern)
	if err != nil {
		return nil, fmt.Errorf("compile output pattern: %w", err)
	}
	if pattern.NumSubexp() != 2 {
		return nil, fmt.Errorf("%w: got %d", ErrBadOutputPattern, pattern.NumSubexp())
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	modelParams := map[string]any{}
	for k, v := range cfg.ModelParams {
		modelParams[k] = v
	}

	modelType := model.TypePipeline
	if cfg.EnableVLLM {
		if deps.AcceleratorCount < 1 {
			return nil, ErrNoAccelerator
		}
		modelType = model.TypeVLLM
		if _, ok := modelParams["tensor_parallel_size"]; !ok {
			modelParams["tensor_parallel_size"] = deps.AcceleratorCount
			logger.Info("defaulted tensor_parallel_size",
				"op", OptimizeQAName, "tensor_parallel_size", deps.AcceleratorCount)
		}
	}

	key := deps.Models.Prepare(model.Spec{
		Type:   modelType,
		Name:   cfg.Model,
		Params: modelParams,
	})

	return &OptimizeQA{
		systemPrompt:   cfg.SystemPrompt,
		inputTemplate:  cfg.InputTemplate,
		qaPairTemplate: cfg.QAPairTemplate,
		outputPattern:  pattern,
		queryKey:       cfg.QueryKey,
		responseKey:    cfg.ResponseKey,
		enableVLLM:     cfg.EnableVLLM,
		sampling:       cfg.SamplingParams,
		modelKey:       key,
		models:         deps.Models,
		log:            logger,
	}, nil
}

// NewOptimizeQAFromParams creates the op from recipe parameters.
func NewOptimizeQAFromParams(params op.Params, deps Deps) (*OptimizeQA, error) {
	sampling := params.Map("sampling_params")

	cfg := OptimizeQAConfig{
		Model:          params.String("model", ""),
		SystemPrompt:   params.String("system_prompt", ""),
		InputTemplate:  params.String("input_template", ""),
		QAPairTemplate: params.String("qa_pair_template", ""),
		OutputPattern:  params.String("output_pattern", ""),
		QueryKey:       params.String("query_key", ""),
		ResponseKey:    params.String("response_key", ""),
		EnableVLLM:     params.Bool("enable_vllm", false),
		ModelParams:    params.Map("model_params"),
		SamplingParams: provider.NewSamplingParams().
			WithTemperature(sampling.Float64("temperature", 0)).
			WithTopP(sampling.Float64("top_p", 0)).
			WithMaxTokens(sampling.Int("max_tokens", 0)),
	}
	return NewOptimizeQA(cfg, deps)
}

// Name implements op.Op.
func (o *OptimizeQA) Name() string { return OptimizeQAName }

// RequiresExclusiveAccelerator reports whether the batched engine is in use.
func (o *OptimizeQA) RequiresExclusiveAccelerator() bool { return o.enableVLLM }

// BuildInput formats the record's question and answer into the prompt sent
// as the user turn.
func (o *OptimizeQA) BuildInput(rec *record.Record) (string, error) {
	question, err := rec.String(o.queryKey)
	if err != nil {
		return "", err
	}
	answer, err := rec.String(o.responseKey)
	if err != nil {
		return "", err
	}

	qaPair := fmt.Sprintf(o.qaPairTemplate, question, answer)
	return fmt.Sprintf(o.inputTemplate, qaPair), nil
}

// ParseOutput recovers the optimized question and answer from the raw
// reply. A reply with no match yields two empty strings, never an error:
// malformed model output must not break the run.
func (o *OptimizeQA) ParseOutput(raw string) (string, string) {
	match := o.outputPattern.FindStringSubmatch(raw)
	if match == nil {
		return "", ""
	}
	return strings.TrimSpace(match[1]), strings.TrimSpace(match[2])
}

// ProcessSingle implements op.Mapper. Each half of the pair is written back
// independently and only when it parsed out non-empty.
func (o *OptimizeQA) ProcessSingle(ctx context.Context, rec *record.Record, rank int) error {
	handle, err := o.models.Resolve(ctx, o.modelKey, rank)
	if err != nil {
		return err
	}

	input, err := o.BuildInput(rec)
	if err != nil {
		return err
	}

	conv := provider.NewConversation(
		provider.SystemMessage(o.systemPrompt),
		provider.UserMessage(input),
	).WithParams(o.sampling)

	completion, err := o.generate(ctx, handle, conv)
	if err != nil {
		return err
	}

	raw := completion.Text()
	o.log.Debug("raw model output", "op", OptimizeQAName, "rank", rank, "output", raw)

	question, answer := o.ParseOutput(raw)
	if question != "" {
		rec.Set(o.queryKey, question)
	}
	if answer != "" {
		rec.Set(o.responseKey, answer)
	}
	return nil
}

// generate dispatches to the configured backend: a one-item batch on the
// batched engine, a plain call otherwise.
func (o *OptimizeQA) generate(ctx context.Context, handle provider.TextGenerator, conv provider.Conversation) (provider.Completion, error) {
	if o.enableVLLM {
		batcher, ok := handle.(provider.BatchTextGenerator)
		if !ok {
			return provider.Completion{}, fmt.Errorf("model handle for %s does not support batching", OptimizeQAName)
		}
		completions, err := batcher.GenerateBatch(ctx, []provider.Conversation{conv})
		if err != nil {
			return provider.Completion{}, err
		}
		return completions[0], nil
	}
	return handle.Generate(ctx, conv)
}

var (
	_ op.Mapper               = (*OptimizeQA)(nil)
	_ op.ExclusiveAccelerator = (*OptimizeQA)(nil)
)
