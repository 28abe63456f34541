// Package ops implements the built-in dataset refinement operators.
package ops

import (
	"log/slog"

	"github.com/quench-data/quench/domain/op"
	"github.com/quench-data/quench/infrastructure/model"
)

// Deps are the collaborators shared by all built-in ops.
type Deps struct {
	// Models resolves lazy per-worker model handles.
	Models *model.Registry

	// AcceleratorCount is the number of accelerator cards available to
	// the batched engine.
	AcceleratorCount int

	// Logger receives op-level traces.
	Logger *slog.Logger
}

// RegisterAll registers every built-in op with the registry.
func RegisterAll(registry *op.Registry, deps Deps) error {
	factories := map[string]op.Factory{
		OptimizeQAName: func(params op.Params) (op.Op, error) {
			return NewOptimizeQAFromParams(params, deps)
		},
		WhitespaceNormalizationName: func(params op.Params) (op.Op, error) {
			return NewWhitespaceNormalization(params), nil
		},
		TextLengthFilterName: func(params op.Params) (op.Op, error) {
			return NewTextLengthFilter(params), nil
		},
	}

	for name, factory := range factories {
		if err := registry.Register(name, factory); err != nil {
			return err
		}
	}
	return nil
}
