// Package op defines the operator contracts for dataset refinement: named ops
// that transform or filter records, a parameter container for recipe-supplied
// arguments, and a registry mapping op names to factories.
package op

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/quench-data/quench/domain/record"
)

// Common errors.
var (
	// ErrUnknownOp indicates the requested op name is not registered.
	ErrUnknownOp = errors.New("unknown op")

	// ErrDuplicateOp indicates an op name was registered twice.
	ErrDuplicateOp = errors.New("op already registered")
)

// Op is a named pipeline operator.
type Op interface {
	// Name returns the registry name of the op.
	Name() string
}

// Mapper transforms a single record in place. rank identifies the worker
// running the record and selects that worker's model handle where one is used.
type Mapper interface {
	Op

	// ProcessSingle mutates the record in place.
	ProcessSingle(ctx context.Context, rec *record.Record, rank int) error
}

// Filter decides whether a record stays in the dataset.
type Filter interface {
	Op

	// Keep reports whether the record passes the filter.
	Keep(ctx context.Context, rec *record.Record, rank int) (bool, error)
}

// ExclusiveAccelerator is implemented by ops whose model backend claims a
// whole accelerator card. The executor runs such ops with a single worker.
type ExclusiveAccelerator interface {
	RequiresExclusiveAccelerator() bool
}

// Factory constructs an op from recipe parameters.
type Factory func(params Params) (Op, error)

// Registry maps op names to factories.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{factories: map[string]Factory{}}
}

// Register adds a factory under the given name.
func (r *Registry) Register(name string, factory Factory) error {
	if _, ok := r.factories[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateOp, name)
	}
	r.factories[name] = factory
	return nil
}

// Build constructs the named op with the given parameters.
func (r *Registry) Build(name string, params Params) (Op, error) {
	factory, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownOp, name)
	}
	built, err := factory(params)
	if err != nil {
		return nil, fmt.Errorf("build op %s: %w", name, err)
	}
	return built, nil
}

// Names returns the registered op names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
