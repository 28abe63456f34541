// Package model manages lazy, shared text-generation model handles. Ops
// declare the model they need with Prepare and obtain a worker-local live
// handle with Resolve; construction happens at most once per (model, worker).
package model

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/quench-data/quench/infrastructure/provider"
)

// Backend kinds.
const (
	TypeVLLM     = "vllm"
	TypePipeline = "pipeline"
)

// Common errors.
var (
	// ErrUnknownKey indicates Resolve was called with a key that was
	// never prepared.
	ErrUnknownKey = errors.New("unknown model key")

	// ErrUnknownType indicates the spec names a backend with no factory.
	ErrUnknownType = errors.New("unknown model type")
)

// Spec describes a model to load: backend kind, model name, and opaque
// initialization parameters forwarded to the factory.
type Spec struct {
	Type   string
	Name   string
	Params map[string]any
}

// Key identifies a prepared model spec. Derived from the spec contents, so
// identical configurations share handles.
type Key string

// Factory constructs a live handle for a spec. Called once per
// (spec, worker rank).
type Factory func(spec Spec, rank int) (provider.TextGenerator, error)

// Registry caches live model handles per (key, worker rank).
type Registry struct {
	mu        sync.Mutex
	factories map[string]Factory
	specs     map[Key]Spec
	handles   map[handleID]provider.TextGenerator
}

type handleID struct {
	key  Key
	rank int
}

// NewRegistry creates a Registry with no factories.
func NewRegistry() *Registry {
	return &Registry{
		factories: map[string]Factory{},
		specs:     map[Key]Spec{},
		handles:   map[handleID]provider.TextGenerator{},
	}
}

// RegisterFactory installs the factory for a backend kind.
func (r *Registry) RegisterFactory(modelType string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[modelType] = factory
}

// Prepare records the spec and returns its key. No model is loaded yet.
func (r *Registry) Prepare(spec Spec) Key {
	key := specKey(spec)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.specs[key] = spec
	return key
}

// Resolve returns the live handle for the key and worker rank, constructing
// and caching it on first use.
func (r *Registry) Resolve(ctx context.Context, key Key, rank int) (provider.TextGenerator, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	id := handleID{key: key, rank: rank}
	if handle, ok := r.handles[id]; ok {
		return handle, nil
	}

	spec, ok := r.specs[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	factory, ok := r.factories[spec.Type]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, spec.Type)
	}

	handle, err := factory(spec, rank)
	if err != nil {
		return nil, fmt.Errorf("load model %s (rank %d): %w", spec.Name, rank, err)
	}
	r.handles[id] = handle
	return handle, nil
}

// specKey derives a stable key from the spec contents.
func specKey(spec Spec) Key {
	h := sha256.New()
	fmt.Fprintf(h, "%s\n%s\n", spec.Type, spec.Name)

	params := make([]string, 0, len(spec.Params))
	for k := range spec.Params {
		params = append(params, k)
	}
	sort.Strings(params)
	for _, k := range params {
		fmt.Fprintf(h, "%s=%v\n", k, spec.Params[k])
	}

	return Key(hex.EncodeToString(h.Sum(nil))[:16])
}
