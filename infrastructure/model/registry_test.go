package model

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/quench-data/quench/infrastructure/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticGenerator struct{ text string }

func (g *staticGenerator) Generate(_ context.Context, _ provider.Conversation) (provider.Completion, error) {
	return provider.NewCompletion(g.text, "stop"), nil
}

func qwenSpec() Spec {
	return Spec{
		Type:   TypePipeline,
		Name:   "Qwen/Qwen2.5-7B-Instruct",
		Params: map[string]any{"max_model_len": 4096},
	}
}

func TestRegistry_ResolveConstructsOncePerRank(t *testing.T) {
	var built atomic.Int64
	r := NewRegistry()
	r.RegisterFactory(TypePipeline, func(spec Spec, rank int) (provider.TextGenerator, error) {
		built.Add(1)
		return &staticGenerator{text: spec.Name}, nil
	})

	key := r.Prepare(qwenSpec())
	ctx := context.Background()

	first, err := r.Resolve(ctx, key, 0)
	require.NoError(t, err)
	second, err := r.Resolve(ctx, key, 0)
	require.NoError(t, err)
	assert.Same(t, first, second, "same rank reuses the handle")
	assert.Equal(t, int64(1), built.Load())

	_, err = r.Resolve(ctx, key, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), built.Load(), "another rank loads its own handle")
}

func TestRegistry_SameSpecSharesKey(t *testing.T) {
	r := NewRegistry()
	k1 := r.Prepare(qwenSpec())
	k2 := r.Prepare(qwenSpec())
	assert.Equal(t, k1, k2)

	other := qwenSpec()
	other.Params["max_model_len"] = 8192
	assert.NotEqual(t, k1, r.Prepare(other))
}

func TestRegistry_ResolveUnknownKey(t *testing.T) {
	r := NewRegistry()
	_, err := r.Resolve(context.Background(), Key("nope"), 0)
	require.ErrorIs(t, err, ErrUnknownKey)
}

func TestRegistry_ResolveUnknownType(t *testing.T) {
	r := NewRegistry()
	key := r.Prepare(Spec{Type: "exotic", Name: "m"})
	_, err := r.Resolve(context.Background(), key, 0)
	require.ErrorIs(t, err, ErrUnknownType)
}

func TestRegistry_ConcurrentResolve(t *testing.T) {
	var built atomic.Int64
	r := NewRegistry()
	r.RegisterFactory(TypePipeline, func(Spec, int) (provider.TextGenerator, error) {
		built.Add(1)
		return &staticGenerator{text: "x"}, nil
	})
	key := r.Prepare(qwenSpec())

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.Resolve(context.Background(), key, 0)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(1), built.Load())
}
