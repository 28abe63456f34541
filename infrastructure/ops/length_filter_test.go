package ops

import (
	"context"
	"testing"

	"github.com/quench-data/quench/domain/op"
	"github.com/quench-data/quench/domain/record"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTextLengthFilter(t *testing.T) {
	f := NewTextLengthFilter(op.Params{"min_len": 3, "max_len": 5})

	cases := []struct {
		text string
		keep bool
	}{
		{"ab", false},
		{"abc", true},
		{"abcde", true},
		{"abcdef", false},
		{"中文字", true}, // rune count, not byte count
	}
	for _, tc := range cases {
		rec := record.FromMap(map[string]any{"text": tc.text})
		keep, err := f.Keep(context.Background(), rec, 0)
		require.NoError(t, err)
		assert.Equal(t, tc.keep, keep, "text %q", tc.text)
	}
}

func TestTextLengthFilter_UnboundedMax(t *testing.T) {
	f := NewTextLengthFilter(op.Params{"min_len": 1})
	rec := record.FromMap(map[string]any{"text": "a very long response that should survive"})
	keep, err := f.Keep(context.Background(), rec, 0)
	require.NoError(t, err)
	assert.True(t, keep)
}

func TestTextLengthFilter_MissingField(t *testing.T) {
	f := NewTextLengthFilter(op.Params{"text_key": "response"})
	rec := record.FromMap(map[string]any{"text": "x"})
	_, err := f.Keep(context.Background(), rec, 0)
	require.ErrorIs(t, err, record.ErrFieldMissing)
}

func TestRegisterAll(t *testing.T) {
	registry := op.NewRegistry()
	require.NoError(t, RegisterAll(registry, testDeps(&fakeGenerator{}, nil, 0)))
	assert.Equal(t, []string{
		OptimizeQAName,
		TextLengthFilterName,
		WhitespaceNormalizationName,
	}, registry.Names())

	built, err := registry.Build(TextLengthFilterName, op.Params{"min_len": 1})
	require.NoError(t, err)
	assert.Equal(t, TextLengthFilterName, built.Name())
}
