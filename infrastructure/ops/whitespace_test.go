package ops

import (
	"context"
	"testing"

	"github.com/quench-data/quench/domain/op"
	"github.com/quench-data/quench/domain/record"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWhitespaceNormalization(t *testing.T) {
	w := NewWhitespaceNormalization(op.Params{})

	rec := record.FromMap(map[string]any{"text": "\u00A0hello\u3000world\u200B "})
	require.NoError(t, w.ProcessSingle(context.Background(), rec, 0))

	text, err := rec.String("text")
	require.NoError(t, err)
	assert.Equal(t, "hello world", text)
}

func TestWhitespaceNormalization_ZeroWidthCharactersRemoved(t *testing.T) {
	w := NewWhitespaceNormalization(op.Params{})

	rec := record.FromMap(map[string]any{"text": "\uFEFFhe\u200Bllo\u202Fworld"})
	require.NoError(t, w.ProcessSingle(context.Background(), rec, 0))

	text, err := rec.String("text")
	require.NoError(t, err)
	assert.Equal(t, "hello world", text, "BOM and zero-width space vanish, narrow no-break space becomes a space")
}

func TestWhitespaceNormalization_CustomKey(t *testing.T) {
	w := NewWhitespaceNormalization(op.Params{"text_key": "response"})

	rec := record.FromMap(map[string]any{"response": "  plain  "})
	require.NoError(t, w.ProcessSingle(context.Background(), rec, 0))

	text, err := rec.String("response")
	require.NoError(t, err)
	assert.Equal(t, "plain", text)
}

func TestWhitespaceNormalization_MissingField(t *testing.T) {
	w := NewWhitespaceNormalization(op.Params{})
	rec := record.FromMap(map[string]any{"other": "x"})
	require.ErrorIs(t, w.ProcessSingle(context.Background(), rec, 0), record.ErrFieldMissing)
}
