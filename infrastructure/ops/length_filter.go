package ops

import (
	"context"
	"unicode/utf8"

	"github.com/quench-data/quench/domain/op"
	"github.com/quench-data/quench/domain/record"
)

// TextLengthFilterName is the registry name of the length filter.
const TextLengthFilterName = "text_length_filter"

// TextLengthFilter keeps records whose text field length (in runes) lies in
// [minLen, maxLen]. maxLen of zero means unbounded.
type TextLengthFilter struct {
	textKey string
	minLen  int
	maxLen  int
}

// NewTextLengthFilter creates the filter from recipe parameters.
func NewTextLengthFilter(params op.Params) *TextLengthFilter {
	return &TextLengthFilter{
		textKey: params.String("text_key", DefaultTextKey),
		minLen:  params.Int("min_len", 0),
		maxLen:  params.Int("max_len", 0),
	}
}

// Name implements op.Op.
func (f *TextLengthFilter) Name() string { return TextLengthFilterName }

// Keep implements op.Filter.
func (f *TextLengthFilter) Keep(_ context.Context, rec *record.Record, _ int) (bool, error) {
	text, err := rec.String(f.textKey)
	if err != nil {
		return false, err
	}
	n := utf8.RuneCountInString(text)
	if n < f.minLen {
		return false, nil
	}
	if f.maxLen > 0 && n > f.maxLen {
		return false, nil
	}
	return true, nil
}

var _ op.Filter = (*TextLengthFilter)(nil)
