package ops

import (
	"context"
	"strings"

	"github.com/quench-data/quench/domain/op"
	"github.com/quench-data/quench/domain/record"
)

// WhitespaceNormalizationName is the registry name of the whitespace mapper.
const WhitespaceNormalizationName = "whitespace_normalization_mapper"

// DefaultTextKey is the record field text ops work on when unconfigured.
const DefaultTextKey = "text"

// exoticWhitespace maps the unicode space characters models and scraped
// corpora produce onto a plain space. Zero-width characters are removed.
// Escapes keep the table readable and lexer-safe (a literal U+FEFF is only
// valid at the start of a file).
var exoticWhitespace = strings.NewReplacer(
	"\u00A0", " ", // no-break space
	"\u1680", " ", // ogham space mark
	"\u2000", " ", // en quad
	"\u2001", " ", // em quad
	"\u2002", " ", // en space
	"\u2003", " ", // em space
	"\u2004", " ", // three-per-em space
	"\u2005", " ", // four-per-em space
	"\u2006", " ", // six-per-em space
	"\u2007", " ", // figure space
	"\u2008", " ", // punctuation space
	"\u2009", " ", // thin space
	"\u200A", " ", // hair space
	"\u202F", " ", // narrow no-break space
	"\u205F", " ", // medium mathematical space
	"\u3000", " ", // ideographic space
	"\u200B", "", // zero-width space
	"\uFEFF", "", // byte order mark
)

// WhitespaceNormalization rewrites exotic unicode whitespace in one text
// field to plain spaces and trims the result.
type WhitespaceNormalization struct {
	textKey string
}

// NewWhitespaceNormalization creates the mapper from recipe parameters.
func NewWhitespaceNormalization(params op.Params) *WhitespaceNormalization {
	return &WhitespaceNormalization{
		textKey: params.String("text_key", DefaultTextKey),
	}
}

// Name implements op.Op.
func (w *WhitespaceNormalization) Name() string { return WhitespaceNormalizationName }

// ProcessSingle implements op.Mapper.
func (w *WhitespaceNormalization) ProcessSingle(_ context.Context, rec *record.Record, _ int) error {
	text, err := rec.String(w.textKey)
	if err != nil {
		return err
	}
	rec.Set(w.textKey, strings.TrimSpace(exoticWhitespace.Replace(text)))
	return nil
}

var _ op.Mapper = (*WhitespaceNormalization)(nil)
