package plaintext

import (
	"bytes"
	"context"
	"strings"
	"unicode/utf8"

	"github.com/didembi/documind/internal/core/domain"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

// Decode never fails: invalid UTF-8 sequences are dropped and CRLF line
// endings are normalized so line ranges count the same way on every platform.
func (e *Extractor) Decode(_ context.Context, raw []byte) (domain.ExtractedText, error) {
	raw = bytes.TrimPrefix(raw, utf8BOM)
	text := string(raw)
	if !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, "")
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return domain.ExtractedText{Kind: domain.SourceText, Text: text}, nil
}
