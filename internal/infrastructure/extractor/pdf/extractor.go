package pdf

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	pdflib "github.com/ledongthuc/pdf"

	"github.com/didembi/documind/internal/core/domain"
)

type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

// Decode extracts text page by page. Page numbers are 1-based. Pages whose
// text cannot be decoded are skipped; an unreadable file is an ingestion error.
func (e *Extractor) Decode(ctx context.Context, raw []byte) (out domain.ExtractedText, err error) {
	// The parser panics on some malformed cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			out = domain.ExtractedText{}
			err = domain.WrapError(domain.ErrIngestion, "parse pdf", fmt.Errorf("malformed pdf: %v", r))
		}
	}()

	reader, err := pdflib.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return domain.ExtractedText{}, domain.WrapError(domain.ErrIngestion, "parse pdf", err)
	}

	numPages := reader.NumPage()
	pages := make([]domain.PageText, 0, numPages)
	for i := 1; i <= numPages; i++ {
		if err := ctx.Err(); err != nil {
			return domain.ExtractedText{}, err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		text = strings.TrimSpace(strings.ToValidUTF8(text, ""))
		if text == "" {
			continue
		}
		pages = append(pages, domain.PageText{Number: i, Text: text})
	}

	return domain.ExtractedText{Kind: domain.SourcePDF, Pages: pages}, nil
}
