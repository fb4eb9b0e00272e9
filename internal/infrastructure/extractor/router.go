package extractor

import (
	"context"
	"fmt"
	"io"

	"github.com/didembi/documind/internal/core/domain"
	"github.com/didembi/documind/internal/core/ports"
	"github.com/didembi/documind/internal/infrastructure/extractor/html"
	"github.com/didembi/documind/internal/infrastructure/extractor/pdf"
	"github.com/didembi/documind/internal/infrastructure/extractor/plaintext"
	"github.com/didembi/documind/internal/infrastructure/extractor/spreadsheet"
)

// Decoder turns raw file bytes of one format into extracted text.
type Decoder interface {
	Decode(ctx context.Context, raw []byte) (domain.ExtractedText, error)
}

// Router loads a stored document and dispatches it to the decoder for its format.
type Router struct {
	storage  ports.ObjectStorage
	decoders map[domain.FileFormat]Decoder
}

func NewRouter(storage ports.ObjectStorage) *Router {
	return &Router{
		storage: storage,
		decoders: map[domain.FileFormat]Decoder{
			domain.FormatText:        plaintext.NewExtractor(),
			domain.FormatPDF:         pdf.NewExtractor(),
			domain.FormatHTML:        html.NewExtractor(),
			domain.FormatSpreadsheet: spreadsheet.NewExtractor(),
		},
	}
}

func (r *Router) Extract(ctx context.Context, doc *domain.Document) (domain.ExtractedText, error) {
	reader, err := r.storage.Open(ctx, doc.FilePath)
	if err != nil {
		return domain.ExtractedText{}, domain.WrapError(domain.ErrIngestion, "open source document", err)
	}
	defer reader.Close()

	raw, err := io.ReadAll(reader)
	if err != nil {
		return domain.ExtractedText{}, domain.WrapError(domain.ErrIngestion, "read source document", err)
	}

	format, ok := domain.DetectFormat(doc.Filename, doc.MimeType, raw)
	if !ok {
		return domain.ExtractedText{}, domain.WrapError(domain.ErrIngestion, "detect format", fmt.Errorf("unsupported file %q", doc.Filename))
	}
	decoder, ok := r.decoders[format]
	if !ok {
		return domain.ExtractedText{}, domain.WrapError(domain.ErrIngestion, "detect format", fmt.Errorf("no decoder for %s", format))
	}
	return decoder.Decode(ctx, raw)
}
