package spreadsheet

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/didembi/documind/internal/core/domain"
)

type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

// Decode renders each sheet as a "# Sheet: name" header followed by one
// tab-separated line per non-empty row. Sheets are separated by a blank line.
func (e *Extractor) Decode(ctx context.Context, raw []byte) (domain.ExtractedText, error) {
	book, err := excelize.OpenReader(bytes.NewReader(raw))
	if err != nil {
		return domain.ExtractedText{}, domain.WrapError(domain.ErrIngestion, "open spreadsheet", err)
	}
	defer func() {
		_ = book.Close()
	}()

	var sections []string
	for _, sheet := range book.GetSheetList() {
		if err := ctx.Err(); err != nil {
			return domain.ExtractedText{}, err
		}
		rows, err := book.GetRows(sheet)
		if err != nil {
			return domain.ExtractedText{}, domain.WrapError(domain.ErrIngestion, "read spreadsheet rows", fmt.Errorf("sheet %q: %w", sheet, err))
		}

		lines := make([]string, 0, len(rows)+1)
		lines = append(lines, "# Sheet: "+sheet)
		for _, row := range rows {
			line := strings.TrimSpace(strings.Join(row, "\t"))
			if line != "" {
				lines = append(lines, line)
			}
		}
		if len(lines) > 1 {
			sections = append(sections, strings.Join(lines, "\n"))
		}
	}

	return domain.ExtractedText{Kind: domain.SourceText, Text: strings.Join(sections, "\n\n")}, nil
}
