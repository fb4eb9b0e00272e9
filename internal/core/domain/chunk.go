package domain

import "fmt"

// Chunk is a contiguous slice of a document's text, positionally tagged.
// Exactly one location scheme applies: a page (PageNumber > 0), a line
// range (LineStart and LineEnd set), or neither.
type Chunk struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"document_id"`
	Index      int       `json:"chunk_index"`
	Text       string    `json:"chunk_text"`
	Embedding  []float32 `json:"-"`
	PageNumber int       `json:"page_number,omitempty"`
	LineStart  *int      `json:"line_start,omitempty"`
	LineEnd    *int      `json:"line_end,omitempty"`
}

func (c Chunk) HasPage() bool {
	return c.PageNumber > 0
}

func (c Chunk) HasLines() bool {
	return c.LineStart != nil && c.LineEnd != nil
}

// LocationLabel renders the chunk position for prompts and citations.
// Line numbers are stored 0-based and displayed 1-based.
func (c Chunk) LocationLabel() string {
	switch {
	case c.HasPage():
		return fmt.Sprintf("Page %d", c.PageNumber)
	case c.HasLines():
		return fmt.Sprintf("Lines %d-%d", *c.LineStart+1, *c.LineEnd+1)
	default:
		return fmt.Sprintf("Section %d", c.Index+1)
	}
}

type SourceKind string

const (
	SourceText SourceKind = "text"
	SourcePDF  SourceKind = "pdf"
)

type PageText struct {
	Number int
	Text   string
}

// ExtractedText is the content pulled out of a stored document.
// PDF content is carried page by page in Pages; text content in Text.
type ExtractedText struct {
	Kind  SourceKind
	Text  string
	Pages []PageText
}

func (e ExtractedText) Empty() bool {
	if e.Kind == SourcePDF {
		for _, p := range e.Pages {
			if p.Text != "" {
				return false
			}
		}
		return true
	}
	return e.Text == ""
}

func IntPtr(v int) *int {
	return &v
}
