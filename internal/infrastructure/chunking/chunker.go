package chunking

import (
	"strings"

	"github.com/didembi/documind/internal/core/domain"
)

// Chunker turns extracted document text into ordered, positionally tagged chunks.
type Chunker struct {
	splitter *Splitter
}

func NewChunker(splitter *Splitter) *Chunker {
	if splitter == nil {
		splitter = NewSplitter(DefaultChunkSize, DefaultChunkOverlap)
	}
	return &Chunker{splitter: splitter}
}

// Chunk splits PDF sources page by page and tags every chunk with its page.
// Text sources get a line range instead. Ordinals start at 0 and are
// contiguous across pages.
func (c *Chunker) Chunk(src domain.ExtractedText) []domain.Chunk {
	if src.Kind == domain.SourcePDF {
		return c.chunkPages(src.Pages)
	}
	return c.chunkText(src.Text)
}

func (c *Chunker) chunkPages(pages []domain.PageText) []domain.Chunk {
	var out []domain.Chunk
	for _, page := range pages {
		text := strings.ToValidUTF8(page.Text, "")
		for _, piece := range c.splitter.Split(text) {
			out = append(out, domain.Chunk{
				Index:      len(out),
				Text:       piece,
				PageNumber: page.Number,
			})
		}
	}
	return out
}

func (c *Chunker) chunkText(raw string) []domain.Chunk {
	text := strings.ToValidUTF8(raw, "")
	pieces := c.splitter.Split(text)
	if len(pieces) == 0 {
		return nil
	}

	locator := &lineLocator{text: text}
	out := make([]domain.Chunk, 0, len(pieces))
	for i, piece := range pieces {
		start, end := locator.locate(piece)
		out = append(out, domain.Chunk{
			Index:     i,
			Text:      piece,
			LineStart: domain.IntPtr(start),
			LineEnd:   domain.IntPtr(end),
		})
	}
	return out
}

// lineLocator finds chunks in the source text and reports 0-based line
// ranges. The search resumes at the previous chunk's offset so repeated
// passages resolve to the right occurrence; it falls back to the first
// occurrence in the whole text.
type lineLocator struct {
	text   string
	offset int
	line   int
}

func (l *lineLocator) locate(chunk string) (int, int) {
	at := -1
	if idx := strings.Index(l.text[l.offset:], chunk); idx >= 0 {
		at = l.offset + idx
	} else if idx := strings.Index(l.text, chunk); idx >= 0 {
		at = idx
		l.offset, l.line = 0, 0
	}
	if at < 0 {
		start := l.line
		return start, start + strings.Count(chunk, "\n")
	}

	l.line += strings.Count(l.text[l.offset:at], "\n")
	l.offset = at
	start := l.line
	return start, start + strings.Count(chunk, "\n")
}
