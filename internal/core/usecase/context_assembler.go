package usecase

import (
	"strings"
	"unicode/utf8"

	"github.com/didembi/documind/internal/core/domain"
)

const (
	contextSeparator = "\n\n"
	truncatedMarker  = "\n[...truncated...]"
)

// AssembledContext is the text handed to the generator together with the
// chunks it was built from.
type AssembledContext struct {
	Text      string
	Included  []domain.ScoredChunk
	Truncated bool
}

// AssembleContext joins chunk blocks in order until the next block would
// push the rune count past budget. A first block that alone exceeds the
// budget is cut down and marked, so retrievable content never yields an
// empty context.
func AssembleContext(chunks []domain.ScoredChunk, budget int, annotate bool) AssembledContext {
	var out AssembledContext
	if budget <= 0 || len(chunks) == 0 {
		return out
	}

	var b strings.Builder
	used := 0
	for i, chunk := range chunks {
		block := contextBlock(chunk.Chunk, annotate)
		cost := utf8.RuneCountInString(block)
		if i > 0 {
			cost += utf8.RuneCountInString(contextSeparator)
		}

		if used+cost > budget {
			if i == 0 {
				b.WriteString(truncateRunes(block, budget))
				out.Included = append(out.Included, chunk)
			}
			out.Truncated = true
			break
		}

		if i > 0 {
			b.WriteString(contextSeparator)
		}
		b.WriteString(block)
		used += cost
		out.Included = append(out.Included, chunk)
	}
	out.Text = b.String()
	return out
}

func contextBlock(chunk domain.Chunk, annotate bool) string {
	if !annotate {
		return chunk.Text
	}
	return "[" + chunk.LocationLabel() + "]\n" + chunk.Text
}

// truncateRunes shortens s so that s plus the marker fits in budget runes.
func truncateRunes(s string, budget int) string {
	markerLen := utf8.RuneCountInString(truncatedMarker)
	if budget <= markerLen {
		return string([]rune(s)[:budget])
	}
	runes := []rune(s)
	return string(runes[:budget-markerLen]) + truncatedMarker
}
