package html

import (
	"bytes"
	"context"
	"strings"

	"golang.org/x/net/html"

	"github.com/didembi/documind/internal/core/domain"
)

type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

// Decode returns the visible text of an HTML document. Block elements end a
// line and headings and paragraphs end a paragraph, so the splitter sees the
// same structure a reader would.
func (e *Extractor) Decode(_ context.Context, raw []byte) (domain.ExtractedText, error) {
	doc, err := html.Parse(bytes.NewReader(raw))
	if err != nil {
		return domain.ExtractedText{}, domain.WrapError(domain.ErrIngestion, "parse html", err)
	}

	root := findElement(doc, "body")
	if root == nil {
		root = doc
	}

	w := &textWriter{}
	w.walk(root)
	return domain.ExtractedText{Kind: domain.SourceText, Text: w.String()}, nil
}

type textWriter struct {
	lines []string
	line  strings.Builder
}

func (w *textWriter) walk(n *html.Node) {
	switch n.Type {
	case html.TextNode:
		w.writeText(n.Data)
		return
	case html.ElementNode:
		switch n.Data {
		case "script", "style", "noscript", "head", "template":
			return
		case "br":
			w.endLine()
			return
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		w.walk(c)
	}

	if n.Type == html.ElementNode {
		switch n.Data {
		case "p", "h1", "h2", "h3", "h4", "h5", "h6", "blockquote", "pre", "table", "ul", "ol":
			w.endParagraph()
		case "div", "li", "tr", "section", "article", "header", "footer", "dt", "dd":
			w.endLine()
		case "td", "th":
			if w.line.Len() > 0 {
				w.line.WriteByte('\t')
			}
		}
	}
}

func (w *textWriter) writeText(s string) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return
	}
	if w.line.Len() > 0 && !strings.HasSuffix(w.line.String(), "\t") {
		w.line.WriteByte(' ')
	}
	w.line.WriteString(strings.Join(fields, " "))
}

func (w *textWriter) endLine() {
	line := strings.TrimSpace(w.line.String())
	w.line.Reset()
	if line != "" {
		w.lines = append(w.lines, line)
	}
}

func (w *textWriter) endParagraph() {
	w.endLine()
	if n := len(w.lines); n > 0 && w.lines[n-1] != "" {
		w.lines = append(w.lines, "")
	}
}

func (w *textWriter) String() string {
	w.endLine()
	return strings.TrimSpace(strings.Join(w.lines, "\n"))
}

func findElement(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, tag); found != nil {
			return found
		}
	}
	return nil
}
