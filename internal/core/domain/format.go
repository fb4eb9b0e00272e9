package domain

import (
	"bytes"
	"path/filepath"
	"strings"
)

type FileFormat string

const (
	FormatPDF         FileFormat = "pdf"
	FormatText        FileFormat = "text"
	FormatHTML        FileFormat = "html"
	FormatSpreadsheet FileFormat = "xlsx"
)

var pdfMagic = []byte("%PDF-")

// DetectFormat picks the source format from content magic, then the file
// extension, then the declared MIME type.
func DetectFormat(filename, mimeType string, head []byte) (FileFormat, bool) {
	if bytes.HasPrefix(head, pdfMagic) {
		return FormatPDF, true
	}

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return FormatPDF, true
	case ".txt", ".text", ".md", ".markdown", ".csv", ".log":
		return FormatText, true
	case ".html", ".htm":
		return FormatHTML, true
	case ".xlsx":
		return FormatSpreadsheet, true
	}

	mediaType := strings.ToLower(strings.TrimSpace(strings.Split(mimeType, ";")[0]))
	switch {
	case mediaType == "application/pdf":
		return FormatPDF, true
	case mediaType == "text/html":
		return FormatHTML, true
	case mediaType == "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":
		return FormatSpreadsheet, true
	case strings.HasPrefix(mediaType, "text/"):
		return FormatText, true
	}
	return "", false
}

func (f FileFormat) MimeType() string {
	switch f {
	case FormatPDF:
		return "application/pdf"
	case FormatHTML:
		return "text/html"
	case FormatSpreadsheet:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "text/plain"
	}
}
