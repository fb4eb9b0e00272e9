package domain

import (
	"fmt"
	"time"
)

type DocumentStatus string

const (
	StatusProcessing DocumentStatus = "processing"
	StatusReady      DocumentStatus = "ready"
	StatusFailed     DocumentStatus = "failed"
)

// Document is an uploaded source file and its indexing state.
// Empty summary strings mean the summary was never generated.
type Document struct {
	ID           string         `json:"id"`
	UserID       string         `json:"user_id"`
	NotebookID   string         `json:"notebook_id,omitempty"`
	Filename     string         `json:"filename"`
	MimeType     string         `json:"mime_type"`
	FileSize     int64          `json:"file_size"`
	FilePath     string         `json:"file_path"`
	Status       DocumentStatus `json:"status"`
	ShortSummary string         `json:"short_summary,omitempty"`
	LongSummary  string         `json:"long_summary,omitempty"`
	Error        string         `json:"error,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// CanTransition reports whether a document may move from one status to another.
// Only processing documents move, and only to a terminal state.
func CanTransition(from, to DocumentStatus) bool {
	if from != StatusProcessing {
		return false
	}
	return to == StatusReady || to == StatusFailed
}

// CachedSummary returns the stored summary for mode, if any.
func (d *Document) CachedSummary(mode SummaryMode) (string, bool) {
	switch mode {
	case SummaryShort:
		return d.ShortSummary, d.ShortSummary != ""
	case SummaryLong:
		return d.LongSummary, d.LongSummary != ""
	default:
		return "", false
	}
}

type SummaryMode string

const (
	SummaryShort SummaryMode = "short"
	SummaryLong  SummaryMode = "long"
)

func ParseSummaryMode(raw string) (SummaryMode, error) {
	switch SummaryMode(raw) {
	case SummaryShort, "":
		return SummaryShort, nil
	case SummaryLong:
		return SummaryLong, nil
	default:
		return "", WrapError(ErrInvalidInput, "parse summary mode", fmt.Errorf("unknown mode %q", raw))
	}
}

// SummaryUpdate is a partial write: nil fields are left untouched.
type SummaryUpdate struct {
	Short *string
	Long  *string
}

func SummaryUpdateFor(mode SummaryMode, text string) SummaryUpdate {
	if mode == SummaryLong {
		return SummaryUpdate{Long: &text}
	}
	return SummaryUpdate{Short: &text}
}

func (u SummaryUpdate) Empty() bool {
	return u.Short == nil && u.Long == nil
}

// SummaryResult separates the generated text from the outcome of the
// best-effort cache write.
type SummaryResult struct {
	DocumentID string      `json:"document_id"`
	Mode       SummaryMode `json:"mode"`
	Text       string      `json:"summary"`
	Cached     bool        `json:"cached"`
	CacheErr   error       `json:"-"`
}

// UploadRequest carries an incoming file.
type UploadRequest struct {
	UserID     string
	NotebookID string
	Filename   string
	MimeType   string
}

// IngestJob is the message handed from the API to the worker.
type IngestJob struct {
	DocumentID string    `json:"document_id"`
	UserID     string    `json:"user_id"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}
