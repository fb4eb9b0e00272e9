package ports

import (
	"context"
	"io"

	"github.com/didembi/documind/internal/core/domain"
)

// DocumentIngestor is the inbound contract for document upload orchestration.
type DocumentIngestor interface {
	Upload(ctx context.Context, req domain.UploadRequest, body io.Reader) (*domain.Document, error)
}

// DocumentProcessor is the inbound contract for asynchronous document processing.
type DocumentProcessor interface {
	ProcessByID(ctx context.Context, documentID string) error
}

// DocumentQueryService answers questions over a user's ready documents.
type DocumentQueryService interface {
	Answer(ctx context.Context, req domain.QueryRequest) (*domain.Answer, error)
}

// DocumentSummarizer produces or returns cached document summaries.
type DocumentSummarizer interface {
	Summarize(ctx context.Context, userID, documentID string, mode domain.SummaryMode, force bool) (*domain.SummaryResult, error)
}

// DocumentCatalog is the owner-scoped read and delete model for documents.
type DocumentCatalog interface {
	List(ctx context.Context, userID string) ([]domain.Document, error)
	Get(ctx context.Context, userID, documentID string) (*domain.Document, error)
	Delete(ctx context.Context, userID, documentID string) error
	Chunks(ctx context.Context, userID, documentID string) ([]domain.Chunk, error)
	KeywordSearch(ctx context.Context, userID, documentID, query string, limit int) ([]domain.Chunk, error)
	RecentQueries(ctx context.Context, userID string, limit int) ([]domain.QueryLogEntry, error)
}
