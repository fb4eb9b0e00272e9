package ports

import (
	"context"
	"io"

	"github.com/didembi/documind/internal/core/domain"
)

// DocumentRepository persists document metadata and lifecycle state.
type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Document, error)
	UpdateStatus(ctx context.Context, id string, from, to domain.DocumentStatus, errMessage string) error
	SaveSummary(ctx context.Context, id string, update domain.SummaryUpdate) error
	Delete(ctx context.Context, id string) error
}

// ChunkStore persists embedded chunks and runs similarity and keyword lookups.
type ChunkStore interface {
	InsertChunk(ctx context.Context, chunk domain.Chunk) error
	// MatchChunks is the server-side similarity search.
	MatchChunks(ctx context.Context, req domain.MatchRequest) ([]domain.ScoredChunk, error)
	// ListChunks returns every chunk of the given documents ordered by document and ordinal.
	ListChunks(ctx context.Context, documentIDs []string, withEmbeddings bool) ([]domain.Chunk, error)
	// KeywordMatch is the server-side keyword routine.
	KeywordMatch(ctx context.Context, documentID, query string, limit int) ([]domain.Chunk, error)
	// FilterChunksContaining is a direct case-insensitive contains filter.
	FilterChunksContaining(ctx context.Context, documentID, query string, limit int) ([]domain.Chunk, error)
	DeleteDocumentChunks(ctx context.Context, documentID string) error
}

// QueryLog stores the audit trail of answered questions.
type QueryLog interface {
	Record(ctx context.Context, entry domain.QueryLogEntry) error
	ListByUser(ctx context.Context, userID string, limit int) ([]domain.QueryLogEntry, error)
}

// ObjectStorage stores source documents.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) (int64, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// MessageQueue publishes/consumes ingestion jobs.
type MessageQueue interface {
	PublishIngestJob(ctx context.Context, job domain.IngestJob) error
	SubscribeIngestJobs(ctx context.Context, handler func(context.Context, domain.IngestJob) error) error
}

// TextExtractor extracts text from a stored document.
type TextExtractor interface {
	Extract(ctx context.Context, doc *domain.Document) (domain.ExtractedText, error)
}

// Embedder maps text to fixed-dimension vectors. Blank text maps to an empty vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

// Chunker splits extracted text into positionally tagged chunks with ordinals from 0.
type Chunker interface {
	Chunk(src domain.ExtractedText) []domain.Chunk
}

// AnswerGenerator produces grounded answers and summaries.
type AnswerGenerator interface {
	GenerateAnswer(ctx context.Context, question, contextText string) (string, error)
	Summarize(ctx context.Context, content string, mode domain.SummaryMode, documentName string) (string, error)
}

// HealthChecker reports whether a dependency is reachable.
type HealthChecker interface {
	Ping(ctx context.Context) error
}
