package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/didembi/documind/internal/core/domain"
	"github.com/didembi/documind/internal/core/ports"
)

const (
	DefaultSimilarityThreshold = 0.3
	defaultKeywordLimit        = 10
)

// FallbackRecorder counts index operations answered by the fallback path.
type FallbackRecorder interface {
	RecordIndexFallback(operation string)
}

type IndexStoreOptions struct {
	SimilarityThreshold float64
	// FallbackEnforceThreshold applies the similarity threshold to the
	// in-process fallback ranking too. Off by default.
	FallbackEnforceThreshold bool
	Recorder                 FallbackRecorder
}

// IndexStore is the single entry point for document metadata and chunk
// persistence. Server-side search routines are preferred; when they fail
// the store answers from a direct read instead.
type IndexStore struct {
	repo    ports.DocumentRepository
	chunks  ports.ChunkStore
	options IndexStoreOptions
}

func NewIndexStore(repo ports.DocumentRepository, chunks ports.ChunkStore, options IndexStoreOptions) *IndexStore {
	if options.SimilarityThreshold <= 0 {
		options.SimilarityThreshold = DefaultSimilarityThreshold
	}
	return &IndexStore{repo: repo, chunks: chunks, options: options}
}

func (s *IndexStore) CreateDocument(ctx context.Context, doc *domain.Document) error {
	if err := s.repo.Create(ctx, doc); err != nil {
		return fmt.Errorf("create document metadata: %w", err)
	}
	return nil
}

func (s *IndexStore) GetDocument(ctx context.Context, documentID string) (*domain.Document, error) {
	return s.repo.GetByID(ctx, documentID)
}

func (s *IndexStore) ListDocuments(ctx context.Context, userID string) ([]domain.Document, error) {
	return s.repo.ListByUser(ctx, userID)
}

func (s *IndexStore) UpdateStatus(ctx context.Context, documentID string, from, to domain.DocumentStatus, errMessage string) error {
	return s.repo.UpdateStatus(ctx, documentID, from, to, errMessage)
}

func (s *IndexStore) SaveSummary(ctx context.Context, documentID string, update domain.SummaryUpdate) error {
	return s.repo.SaveSummary(ctx, documentID, update)
}

// DeleteDocument removes the chunks first so stores without a cascading
// foreign key do not keep orphans, then the document row.
func (s *IndexStore) DeleteDocument(ctx context.Context, documentID string) error {
	if err := s.chunks.DeleteDocumentChunks(ctx, documentID); err != nil {
		return fmt.Errorf("delete document chunks: %w", err)
	}
	if err := s.repo.Delete(ctx, documentID); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}

// Store persists one embedded chunk under a fresh id.
func (s *IndexStore) Store(ctx context.Context, documentID string, chunk domain.Chunk) (string, error) {
	chunk.ID = uuid.NewString()
	chunk.DocumentID = documentID
	if err := s.chunks.InsertChunk(ctx, chunk); err != nil {
		return "", fmt.Errorf("store chunk %d: %w", chunk.Index, err)
	}
	return chunk.ID, nil
}

func (s *IndexStore) DeleteDocumentChunks(ctx context.Context, documentID string) error {
	return s.chunks.DeleteDocumentChunks(ctx, documentID)
}

// GetDocumentChunks returns every chunk of the document in ordinal order.
func (s *IndexStore) GetDocumentChunks(ctx context.Context, documentID string) ([]domain.Chunk, error) {
	chunks, err := s.chunks.ListChunks(ctx, []string{documentID}, false)
	if err != nil {
		return nil, fmt.Errorf("list document chunks: %w", err)
	}
	return chunks, nil
}

func (s *IndexStore) VectorSearch(ctx context.Context, queryVector []float32, documentIDs []string, limit int) ([]domain.ScoredChunk, error) {
	if len(documentIDs) == 0 || len(queryVector) == 0 {
		return []domain.ScoredChunk{}, nil
	}

	matches, err := s.chunks.MatchChunks(ctx, domain.MatchRequest{
		QueryVector: queryVector,
		Threshold:   s.options.SimilarityThreshold,
		Count:       limit,
		DocumentIDs: documentIDs,
	})
	if err == nil {
		return matches, nil
	}
	if isContextError(ctx, err) {
		return nil, err
	}

	slog.Warn("index_fallback", "operation", "vector_search", "documents", len(documentIDs), "error", err)
	s.recordFallback("vector_search")

	chunks, listErr := s.chunks.ListChunks(ctx, documentIDs, true)
	if listErr != nil {
		return nil, fmt.Errorf("vector search fallback: %w", errors.Join(err, listErr))
	}
	var threshold *float64
	if s.options.FallbackEnforceThreshold {
		threshold = &s.options.SimilarityThreshold
	}
	return rankBySimilarity(queryVector, chunks, limit, threshold), nil
}

func (s *IndexStore) KeywordSearch(ctx context.Context, documentID, query string, limit int) ([]domain.Chunk, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "keyword search", errors.New("query is required"))
	}
	if limit <= 0 {
		limit = defaultKeywordLimit
	}

	chunks, err := s.chunks.KeywordMatch(ctx, documentID, query, limit)
	if err == nil {
		return chunks, nil
	}
	if isContextError(ctx, err) {
		return nil, err
	}

	slog.Warn("index_fallback", "operation", "keyword_search", "document_id", documentID, "error", err)
	s.recordFallback("keyword_search")

	chunks, filterErr := s.chunks.FilterChunksContaining(ctx, documentID, query, limit)
	if filterErr != nil {
		return nil, fmt.Errorf("keyword search fallback: %w", errors.Join(err, filterErr))
	}
	return chunks, nil
}

func (s *IndexStore) recordFallback(operation string) {
	if s.options.Recorder != nil {
		s.options.Recorder.RecordIndexFallback(operation)
	}
}

func isContextError(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
