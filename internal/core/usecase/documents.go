package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/didembi/documind/internal/core/domain"
	"github.com/didembi/documind/internal/core/ports"
)

const defaultRecentQueries = 20

// DocumentService is the owner-scoped catalog over the index store.
type DocumentService struct {
	store    *IndexStore
	storage  ports.ObjectStorage
	queryLog ports.QueryLog
}

func NewDocumentService(store *IndexStore, storage ports.ObjectStorage, queryLog ports.QueryLog) *DocumentService {
	return &DocumentService{store: store, storage: storage, queryLog: queryLog}
}

func (s *DocumentService) List(ctx context.Context, userID string) ([]domain.Document, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	docs, err := s.store.ListDocuments(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return docs, nil
}

func (s *DocumentService) Get(ctx context.Context, userID, documentID string) (*domain.Document, error) {
	return ownedDocument(ctx, s.store, userID, documentID)
}

// Delete removes chunks, metadata and the stored file. The file is
// removed last and best-effort.
func (s *DocumentService) Delete(ctx context.Context, userID, documentID string) error {
	doc, err := ownedDocument(ctx, s.store, userID, documentID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteDocument(ctx, doc.ID); err != nil {
		return err
	}
	if s.storage != nil && doc.FilePath != "" {
		if err := s.storage.Delete(ctx, doc.FilePath); err != nil {
			slog.Warn("document_file_delete_failed", "document_id", doc.ID, "path", doc.FilePath, "error", err)
		}
	}
	return nil
}

// Chunks and KeywordSearch only serve ready documents. A processing or
// failed document may hold partial chunks.
func (s *DocumentService) Chunks(ctx context.Context, userID, documentID string) ([]domain.Chunk, error) {
	doc, err := readyDocument(ctx, s.store, userID, documentID)
	if err != nil {
		return nil, err
	}
	return s.store.GetDocumentChunks(ctx, doc.ID)
}

func (s *DocumentService) KeywordSearch(ctx context.Context, userID, documentID, query string, limit int) ([]domain.Chunk, error) {
	doc, err := readyDocument(ctx, s.store, userID, documentID)
	if err != nil {
		return nil, err
	}
	if limit > MaxSearchLimit {
		limit = MaxSearchLimit
	}
	return s.store.KeywordSearch(ctx, doc.ID, query, limit)
}

func (s *DocumentService) RecentQueries(ctx context.Context, userID string, limit int) ([]domain.QueryLogEntry, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultRecentQueries
	}
	if limit > MaxSearchLimit {
		limit = MaxSearchLimit
	}
	entries, err := s.queryLog.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list queries: %w", err)
	}
	return entries, nil
}

func requireUser(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return domain.WrapError(domain.ErrUnauthorized, "check user", errors.New("user id is required"))
	}
	return nil
}

// ownedDocument loads a document and checks it belongs to userID.
func ownedDocument(ctx context.Context, store *IndexStore, userID, documentID string) (*domain.Document, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(documentID) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "get document", errors.New("document id is required"))
	}
	doc, err := store.GetDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if doc.UserID != userID {
		return nil, domain.WrapError(domain.ErrForbidden, "get document",
			fmt.Errorf("document %s belongs to another user", documentID))
	}
	return doc, nil
}

func readyDocument(ctx context.Context, store *IndexStore, userID, documentID string) (*domain.Document, error) {
	doc, err := ownedDocument(ctx, store, userID, documentID)
	if err != nil {
		return nil, err
	}
	if err := RequireReady(doc); err != nil {
		return nil, err
	}
	return doc, nil
}
