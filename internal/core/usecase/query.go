package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/didembi/documind/internal/core/domain"
	"github.com/didembi/documind/internal/core/ports"
)

const (
	DefaultTopK          = 5
	MaxSearchLimit       = 50
	DefaultQABudget      = 4000
	queryLogWriteTimeout = 5 * time.Second
)

type QueryOptions struct {
	TopK          int
	ContextBudget int
}

type QueryUseCase struct {
	store     *IndexStore
	embedder  ports.Embedder
	generator ports.AnswerGenerator
	queryLog  ports.QueryLog
	options   QueryOptions
}

func NewQueryUseCase(
	store *IndexStore,
	embedder ports.Embedder,
	generator ports.AnswerGenerator,
	queryLog ports.QueryLog,
	options QueryOptions,
) *QueryUseCase {
	if options.TopK <= 0 {
		options.TopK = DefaultTopK
	}
	if options.ContextBudget <= 0 {
		options.ContextBudget = DefaultQABudget
	}
	return &QueryUseCase{
		store:     store,
		embedder:  embedder,
		generator: generator,
		queryLog:  queryLog,
		options:   options,
	}
}

func (uc *QueryUseCase) Answer(ctx context.Context, req domain.QueryRequest) (*domain.Answer, error) {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "answer question", errors.New("question is required"))
	}
	if strings.TrimSpace(req.UserID) == "" {
		return nil, domain.WrapError(domain.ErrUnauthorized, "answer question", errors.New("user id is required"))
	}

	limit := req.Limit
	if limit <= 0 {
		limit = uc.options.TopK
	}
	if limit > MaxSearchLimit {
		limit = MaxSearchLimit
	}

	documentIDs, err := uc.readyDocuments(ctx, req.UserID, req.DocumentIDs)
	if err != nil {
		return nil, err
	}

	var assembled AssembledContext
	if len(documentIDs) > 0 {
		queryVector, err := uc.embedder.Embed(ctx, question)
		if err != nil {
			return nil, fmt.Errorf("embed query: %w", err)
		}
		matches, err := uc.store.VectorSearch(ctx, queryVector, documentIDs, limit)
		if err != nil {
			return nil, fmt.Errorf("search chunks: %w", err)
		}
		assembled = AssembleContext(matches, uc.options.ContextBudget, true)
	}

	answerText, err := uc.generator.GenerateAnswer(ctx, question, assembled.Text)
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}

	sources := make([]domain.Source, 0, len(assembled.Included))
	for _, chunk := range assembled.Included {
		sources = append(sources, domain.SourceFromChunk(chunk))
	}

	answer := &domain.Answer{
		QueryID:  uuid.NewString(),
		Question: question,
		Text:     answerText,
		Sources:  sources,
	}
	uc.record(ctx, req.UserID, answer)
	return answer, nil
}

// readyDocuments narrows the requested documents to those the user owns
// and that finished indexing. No ids means every ready document of the user.
func (uc *QueryUseCase) readyDocuments(ctx context.Context, userID string, requested []string) ([]string, error) {
	if len(requested) == 0 {
		docs, err := uc.store.ListDocuments(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("list documents: %w", err)
		}
		ids := make([]string, 0, len(docs))
		for _, doc := range docs {
			if doc.Status == domain.StatusReady {
				ids = append(ids, doc.ID)
			}
		}
		return ids, nil
	}

	ids := make([]string, 0, len(requested))
	seen := make(map[string]struct{}, len(requested))
	for _, id := range requested {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}

		doc, err := uc.store.GetDocument(ctx, id)
		if err != nil {
			if domain.IsKind(err, domain.ErrDocumentNotFound) {
				continue
			}
			return nil, fmt.Errorf("get document %s: %w", id, err)
		}
		if doc.UserID != userID || doc.Status != domain.StatusReady {
			slog.Debug("query_document_skipped", "document_id", id, "status", doc.Status)
			continue
		}
		ids = append(ids, doc.ID)
	}
	return ids, nil
}

func (uc *QueryUseCase) record(ctx context.Context, userID string, answer *domain.Answer) {
	if uc.queryLog == nil {
		return
	}
	logCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), queryLogWriteTimeout)
	defer cancel()
	entry := domain.QueryLogEntry{
		ID:          answer.QueryID,
		UserID:      userID,
		Question:    answer.Question,
		Answer:      answer.Text,
		SourceCount: len(answer.Sources),
		CreatedAt:   time.Now().UTC(),
	}
	if err := uc.queryLog.Record(logCtx, entry); err != nil {
		slog.Warn("query_log_write_failed", "query_id", answer.QueryID, "error", err)
	}
}
