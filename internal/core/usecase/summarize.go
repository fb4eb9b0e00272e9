package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/didembi/documind/internal/core/domain"
	"github.com/didembi/documind/internal/core/ports"
)

const (
	DefaultShortSummaryBudget = 6000
	DefaultLongSummaryBudget  = 10000
	summaryWriteTimeout       = 5 * time.Second
)

type SummaryBudgets struct {
	Short int
	Long  int
}

type SummarizeUseCase struct {
	store     *IndexStore
	generator ports.AnswerGenerator
	budgets   SummaryBudgets
}

func NewSummarizeUseCase(store *IndexStore, generator ports.AnswerGenerator, budgets SummaryBudgets) *SummarizeUseCase {
	if budgets.Short <= 0 {
		budgets.Short = DefaultShortSummaryBudget
	}
	if budgets.Long <= 0 {
		budgets.Long = DefaultLongSummaryBudget
	}
	return &SummarizeUseCase{store: store, generator: generator, budgets: budgets}
}

func (uc *SummarizeUseCase) Summarize(
	ctx context.Context,
	userID, documentID string,
	mode domain.SummaryMode,
	force bool,
) (*domain.SummaryResult, error) {
	if mode != domain.SummaryShort && mode != domain.SummaryLong {
		return nil, domain.WrapError(domain.ErrInvalidInput, "summarize document", fmt.Errorf("unknown mode %q", mode))
	}

	doc, err := ownedDocument(ctx, uc.store, userID, documentID)
	if err != nil {
		return nil, err
	}
	if err := RequireReady(doc); err != nil {
		return nil, err
	}

	if !force {
		if text, ok := doc.CachedSummary(mode); ok {
			return &domain.SummaryResult{DocumentID: doc.ID, Mode: mode, Text: text, Cached: true}, nil
		}
	}

	chunks, err := uc.store.GetDocumentChunks(ctx, doc.ID)
	if err != nil {
		return nil, err
	}
	scored := make([]domain.ScoredChunk, 0, len(chunks))
	for _, chunk := range chunks {
		scored = append(scored, domain.ScoredChunk{Chunk: chunk})
	}
	assembled := AssembleContext(scored, uc.budget(mode), false)

	text, err := uc.generator.Summarize(ctx, assembled.Text, mode, doc.Filename)
	if err != nil {
		return nil, fmt.Errorf("generate summary: %w", err)
	}

	result := &domain.SummaryResult{DocumentID: doc.ID, Mode: mode, Text: text}
	if text == domain.NothingToSummarizeText {
		return result, nil
	}

	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), summaryWriteTimeout)
	defer cancel()
	if err := uc.store.SaveSummary(saveCtx, doc.ID, domain.SummaryUpdateFor(mode, text)); err != nil {
		slog.Warn("summary_cache_write_failed", "document_id", doc.ID, "mode", mode, "error", err)
		result.CacheErr = err
	}
	return result, nil
}

func (uc *SummarizeUseCase) budget(mode domain.SummaryMode) int {
	if mode == domain.SummaryLong {
		return uc.budgets.Long
	}
	return uc.budgets.Short
}
