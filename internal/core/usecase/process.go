package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/didembi/documind/internal/core/domain"
	"github.com/didembi/documind/internal/core/ports"
)

const (
	DefaultIngestWorkers = 4
	noIndexableContent   = "no indexable content"
	cleanupTimeout       = 30 * time.Second
)

type ProcessOptions struct {
	// Workers bounds concurrent embed+store calls per document.
	Workers int
	// EmbedLimiter throttles embedding calls across documents. Nil disables it.
	EmbedLimiter    *rate.Limiter
	OnChunksIndexed func(n int)
}

type ProcessDocumentUseCase struct {
	store     *IndexStore
	extractor ports.TextExtractor
	chunker   ports.Chunker
	embedder  ports.Embedder
	lifecycle *DocumentLifecycle
	options   ProcessOptions
}

func NewProcessDocumentUseCase(
	store *IndexStore,
	extractor ports.TextExtractor,
	chunker ports.Chunker,
	embedder ports.Embedder,
	options ProcessOptions,
) *ProcessDocumentUseCase {
	if options.Workers <= 0 {
		options.Workers = DefaultIngestWorkers
	}
	return &ProcessDocumentUseCase{
		store:     store,
		extractor: extractor,
		chunker:   chunker,
		embedder:  embedder,
		lifecycle: NewDocumentLifecycle(store),
		options:   options,
	}
}

func (uc *ProcessDocumentUseCase) ProcessByID(ctx context.Context, documentID string) error {
	doc, err := uc.store.GetDocument(ctx, documentID)
	if err != nil {
		err = fmt.Errorf("fetch document by id: %w", err)
		// The document may exist; only cancellation kept us from reading it.
		if ctx.Err() != nil {
			return uc.fail(ctx, documentID, err)
		}
		return err
	}
	if doc.Status != domain.StatusProcessing {
		return domain.WrapError(domain.ErrInvalidStatusTransition, "process document",
			fmt.Errorf("document %s is %s", doc.ID, doc.Status))
	}

	text, err := uc.extractor.Extract(ctx, doc)
	if err != nil {
		return uc.fail(ctx, documentID, fmt.Errorf("extract text: %w", err))
	}

	chunks := uc.chunker.Chunk(text)
	if len(chunks) == 0 {
		slog.Info("document_without_content", "document_id", documentID, "filename", doc.Filename)
		if err := uc.lifecycle.MarkFailed(ctx, documentID, noIndexableContent); err != nil {
			return err
		}
		return nil
	}

	if err := uc.index(ctx, documentID, chunks); err != nil {
		uc.removePartial(ctx, documentID)
		return uc.fail(ctx, documentID, err)
	}

	if err := uc.lifecycle.MarkReady(ctx, documentID); err != nil {
		return err
	}
	if uc.options.OnChunksIndexed != nil {
		uc.options.OnChunksIndexed(len(chunks))
	}
	return nil
}

// index embeds and stores every chunk on a bounded pool. Ordinals come
// from the chunker, so completion order does not matter. The first
// failure cancels the group and no further chunks are dispatched.
func (uc *ProcessDocumentUseCase) index(ctx context.Context, documentID string, chunks []domain.Chunk) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(uc.options.Workers)

	for _, chunk := range chunks {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			return uc.indexChunk(gctx, documentID, chunk)
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	// A cancelled parent can stop dispatch without any chunk failing.
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("index chunks: %w", err)
	}
	return nil
}

func (uc *ProcessDocumentUseCase) indexChunk(ctx context.Context, documentID string, chunk domain.Chunk) error {
	if uc.options.EmbedLimiter != nil {
		if err := uc.options.EmbedLimiter.Wait(ctx); err != nil {
			return fmt.Errorf("embed chunk %d: %w", chunk.Index, err)
		}
	}

	vector, err := uc.embedder.Embed(ctx, chunk.Text)
	if err != nil {
		return fmt.Errorf("embed chunk %d: %w", chunk.Index, err)
	}
	if len(vector) == 0 {
		return domain.WrapError(domain.ErrEmbedding, "embed chunk",
			fmt.Errorf("empty vector for chunk %d", chunk.Index))
	}

	chunk.Embedding = vector
	if _, err := uc.store.Store(ctx, documentID, chunk); err != nil {
		return err
	}
	return nil
}

// Abandon fails a queued document that will not be processed.
func (uc *ProcessDocumentUseCase) Abandon(ctx context.Context, documentID, reason string) error {
	return uc.lifecycle.MarkFailed(ctx, documentID, reason)
}

func (uc *ProcessDocumentUseCase) removePartial(ctx context.Context, documentID string) {
	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()
	if err := uc.store.DeleteDocumentChunks(cleanupCtx, documentID); err != nil {
		slog.Warn("partial_chunks_cleanup_failed", "document_id", documentID, "error", err)
	}
}

func (uc *ProcessDocumentUseCase) fail(ctx context.Context, documentID string, processErr error) error {
	if failErr := uc.lifecycle.MarkFailed(ctx, documentID, processErr.Error()); failErr != nil {
		return errors.Join(processErr, fmt.Errorf("mark failed status: %w", failErr))
	}
	return processErr
}
