package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/didembi/documind/internal/core/domain"
	"github.com/didembi/documind/internal/core/ports"
)

const (
	DefaultMaxUploadBytes = 25 << 20
	formatSniffBytes      = 512
)

type IngestDocumentUseCase struct {
	store          *IndexStore
	storage        ports.ObjectStorage
	queue          ports.MessageQueue
	lifecycle      *DocumentLifecycle
	maxUploadBytes int64
}

func NewIngestDocumentUseCase(
	store *IndexStore,
	storage ports.ObjectStorage,
	queue ports.MessageQueue,
	maxUploadBytes int64,
) *IngestDocumentUseCase {
	if maxUploadBytes <= 0 {
		maxUploadBytes = DefaultMaxUploadBytes
	}
	return &IngestDocumentUseCase{
		store:          store,
		storage:        storage,
		queue:          queue,
		lifecycle:      NewDocumentLifecycle(store),
		maxUploadBytes: maxUploadBytes,
	}
}

func (uc *IngestDocumentUseCase) Upload(
	ctx context.Context,
	req domain.UploadRequest,
	body io.Reader,
) (*domain.Document, error) {
	if strings.TrimSpace(req.UserID) == "" {
		return nil, domain.WrapError(domain.ErrUnauthorized, "upload document", errors.New("user id is required"))
	}
	if strings.TrimSpace(req.Filename) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload document", errors.New("filename is required"))
	}

	head := make([]byte, formatSniffBytes)
	n, err := io.ReadFull(body, head)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload document", fmt.Errorf("read upload: %w", err))
	}
	head = head[:n]
	if n == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload document", errors.New("file is empty"))
	}

	format, ok := domain.DetectFormat(req.Filename, req.MimeType, head)
	if !ok {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload document",
			fmt.Errorf("unsupported file type %q", filepath.Ext(req.Filename)))
	}

	id := uuid.NewString()
	storageKey := fmt.Sprintf("%s_%s", id, sanitizeFilename(req.Filename))

	// One byte past the limit is read so oversized uploads can be detected.
	remaining := uc.maxUploadBytes - int64(len(head)) + 1
	written, err := uc.storage.Save(ctx, storageKey, io.MultiReader(bytes.NewReader(head), io.LimitReader(body, remaining)))
	if err != nil {
		return nil, fmt.Errorf("save to object storage: %w", err)
	}
	if written > uc.maxUploadBytes {
		uc.discard(ctx, storageKey)
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload document",
			fmt.Errorf("file exceeds %d bytes", uc.maxUploadBytes))
	}

	mimeType := strings.TrimSpace(req.MimeType)
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = format.MimeType()
	}

	now := time.Now().UTC()
	doc := &domain.Document{
		ID:         id,
		UserID:     req.UserID,
		NotebookID: req.NotebookID,
		Filename:   req.Filename,
		MimeType:   mimeType,
		FileSize:   written,
		FilePath:   storageKey,
		Status:     domain.StatusProcessing,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := uc.store.CreateDocument(ctx, doc); err != nil {
		uc.discard(ctx, storageKey)
		return nil, err
	}

	job := domain.IngestJob{DocumentID: doc.ID, UserID: doc.UserID, EnqueuedAt: now}
	if err := uc.queue.PublishIngestJob(ctx, job); err != nil {
		publishErr := fmt.Errorf("publish ingestion event: %w", err)
		if failErr := uc.lifecycle.MarkFailed(ctx, doc.ID, publishErr.Error()); failErr != nil {
			return nil, fmt.Errorf("%w; mark failed status: %v", publishErr, failErr)
		}
		return nil, publishErr
	}

	return doc, nil
}

func (uc *IngestDocumentUseCase) discard(ctx context.Context, key string) {
	if err := uc.storage.Delete(context.WithoutCancel(ctx), key); err != nil {
		slog.Warn("upload_cleanup_failed", "key", key, "error", err)
	}
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" || base == "." {
		return "document.bin"
	}
	return base
}
