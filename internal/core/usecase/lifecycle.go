package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/didembi/documind/internal/core/domain"
)

const failureMarkTimeout = 10 * time.Second

type statusUpdater interface {
	UpdateStatus(ctx context.Context, id string, from, to domain.DocumentStatus, errMessage string) error
}

// DocumentLifecycle owns the processing -> ready|failed transitions.
type DocumentLifecycle struct {
	updater statusUpdater
}

func NewDocumentLifecycle(updater statusUpdater) *DocumentLifecycle {
	return &DocumentLifecycle{updater: updater}
}

func (l *DocumentLifecycle) MarkReady(ctx context.Context, documentID string) error {
	if err := l.updater.UpdateStatus(ctx, documentID, domain.StatusProcessing, domain.StatusReady, ""); err != nil {
		return fmt.Errorf("set status=ready: %w", err)
	}
	return nil
}

// MarkFailed records reason on the document. It runs on a context detached
// from the caller's cancellation, so an aborted request still leaves the
// document failed rather than processing.
func (l *DocumentLifecycle) MarkFailed(ctx context.Context, documentID, reason string) error {
	failCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), failureMarkTimeout)
	defer cancel()
	if err := l.updater.UpdateStatus(failCtx, documentID, domain.StatusProcessing, domain.StatusFailed, reason); err != nil {
		return fmt.Errorf("set status=failed: %w", err)
	}
	return nil
}

func RequireReady(doc *domain.Document) error {
	if doc.Status != domain.StatusReady {
		return domain.WrapError(domain.ErrDocumentNotReady, "require ready",
			fmt.Errorf("document %s is %s", doc.ID, doc.Status))
	}
	return nil
}
