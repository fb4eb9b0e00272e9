package domain

import (
	"errors"
	"fmt"
)

var (
	ErrDocumentNotFound        = errors.New("document not found")
	ErrDocumentNotReady        = errors.New("document not ready")
	ErrInvalidStatusTransition = errors.New("invalid document status transition")
	ErrInvalidInput            = errors.New("invalid input")
	ErrUnauthorized            = errors.New("unauthorized")
	ErrForbidden               = errors.New("forbidden")
	ErrTemporary               = errors.New("temporary failure")

	// Pipeline failure kinds.
	ErrIngestion         = errors.New("ingestion failed")
	ErrEmbedding         = errors.New("embedding failed")
	ErrStore             = errors.New("index store failure")
	ErrLLMUnavailable    = errors.New("language model unavailable")
	ErrLLMTimeout        = errors.New("language model timed out")
	ErrMalformedResponse = errors.New("malformed language model response")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
