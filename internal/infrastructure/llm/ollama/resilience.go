package ollama

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/didembi/documind/internal/core/domain"
	"github.com/didembi/documind/internal/infrastructure/resilience"
)

type HTTPStatusError struct {
	Operation  string
	StatusCode int
	Status     string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	if e == nil {
		return "ollama status error"
	}
	if strings.TrimSpace(e.Body) == "" {
		return fmt.Sprintf("ollama %s status: %s", e.Operation, e.Status)
	}
	return fmt.Sprintf("ollama %s status: %s: %s", e.Operation, e.Status, strings.TrimSpace(e.Body))
}

// classifyOllamaError decides which failures count against the circuit
// breaker. Retries are disabled for model calls, so Retryable only matters to
// callers that opt into a retrying executor.
func classifyOllamaError(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	if errors.Is(err, context.Canceled) {
		return resilience.ErrorClassification{
			Retryable:     false,
			RecordFailure: false,
		}
	}
	if resilience.IsCircuitOpen(err) {
		return resilience.ErrorClassification{
			Retryable:     true,
			RecordFailure: true,
		}
	}

	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		if isRetryableHTTPStatus(statusErr.StatusCode) {
			return resilience.ErrorClassification{
				Retryable:     true,
				RecordFailure: true,
			}
		}
		return resilience.ErrorClassification{
			Retryable:     false,
			RecordFailure: false,
		}
	}

	var malformed *malformedResponseError
	if errors.As(err, &malformed) {
		return resilience.ErrorClassification{
			Retryable:     false,
			RecordFailure: true,
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{
			Retryable:     true,
			RecordFailure: true,
		}
	}

	return resilience.ErrorClassification{
		Retryable:     false,
		RecordFailure: true,
	}
}

// classifyGenerationFailure maps a transport failure onto the generation
// error kinds: timeouts, unreachable or failing backends, and responses that
// cannot be decoded.
func classifyGenerationFailure(operation, baseURL string, err error) error {
	if err == nil {
		return nil
	}
	if domain.IsKind(err, domain.ErrMalformedResponse) ||
		domain.IsKind(err, domain.ErrLLMTimeout) ||
		domain.IsKind(err, domain.ErrLLMUnavailable) {
		return err
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	if isTimeout(err) {
		return domain.WrapError(domain.ErrLLMTimeout, operation,
			fmt.Errorf("no response from %s before the deadline: %w", baseURL, err))
	}
	if resilience.IsCircuitOpen(err) {
		return domain.WrapError(domain.ErrLLMUnavailable, operation,
			fmt.Errorf("circuit open after repeated failures: %w", err))
	}

	var malformed *malformedResponseError
	if errors.As(err, &malformed) {
		return domain.WrapError(domain.ErrMalformedResponse, operation, err)
	}

	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		return domain.WrapError(domain.ErrLLMUnavailable, operation, err)
	}

	var netErr net.Error
	var opErr *net.OpError
	if errors.As(err, &opErr) || errors.As(err, &netErr) {
		return domain.WrapError(domain.ErrLLMUnavailable, operation,
			fmt.Errorf("cannot reach ollama at %s, is `ollama serve` running?: %w", baseURL, err))
	}
	return domain.WrapError(domain.ErrLLMUnavailable, operation, err)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func isRetryableHTTPStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusRequestTimeout, http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}
