package nats

import (
	"context"
	"errors"

	"github.com/nats-io/nats.go"

	"github.com/didembi/documind/internal/core/domain"
	"github.com/didembi/documind/internal/infrastructure/resilience"
)

const publishOperation = "nats.publish_ingest_job"

// Publish failures fall into three groups. Transport loss is retried and
// counts against the breaker. A job the server can never accept (bad
// subject, oversized payload) fails at once and leaves the breaker alone,
// since the connection is healthy. Anything else fails without retry.
var (
	transportErrors = []error{
		nats.ErrNoServers,
		nats.ErrTimeout,
		nats.ErrConnectionClosed,
		nats.ErrConnectionDraining,
		nats.ErrConnectionReconnecting,
		nats.ErrDisconnected,
		nats.ErrStaleConnection,
	}
	rejectedJobErrors = []error{
		nats.ErrBadSubject,
		nats.ErrMaxPayload,
		nats.ErrInvalidMsg,
	}
)

func classifyPublishError(err error) resilience.ErrorClassification {
	switch {
	case err == nil:
		return resilience.ErrorClassification{}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return resilience.ErrorClassification{}
	case resilience.IsCircuitOpen(err), matchesAny(err, transportErrors):
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	case matchesAny(err, rejectedJobErrors):
		return resilience.ErrorClassification{}
	default:
		return resilience.ErrorClassification{RecordFailure: true}
	}
}

func matchesAny(err error, targets []error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// publishError maps a failed publish onto the domain error kinds. Transport
// trouble is ErrTemporary so the upload is reported as retryable; a rejected
// job is an ingestion error because resending the same document cannot help.
func publishError(documentID string, err error) error {
	if err == nil {
		return nil
	}
	if domain.IsKind(err, domain.ErrTemporary) {
		return err
	}
	if matchesAny(err, rejectedJobErrors) {
		return domain.WrapError(domain.ErrIngestion, "publish ingest job "+documentID, err)
	}
	if class := classifyPublishError(err); class.Retryable {
		return domain.WrapError(domain.ErrTemporary, "publish ingest job "+documentID, err)
	}
	return err
}
