// Package inline runs ingestion jobs inside the publishing process. It is
// used when no NATS server is configured.
package inline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/didembi/documind/internal/core/domain"
)

const abandonTimeout = 10 * time.Second

var errQueueClosed = errors.New("ingest queue is shut down")

type Options struct {
	Capacity int
	Workers  int
	// Abandon receives every job that will never reach the handler: jobs
	// still buffered at shutdown and jobs dequeued after it began. It runs
	// on a context detached from the subscriber's.
	Abandon func(ctx context.Context, job domain.IngestJob, reason string)
}

type Queue struct {
	jobs    chan domain.IngestJob
	workers int
	abandon func(context.Context, domain.IngestJob, string)

	mu     sync.Mutex
	closed bool
}

func New(capacity, workers int) *Queue {
	return NewWithOptions(Options{Capacity: capacity, Workers: workers})
}

func NewWithOptions(options Options) *Queue {
	if options.Capacity <= 0 {
		options.Capacity = 128
	}
	if options.Workers <= 0 {
		options.Workers = 1
	}
	return &Queue{
		jobs:    make(chan domain.IngestJob, options.Capacity),
		workers: options.Workers,
		abandon: options.Abandon,
	}
}

// PublishIngestJob enqueues without blocking. A full buffer or a queue that
// has shut down is reported as a temporary failure.
func (q *Queue) PublishIngestJob(ctx context.Context, job domain.IngestJob) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = time.Now().UTC()
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return domain.WrapError(domain.ErrTemporary, "inline publish", errQueueClosed)
	}
	select {
	case q.jobs <- job:
		return nil
	default:
		return domain.WrapError(domain.ErrTemporary, "inline publish", errors.New("ingest queue is full"))
	}
}

// SubscribeIngestJobs runs handler on a fixed set of goroutines until ctx is
// done. It returns only after every started job has finished and every
// buffered job has been abandoned, so callers may release shared resources
// once it returns.
func (q *Queue) SubscribeIngestJobs(ctx context.Context, handler func(context.Context, domain.IngestJob) error) error {
	if handler == nil {
		return fmt.Errorf("inline subscribe: handler is nil")
	}
	var wg sync.WaitGroup
	for i := 0; i < q.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case job := <-q.jobs:
					// select picks at random when both cases are ready.
					if ctx.Err() != nil {
						q.abandonJob(ctx, job, "shutdown before processing started")
						return
					}
					if err := handler(ctx, job); err != nil {
						slog.Error("ingest_job_failed", "document_id", job.DocumentID, "error", err)
					}
				}
			}
		}()
	}
	wg.Wait()
	q.drain(ctx)
	return nil
}

// drain closes the queue to publishers and abandons what is left in the
// buffer.
func (q *Queue) drain(ctx context.Context) {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()

	for {
		select {
		case job := <-q.jobs:
			q.abandonJob(ctx, job, "shutdown before processing started")
		default:
			return
		}
	}
}

func (q *Queue) abandonJob(ctx context.Context, job domain.IngestJob, reason string) {
	slog.Warn("ingest_job_abandoned", "document_id", job.DocumentID, "reason", reason)
	if q.abandon == nil {
		return
	}
	abandonCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), abandonTimeout)
	defer cancel()
	q.abandon(abandonCtx, job, reason)
}

func (q *Queue) Ping(context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return errQueueClosed
	}
	return nil
}
