package inline

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/didembi/documind/internal/core/domain"
)

func TestPublishedJobsReachSubscriber(t *testing.T) {
	q := New(4, 2)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	seen := map[string]bool{}
	done := make(chan struct{})
	go func() {
		_ = q.SubscribeIngestJobs(ctx, func(_ context.Context, job domain.IngestJob) error {
			mu.Lock()
			defer mu.Unlock()
			seen[job.DocumentID] = true
			if len(seen) == 2 {
				close(done)
			}
			return nil
		})
	}()

	for _, id := range []string{"doc-1", "doc-2"} {
		if err := q.PublishIngestJob(ctx, domain.IngestJob{DocumentID: id}); err != nil {
			t.Fatalf("PublishIngestJob() error = %v", err)
		}
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("jobs were not processed, seen = %v", seen)
	}
}

func TestPublishFullQueueIsTemporary(t *testing.T) {
	q := New(1, 1)
	if err := q.PublishIngestJob(context.Background(), domain.IngestJob{DocumentID: "doc-1"}); err != nil {
		t.Fatalf("first PublishIngestJob() error = %v", err)
	}
	err := q.PublishIngestJob(context.Background(), domain.IngestJob{DocumentID: "doc-2"})
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected ErrTemporary, got %v", err)
	}
}

func TestSubscribeReturnsWhenContextEnds(t *testing.T) {
	q := New(1, 3)
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- q.SubscribeIngestJobs(ctx, func(context.Context, domain.IngestJob) error { return nil })
	}()
	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("SubscribeIngestJobs() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("subscriber did not stop")
	}
}

func TestShutdownAbandonsBufferedJobs(t *testing.T) {
	var mu sync.Mutex
	abandoned := map[string]string{}
	q := NewWithOptions(Options{
		Capacity: 4,
		Workers:  2,
		Abandon: func(ctx context.Context, job domain.IngestJob, reason string) {
			if ctx.Err() != nil {
				t.Errorf("abandon context already done: %v", ctx.Err())
			}
			mu.Lock()
			defer mu.Unlock()
			abandoned[job.DocumentID] = reason
		},
	})

	for _, id := range []string{"doc-1", "doc-2", "doc-3"} {
		if err := q.PublishIngestJob(context.Background(), domain.IngestJob{DocumentID: id}); err != nil {
			t.Fatalf("PublishIngestJob() error = %v", err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	handled := 0
	err := q.SubscribeIngestJobs(ctx, func(context.Context, domain.IngestJob) error {
		handled++
		return nil
	})
	if err != nil {
		t.Fatalf("SubscribeIngestJobs() error = %v", err)
	}

	if handled != 0 {
		t.Fatalf("expected no job to reach the handler after shutdown, got %d", handled)
	}
	if len(abandoned) != 3 {
		t.Fatalf("expected all buffered jobs abandoned, got %v", abandoned)
	}

	err = q.PublishIngestJob(context.Background(), domain.IngestJob{DocumentID: "doc-4"})
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected ErrTemporary after shutdown, got %v", err)
	}
	if err := q.Ping(context.Background()); err == nil {
		t.Fatalf("expected Ping() to fail after shutdown")
	}
}

func TestSubscribeWaitsForRunningJob(t *testing.T) {
	q := New(1, 1)
	ctx, cancel := context.WithCancel(context.Background())

	started := make(chan struct{})
	finished := false
	errCh := make(chan error, 1)
	go func() {
		errCh <- q.SubscribeIngestJobs(ctx, func(context.Context, domain.IngestJob) error {
			close(started)
			time.Sleep(50 * time.Millisecond)
			finished = true
			return nil
		})
	}()

	if err := q.PublishIngestJob(context.Background(), domain.IngestJob{DocumentID: "doc-1"}); err != nil {
		t.Fatalf("PublishIngestJob() error = %v", err)
	}
	<-started
	cancel()

	select {
	case <-errCh:
		if !finished {
			t.Fatalf("SubscribeIngestJobs returned before the running job finished")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("subscriber did not stop")
	}
}
