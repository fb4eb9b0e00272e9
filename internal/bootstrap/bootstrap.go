package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/didembi/documind/internal/config"
	"github.com/didembi/documind/internal/core/domain"
	"github.com/didembi/documind/internal/core/ports"
	"github.com/didembi/documind/internal/core/usecase"
	"github.com/didembi/documind/internal/infrastructure/chunking"
	"github.com/didembi/documind/internal/infrastructure/embedding/openai"
	"github.com/didembi/documind/internal/infrastructure/extractor"
	"github.com/didembi/documind/internal/infrastructure/llm/ollama"
	"github.com/didembi/documind/internal/infrastructure/queue/inline"
	"github.com/didembi/documind/internal/infrastructure/queue/nats"
	"github.com/didembi/documind/internal/infrastructure/repository/postgres"
	"github.com/didembi/documind/internal/infrastructure/resilience"
	"github.com/didembi/documind/internal/infrastructure/storage/localfs"
	"github.com/didembi/documind/internal/infrastructure/vector/qdrant"
	"github.com/didembi/documind/internal/observability/metrics"
)

// Telemetry receives dependency events raised while wiring runs. Both the
// HTTP and the worker metrics satisfy it.
type Telemetry interface {
	RecordIndexFallback(operation string)
	RecordBreakerState(operation, state string)
}

type chunkCounter interface {
	AddChunksIndexed(service string, n int)
}

type App struct {
	Config config.Config

	Queue ports.MessageQueue
	// InlineQueue reports that jobs run inside this process, so whoever
	// publishes must also subscribe.
	InlineQueue bool

	IngestUC    ports.DocumentIngestor
	ProcessUC   ports.DocumentProcessor
	QueryUC     ports.DocumentQueryService
	SummarizeUC ports.DocumentSummarizer
	Documents   ports.DocumentCatalog

	Readiness map[string]ports.HealthChecker

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, service string, telemetry Telemetry) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	repo := postgres.NewDocumentRepository(db)
	queryLog := postgres.NewQueryLogRepository(db)

	readiness := map[string]ports.HealthChecker{"postgres": repo}

	var chunks ports.ChunkStore
	switch cfg.IndexBackend {
	case config.IndexBackendQdrant:
		store := qdrant.New(cfg.QdrantURL, cfg.QdrantCollection)
		readiness["qdrant"] = store
		chunks = store
	default:
		chunks = postgres.NewChunkRepository(db)
	}

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	breakerHook := func(operation, state string) {
		slog.Warn("circuit_breaker_state", "operation", operation, "state", state)
		if telemetry != nil {
			telemetry.RecordBreakerState(operation, state)
		}
	}
	resilienceCfg := resilience.DefaultConfig()
	resilienceCfg.OnStateChange = breakerHook
	modelExecutor := resilience.NewExecutor(resilienceCfg.BreakerOnly())

	ollamaClient := ollama.NewWithOptions(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel, ollama.Options{
		Timeout:            time.Duration(cfg.LLMTimeoutSeconds) * time.Second,
		ResilienceExecutor: modelExecutor,
	})
	readiness["ollama"] = ollamaClient
	generator := ollama.NewGenerator(ollamaClient, ollama.GeneratorOptions{
		Temperature:             cfg.LLMTemperature,
		TopP:                    cfg.LLMTopP,
		NumPredict:              cfg.LLMNumPredict,
		SmalltalkIgnoresContext: !cfg.SmalltalkContextGated,
	})

	var embedder ports.Embedder
	switch cfg.EmbeddingBackend {
	case config.EmbeddingBackendOpenAI:
		embedder, err = openai.New(openai.Config{
			BaseURL:   cfg.OpenAIBaseURL,
			APIKey:    cfg.OpenAIAPIKey,
			Model:     cfg.OpenAIEmbedModel,
			Dimension: cfg.EmbeddingDimension,
			Executor:  modelExecutor,
		})
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init embedder: %w", err)
		}
	default:
		embedder = ollama.NewEmbedder(ollamaClient, cfg.EmbeddingDimension)
	}

	var recorder usecase.FallbackRecorder
	if telemetry != nil {
		recorder = telemetry
	}
	store := usecase.NewIndexStore(repo, chunks, usecase.IndexStoreOptions{
		SimilarityThreshold:      cfg.SimilarityThreshold,
		FallbackEnforceThreshold: cfg.FallbackEnforceThreshold,
		Recorder:                 recorder,
	})

	processOptions := usecase.ProcessOptions{Workers: cfg.IngestWorkers}
	if cfg.EmbedRateLimitRPS > 0 {
		burst := int(cfg.EmbedRateLimitRPS)
		if burst < 1 {
			burst = 1
		}
		processOptions.EmbedLimiter = rate.NewLimiter(rate.Limit(cfg.EmbedRateLimitRPS), burst)
	}
	if counter, ok := telemetry.(chunkCounter); ok {
		processOptions.OnChunksIndexed = func(n int) { counter.AddChunksIndexed(service, n) }
	}

	chunker := chunking.NewChunker(chunking.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap))
	processUC := usecase.NewProcessDocumentUseCase(store, extractor.NewRouter(storage), chunker, embedder, processOptions)

	var (
		queue       ports.MessageQueue
		inlineQueue bool
		closeQueue  = func() {}
	)
	if cfg.NATSURL == "" {
		q := inline.NewWithOptions(inline.Options{
			Workers: cfg.IngestWorkers,
			Abandon: func(ctx context.Context, job domain.IngestJob, reason string) {
				if err := processUC.Abandon(ctx, job.DocumentID, reason); err != nil {
					slog.Error("ingest_job_abandon_failed", "document_id", job.DocumentID, "error", err)
				}
			},
		})
		queue, inlineQueue = q, true
		readiness["queue"] = q
		slog.Info("ingest_queue_inline", "workers", cfg.IngestWorkers)
	} else {
		q, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
			ResilienceExecutor: resilience.NewExecutor(resilienceCfg),
		})
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init message queue: %w", err)
		}
		queue, closeQueue = q, q.Close
		readiness["nats"] = q
	}

	return &App{
		Config:      cfg,
		Queue:       queue,
		InlineQueue: inlineQueue,

		IngestUC:  usecase.NewIngestDocumentUseCase(store, storage, queue, cfg.MaxUploadBytes),
		ProcessUC: processUC,
		QueryUC: usecase.NewQueryUseCase(store, embedder, generator, queryLog, usecase.QueryOptions{
			TopK:          cfg.RAGTopK,
			ContextBudget: cfg.ContextBudgetQA,
		}),
		SummarizeUC: usecase.NewSummarizeUseCase(store, generator, usecase.SummaryBudgets{
			Short: cfg.ContextBudgetShortSummary,
			Long:  cfg.ContextBudgetLongSummary,
		}),
		Documents: usecase.NewDocumentService(store, storage, queryLog),

		Readiness: readiness,

		closeFn: func() {
			closeQueue()
			_ = db.Close()
		},
	}, nil
}

// IngestJobHandler processes one queued document under the configured
// timeout. workerMetrics may be nil.
func (a *App) IngestJobHandler(service string, workerMetrics *metrics.WorkerMetrics) func(context.Context, domain.IngestJob) error {
	timeout := time.Duration(a.Config.ProcessTimeoutSeconds) * time.Second
	return func(ctx context.Context, job domain.IngestJob) error {
		if workerMetrics != nil {
			if !job.EnqueuedAt.IsZero() {
				workerMetrics.ObserveQueueLag(service, time.Since(job.EnqueuedAt))
			}
			workerMetrics.StartDocument()
		}

		processCtx := ctx
		if timeout > 0 {
			var cancel context.CancelFunc
			processCtx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		start := time.Now()
		err := a.ProcessUC.ProcessByID(processCtx, job.DocumentID)
		if workerMetrics != nil {
			workerMetrics.FinishDocument(service, time.Since(start), err)
		}
		if err != nil {
			slog.Error("document_process_failed", "document_id", job.DocumentID, "duration_ms", time.Since(start).Milliseconds(), "error", err)
			return err
		}
		slog.Info("document_processed", "document_id", job.DocumentID, "duration_ms", time.Since(start).Milliseconds())
		return nil
	}
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
