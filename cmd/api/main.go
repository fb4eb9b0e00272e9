package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	httpadapter "github.com/didembi/documind/internal/adapters/http"
	"github.com/didembi/documind/internal/bootstrap"
	"github.com/didembi/documind/internal/config"
	"github.com/didembi/documind/internal/observability/logging"
	"github.com/didembi/documind/internal/observability/metrics"
)

const serviceName = "api"

func main() {
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config_invalid", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(logging.NewJSONLogger(serviceName, cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpMetrics := metrics.NewHTTPServerMetrics(serviceName)
	app, err := bootstrap.New(ctx, cfg, serviceName, httpMetrics)
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	// queueDone closes once in-process jobs have finished or been marked
	// failed. The database must stay open until then.
	queueDone := make(chan struct{})
	if app.InlineQueue {
		go func() {
			defer close(queueDone)
			if err := app.Queue.SubscribeIngestJobs(ctx, app.IngestJobHandler(serviceName, nil)); err != nil {
				slog.Error("inline_queue_stopped", "error", err)
			}
		}()
	} else {
		close(queueDone)
	}

	router := httpadapter.NewRouter(cfg, httpadapter.Services{
		Ingestor:   app.IngestUC,
		Query:      app.QueryUC,
		Summarizer: app.SummarizeUC,
		Catalog:    app.Documents,
		Readiness:  app.Readiness,
	}, httpMetrics).Handler()
	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      router,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: time.Duration(cfg.LLMTimeoutSeconds+30) * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("api_listening", "port", cfg.APIPort, "index_backend", cfg.IndexBackend, "embedding_backend", cfg.EmbeddingBackend)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("api_server_failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("api_shutdown_failed", "error", err)
	}
	<-queueDone
}
