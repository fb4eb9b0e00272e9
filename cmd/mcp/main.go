package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"

	mcpadapter "github.com/didembi/documind/internal/adapters/mcp"
	"github.com/didembi/documind/internal/bootstrap"
	"github.com/didembi/documind/internal/config"
	"github.com/didembi/documind/internal/observability/logging"
)

const (
	serviceName = "mcp"
	version     = "0.1.0"
)

func main() {
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config_invalid", "error", err)
		os.Exit(1)
	}
	// stdout carries the protocol, so logs go to stderr.
	slog.SetDefault(logging.NewJSONLoggerTo(os.Stderr, serviceName, cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, serviceName, nil)
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	tools := mcpadapter.NewTools(mcpadapter.Services{
		Query:      app.QueryUC,
		Summarizer: app.SummarizeUC,
		Catalog:    app.Documents,
	}, cfg.MCPUserID)

	slog.Info("mcp_serving_stdio", "user_id", cfg.MCPUserID)
	if err := server.ServeStdio(mcpadapter.NewServer(tools, version)); err != nil {
		slog.Error("mcp_server_failed", "error", err)
	}
}
