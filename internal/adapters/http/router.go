package httpadapter

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"github.com/didembi/documind/internal/config"
	"github.com/didembi/documind/internal/core/ports"
	"github.com/didembi/documind/internal/observability/metrics"
)

const (
	serviceName      = "api"
	readinessTimeout = 3 * time.Second
	maxJSONBodyBytes = 1 << 20
)

// Services are the inbound ports served over HTTP.
type Services struct {
	Ingestor   ports.DocumentIngestor
	Query      ports.DocumentQueryService
	Summarizer ports.DocumentSummarizer
	Catalog    ports.DocumentCatalog
	// Readiness maps a dependency name to its health check.
	Readiness map[string]ports.HealthChecker
}

type Router struct {
	cfg      config.Config
	services Services
	metrics  *metrics.HTTPServerMetrics
}

func NewRouter(cfg config.Config, services Services, httpMetrics *metrics.HTTPServerMetrics) *Router {
	return &Router{
		cfg:      cfg,
		services: services,
		metrics:  httpMetrics,
	}
}

func (rt *Router) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(accessLogMiddleware)
	if rt.metrics != nil {
		r.Use(func(next http.Handler) http.Handler {
			return rt.metrics.Middleware(serviceName, next)
		})
	}

	r.Get("/healthz", rt.healthz)
	r.Get("/readyz", rt.readyz)
	if rt.metrics != nil {
		r.Method(http.MethodGet, "/metrics", rt.metrics.Handler())
	}

	limiter := rt.newLimiter()
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(func(next http.Handler) http.Handler {
			return rateLimitMiddleware(next, limiter)
		})
		r.Use(func(next http.Handler) http.Handler {
			return backpressureMiddleware(next, rt.cfg.APIMaxInFlight, time.Duration(rt.cfg.APIBackpressureWaitMS)*time.Millisecond)
		})
		r.Use(userIDMiddleware)

		r.Post("/documents/upload", rt.uploadDocument)
		r.Get("/documents", rt.listDocuments)
		r.Route("/documents/{id}", func(r chi.Router) {
			r.Get("/", rt.getDocument)
			r.Delete("/", rt.deleteDocument)
			r.Get("/chunks", rt.documentChunks)
			r.Get("/search", rt.searchDocument)
			r.Post("/summary", rt.summarizeDocument)
		})
		r.Post("/query", rt.queryDocuments)
		r.Get("/queries", rt.recentQueries)
	})

	return r
}

func (rt *Router) newLimiter() *rate.Limiter {
	if rt.cfg.APIRateLimitRPS <= 0 {
		return nil
	}
	burst := rt.cfg.APIRateLimitBurst
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rt.cfg.APIRateLimitRPS), burst)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	checks := make(map[string]string, len(rt.services.Readiness))
	ready := true
	for name, checker := range rt.services.Readiness {
		if err := checker.Ping(ctx); err != nil {
			checks[name] = err.Error()
			ready = false
			continue
		}
		checks[name] = "ok"
	}

	if !ready {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "not_ready", "checks": checks})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready", "checks": checks})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
