package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/didembi/documind/internal/config"
	"github.com/didembi/documind/internal/core/domain"
	"github.com/didembi/documind/internal/core/ports"
	"github.com/didembi/documind/internal/observability/metrics"
)

type ingestFake struct {
	req  domain.UploadRequest
	body string
	err  error
}

func (f *ingestFake) Upload(_ context.Context, req domain.UploadRequest, body io.Reader) (*domain.Document, error) {
	if f.err != nil {
		return nil, f.err
	}
	raw, _ := io.ReadAll(body)
	f.req = req
	f.body = string(raw)
	return &domain.Document{ID: "doc-1", UserID: req.UserID, Filename: req.Filename, Status: domain.StatusProcessing}, nil
}

type queryFake struct {
	req domain.QueryRequest
	err error
}

func (f *queryFake) Answer(_ context.Context, req domain.QueryRequest) (*domain.Answer, error) {
	f.req = req
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Answer{
		QueryID:  "q-1",
		Question: req.Question,
		Text:     "blue",
		Sources:  []domain.Source{{DocumentID: "doc-1", ChunkID: "c-1", Location: "Lines 1-1"}},
	}, nil
}

type summarizerFake struct {
	mode  domain.SummaryMode
	force bool
	err   error
	cache error
}

func (f *summarizerFake) Summarize(_ context.Context, _, documentID string, mode domain.SummaryMode, force bool) (*domain.SummaryResult, error) {
	f.mode = mode
	f.force = force
	if f.err != nil {
		return nil, f.err
	}
	return &domain.SummaryResult{DocumentID: documentID, Mode: mode, Text: "summary", CacheErr: f.cache}, nil
}

type catalogFake struct {
	userID  string
	limit   int
	query   string
	err     error
	deleted string
}

func (f *catalogFake) List(_ context.Context, userID string) ([]domain.Document, error) {
	f.userID = userID
	return []domain.Document{{ID: "doc-1", UserID: userID}}, f.err
}

func (f *catalogFake) Get(_ context.Context, userID, documentID string) (*domain.Document, error) {
	f.userID = userID
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Document{ID: documentID, UserID: userID}, nil
}

func (f *catalogFake) Delete(_ context.Context, _, documentID string) error {
	f.deleted = documentID
	return f.err
}

func (f *catalogFake) Chunks(context.Context, string, string) ([]domain.Chunk, error) {
	return []domain.Chunk{{ID: "c-1", Index: 0, Text: "The sky is blue."}}, f.err
}

func (f *catalogFake) KeywordSearch(_ context.Context, _, _, query string, limit int) ([]domain.Chunk, error) {
	f.query = query
	f.limit = limit
	return []domain.Chunk{}, f.err
}

func (f *catalogFake) RecentQueries(_ context.Context, _ string, limit int) ([]domain.QueryLogEntry, error) {
	f.limit = limit
	return []domain.QueryLogEntry{{ID: "q-1"}}, f.err
}

type checkerFake struct{ err error }

func (c checkerFake) Ping(context.Context) error { return c.err }

type fixture struct {
	ingest     *ingestFake
	query      *queryFake
	summarizer *summarizerFake
	catalog    *catalogFake
	metrics    *metrics.HTTPServerMetrics
	handler    http.Handler
}

func newFixture(cfg config.Config, readiness map[string]ports.HealthChecker) *fixture {
	f := &fixture{
		ingest:     &ingestFake{},
		query:      &queryFake{},
		summarizer: &summarizerFake{},
		catalog:    &catalogFake{},
		metrics:    metrics.NewHTTPServerMetrics("api"),
	}
	f.handler = NewRouter(cfg, Services{
		Ingestor:   f.ingest,
		Query:      f.query,
		Summarizer: f.summarizer,
		Catalog:    f.catalog,
		Readiness:  readiness,
	}, f.metrics).Handler()
	return f
}

func (f *fixture) do(method, target string, body io.Reader, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, body)
	req.Header.Set(userIDHeader, "user-1")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res := httptest.NewRecorder()
	f.handler.ServeHTTP(res, req)
	return res
}

func decodeBody(t *testing.T, res *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(res.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", res.Body.String(), err)
	}
	return out
}

func TestAPIRequiresUserHeader(t *testing.T) {
	f := newFixture(config.Config{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/documents", nil)
	res := httptest.NewRecorder()
	f.handler.ServeHTTP(res, req)
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", res.Code)
	}
	if !strings.Contains(decodeBody(t, res)["error"].(string), "X-User-Id") {
		t.Fatalf("expected header name in error, got %s", res.Body.String())
	}
}

func TestUploadDocumentAccepted(t *testing.T) {
	f := newFixture(config.Config{MaxUploadBytes: 1024}, nil)

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, _ := writer.CreateFormFile("file", "sky.txt")
	_, _ = part.Write([]byte("The sky is blue."))
	_ = writer.WriteField("notebook_id", "nb-7")
	_ = writer.Close()

	res := f.do(http.MethodPost, "/api/v1/documents/upload", &body, map[string]string{"Content-Type": writer.FormDataContentType()})
	if res.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", res.Code, res.Body.String())
	}
	if f.ingest.req.UserID != "user-1" || f.ingest.req.NotebookID != "nb-7" || f.ingest.req.Filename != "sky.txt" {
		t.Fatalf("unexpected upload request: %+v", f.ingest.req)
	}
	if f.ingest.body != "The sky is blue." {
		t.Fatalf("unexpected body: %q", f.ingest.body)
	}
}

func TestUploadDocumentRequiresFile(t *testing.T) {
	f := newFixture(config.Config{}, nil)
	res := f.do(http.MethodPost, "/api/v1/documents/upload", strings.NewReader("{}"), map[string]string{"Content-Type": "application/json"})
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestQueryPassesRequestAndReturnsSources(t *testing.T) {
	f := newFixture(config.Config{}, nil)

	payload := `{"question":"What color is the sky?","document_ids":["doc-1"],"search_limit":3}`
	res := f.do(http.MethodPost, "/api/v1/query", strings.NewReader(payload), nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	if f.query.req.UserID != "user-1" || f.query.req.Limit != 3 || len(f.query.req.DocumentIDs) != 1 {
		t.Fatalf("unexpected query request: %+v", f.query.req)
	}
	out := decodeBody(t, res)
	if out["answer"] != "blue" || len(out["sources"].([]any)) != 1 {
		t.Fatalf("unexpected response: %v", out)
	}

	scrape := httptest.NewRecorder()
	f.metrics.Handler().ServeHTTP(scrape, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(scrape.Body.String(), `documind_rag_retrieval_hit_total{endpoint="query",service="api"} 1`) {
		t.Fatalf("expected rag hit metric, got:\n%s", scrape.Body.String())
	}
}

func TestQueryRejectsInvalidJSON(t *testing.T) {
	f := newFixture(config.Config{}, nil)
	res := f.do(http.MethodPost, "/api/v1/query", strings.NewReader("{"), nil)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestErrorKindsMapToStatus(t *testing.T) {
	cases := []struct {
		kind error
		want int
	}{
		{domain.ErrInvalidInput, http.StatusBadRequest},
		{domain.ErrUnauthorized, http.StatusUnauthorized},
		{domain.ErrForbidden, http.StatusForbidden},
		{domain.ErrDocumentNotFound, http.StatusNotFound},
		{domain.ErrDocumentNotReady, http.StatusConflict},
		{domain.ErrIngestion, http.StatusUnprocessableEntity},
		{domain.ErrMalformedResponse, http.StatusBadGateway},
		{domain.ErrEmbedding, http.StatusBadGateway},
		{domain.ErrLLMUnavailable, http.StatusServiceUnavailable},
		{domain.ErrTemporary, http.StatusServiceUnavailable},
		{domain.ErrLLMTimeout, http.StatusGatewayTimeout},
		{domain.ErrStore, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		f := newFixture(config.Config{}, nil)
		f.query.err = domain.WrapError(tc.kind, "answer", errors.New("boom"))

		res := f.do(http.MethodPost, "/api/v1/query", strings.NewReader(`{"question":"q"}`), nil)
		if res.Code != tc.want {
			t.Fatalf("%v: expected %d, got %d", tc.kind, tc.want, res.Code)
		}
	}
}

func TestInternalErrorsHideCause(t *testing.T) {
	f := newFixture(config.Config{}, nil)
	f.catalog.err = domain.WrapError(domain.ErrStore, "get document", errors.New("password authentication failed"))

	res := f.do(http.MethodGet, "/api/v1/documents/doc-1", nil, nil)
	if res.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", res.Code)
	}
	if strings.Contains(res.Body.String(), "password") {
		t.Fatalf("internal cause leaked: %s", res.Body.String())
	}
}

func TestDocumentRoutes(t *testing.T) {
	f := newFixture(config.Config{}, nil)

	if res := f.do(http.MethodGet, "/api/v1/documents/doc-9", nil, nil); res.Code != http.StatusOK || decodeBody(t, res)["id"] != "doc-9" {
		t.Fatalf("get document: %d %s", res.Code, res.Body.String())
	}
	if res := f.do(http.MethodDelete, "/api/v1/documents/doc-9", nil, nil); res.Code != http.StatusNoContent || f.catalog.deleted != "doc-9" {
		t.Fatalf("delete document: %d", res.Code)
	}
	res := f.do(http.MethodGet, "/api/v1/documents/doc-9/chunks", nil, nil)
	if res.Code != http.StatusOK || decodeBody(t, res)["count"].(float64) != 1 {
		t.Fatalf("chunks: %d %s", res.Code, res.Body.String())
	}
	if res := f.do(http.MethodGet, "/api/v1/documents/doc-9/search?q=sky&limit=4", nil, nil); res.Code != http.StatusOK {
		t.Fatalf("search: %d", res.Code)
	}
	if f.catalog.query != "sky" || f.catalog.limit != 4 {
		t.Fatalf("unexpected search args: %q %d", f.catalog.query, f.catalog.limit)
	}
	if res := f.do(http.MethodGet, "/api/v1/documents/doc-9/search?q=sky&limit=many", nil, nil); res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad limit, got %d", res.Code)
	}
	if res := f.do(http.MethodGet, "/api/v1/queries?limit=2", nil, nil); res.Code != http.StatusOK || f.catalog.limit != 2 {
		t.Fatalf("queries: %d", res.Code)
	}
}

func TestSummaryRoute(t *testing.T) {
	f := newFixture(config.Config{}, nil)
	f.summarizer.cache = errors.New("read-only transaction")

	res := f.do(http.MethodPost, "/api/v1/documents/doc-1/summary", strings.NewReader(`{"mode":"long","force":true}`), nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	if f.summarizer.mode != domain.SummaryLong || !f.summarizer.force {
		t.Fatalf("unexpected summarize args: %+v", f.summarizer)
	}
	out := decodeBody(t, res)
	if out["summary"] != "summary" || out["cache_error"] != "read-only transaction" {
		t.Fatalf("unexpected response: %v", out)
	}

	if res := f.do(http.MethodPost, "/api/v1/documents/doc-1/summary", nil, nil); res.Code != http.StatusOK || f.summarizer.mode != domain.SummaryShort {
		t.Fatalf("expected default short summary, got %d %s", res.Code, f.summarizer.mode)
	}
	if res := f.do(http.MethodPost, "/api/v1/documents/doc-1/summary", strings.NewReader(`{"mode":"medium"}`), nil); res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown mode, got %d", res.Code)
	}
}

func TestReadyzReportsFailingDependency(t *testing.T) {
	f := newFixture(config.Config{}, map[string]ports.HealthChecker{
		"postgres": checkerFake{},
		"ollama":   checkerFake{err: errors.New("connection refused")},
	})

	res := f.do(http.MethodGet, "/readyz", nil, nil)
	if res.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", res.Code)
	}
	checks := decodeBody(t, res)["checks"].(map[string]any)
	if checks["postgres"] != "ok" || checks["ollama"] != "connection refused" {
		t.Fatalf("unexpected checks: %v", checks)
	}
}
