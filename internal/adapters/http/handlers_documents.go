package httpadapter

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/didembi/documind/internal/core/domain"
)

const multipartOverhead = 1 << 20

func (rt *Router) uploadDocument(w http.ResponseWriter, r *http.Request) {
	if rt.cfg.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, rt.cfg.MaxUploadBytes+multipartOverhead)
	}

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "file is too large"})
			return
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	doc, err := rt.services.Ingestor.Upload(r.Context(), domain.UploadRequest{
		UserID:     userIDFromContext(r.Context()),
		NotebookID: strings.TrimSpace(r.FormValue("notebook_id")),
		Filename:   fileHeader.Filename,
		MimeType:   fileHeader.Header.Get("Content-Type"),
	}, file)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusAccepted, doc)
}

func (rt *Router) listDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := rt.services.Catalog.List(r.Context(), userIDFromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

func (rt *Router) getDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := rt.services.Catalog.Get(r.Context(), userIDFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (rt *Router) deleteDocument(w http.ResponseWriter, r *http.Request) {
	if err := rt.services.Catalog.Delete(r.Context(), userIDFromContext(r.Context()), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) documentChunks(w http.ResponseWriter, r *http.Request) {
	documentID := chi.URLParam(r, "id")
	chunks, err := rt.services.Catalog.Chunks(r.Context(), userIDFromContext(r.Context()), documentID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"document_id": documentID,
		"count":       len(chunks),
		"chunks":      chunks,
	})
}

func (rt *Router) searchDocument(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	query := r.URL.Query().Get("q")
	chunks, err := rt.services.Catalog.KeywordSearch(r.Context(), userIDFromContext(r.Context()), chi.URLParam(r, "id"), query, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"query": query, "results": chunks})
}

type summaryRequest struct {
	Mode  string `json:"mode"`
	Force bool   `json:"force"`
}

type summaryResponse struct {
	*domain.SummaryResult
	CacheError string `json:"cache_error,omitempty"`
}

func (rt *Router) summarizeDocument(w http.ResponseWriter, r *http.Request) {
	var req summaryRequest
	if err := decodeJSONBody(w, r, &req, true); err != nil {
		writeError(w, r, err)
		return
	}
	mode, err := domain.ParseSummaryMode(strings.ToLower(strings.TrimSpace(req.Mode)))
	if err != nil {
		writeError(w, r, err)
		return
	}

	result, err := rt.services.Summarizer.Summarize(r.Context(), userIDFromContext(r.Context()), chi.URLParam(r, "id"), mode, req.Force)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if rt.metrics != nil {
		rt.metrics.RecordSummary(serviceName, string(mode), result.Cached)
	}

	resp := summaryResponse{SummaryResult: result}
	if result.CacheErr != nil {
		resp.CacheError = result.CacheErr.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

// decodeJSONBody reads a bounded JSON body. allowEmpty accepts a missing body.
func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst any, allowEmpty bool) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil || (allowEmpty && errors.Is(err, io.EOF)) {
		return nil
	}
	return domain.WrapError(domain.ErrInvalidInput, "decode request", fmt.Errorf("invalid json: %w", err))
}

func parseLimit(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0, domain.WrapError(domain.ErrInvalidInput, "parse limit", fmt.Errorf("limit must be a non-negative integer, got %q", raw))
	}
	return limit, nil
}
