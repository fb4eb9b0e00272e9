package httpadapter

import (
	"net/http"
	"time"

	"github.com/didembi/documind/internal/core/domain"
)

type queryRequest struct {
	Question    string   `json:"question"`
	DocumentIDs []string `json:"document_ids"`
	SearchLimit int      `json:"search_limit"`
}

func (rt *Router) queryDocuments(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := decodeJSONBody(w, r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}

	start := time.Now()
	answer, err := rt.services.Query.Answer(r.Context(), domain.QueryRequest{
		UserID:      userIDFromContext(r.Context()),
		Question:    req.Question,
		DocumentIDs: req.DocumentIDs,
		Limit:       req.SearchLimit,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	if rt.metrics != nil {
		rt.metrics.RecordRAGObservation(serviceName, "query", len(answer.Sources), time.Since(start))
	}

	writeJSON(w, http.StatusOK, answer)
}

func (rt *Router) recentQueries(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	entries, err := rt.services.Catalog.RecentQueries(r.Context(), userIDFromContext(r.Context()), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"queries": entries})
}
