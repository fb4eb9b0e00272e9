package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/didembi/documind/internal/core/domain"
)

const scrollPageSize = 256

// ChunkStore keeps chunks as Qdrant points: the embedding is the point
// vector and the chunk fields live in the payload.
type ChunkStore struct {
	baseURL    string
	collection string
	httpClient *http.Client

	ensureMu          sync.Mutex
	ensuredCollection bool
	ensuredVectorSize int
}

func New(baseURL, collection string) *ChunkStore {
	return &ChunkStore{
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: collection,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

type chunkPayload struct {
	DocumentID  string `json:"document_id"`
	ChunkText   string `json:"chunk_text"`
	ChunkNumber int    `json:"chunk_number"`
	ChunkIndex  int    `json:"chunk_index"`
	PageNumber  *int   `json:"page_number,omitempty"`
	LineStart   *int   `json:"line_start,omitempty"`
	LineEnd     *int   `json:"line_end,omitempty"`
}

type point struct {
	ID      any          `json:"id"`
	Vector  []float32    `json:"vector,omitempty"`
	Payload chunkPayload `json:"payload"`
}

func (p point) chunk() domain.Chunk {
	chunk := domain.Chunk{
		ID:         fmt.Sprint(p.ID),
		DocumentID: p.Payload.DocumentID,
		Index:      p.Payload.ChunkIndex,
		Text:       p.Payload.ChunkText,
		Embedding:  p.Vector,
		LineStart:  p.Payload.LineStart,
		LineEnd:    p.Payload.LineEnd,
	}
	if p.Payload.PageNumber != nil {
		chunk.PageNumber = *p.Payload.PageNumber
	}
	return chunk
}

type statusError struct {
	operation string
	code      int
	status    string
	body      string
}

func (e *statusError) Error() string {
	if e.body == "" {
		return fmt.Sprintf("qdrant %s status: %s", e.operation, e.status)
	}
	return fmt.Sprintf("qdrant %s status: %s: %s", e.operation, e.status, e.body)
}

func isNotFound(err error) bool {
	var status *statusError
	return errors.As(err, &status) && status.code == http.StatusNotFound
}

func (c *ChunkStore) InsertChunk(ctx context.Context, chunk domain.Chunk) error {
	if len(chunk.Embedding) == 0 {
		return domain.WrapError(domain.ErrStore, "qdrant upsert", fmt.Errorf("chunk %d has no embedding", chunk.Index))
	}
	if err := c.ensureCollection(ctx, len(chunk.Embedding)); err != nil {
		return domain.WrapError(domain.ErrStore, "qdrant ensure collection", err)
	}

	payload := chunkPayload{
		DocumentID:  chunk.DocumentID,
		ChunkText:   chunk.Text,
		ChunkNumber: chunk.Index + 1,
		ChunkIndex:  chunk.Index,
		LineStart:   chunk.LineStart,
		LineEnd:     chunk.LineEnd,
	}
	if chunk.HasPage() {
		payload.PageNumber = domain.IntPtr(chunk.PageNumber)
	}
	body := map[string]any{
		"points": []point{{ID: chunk.ID, Vector: chunk.Embedding, Payload: payload}},
	}
	path := fmt.Sprintf("/collections/%s/points?wait=true", c.collection)
	if err := c.doJSON(ctx, http.MethodPut, path, body, nil, "upsert"); err != nil {
		return domain.WrapError(domain.ErrStore, "qdrant upsert", err)
	}
	return nil
}

func (c *ChunkStore) MatchChunks(ctx context.Context, req domain.MatchRequest) ([]domain.ScoredChunk, error) {
	body := map[string]any{
		"vector":          req.QueryVector,
		"limit":           req.Count,
		"with_payload":    true,
		"score_threshold": req.Threshold,
		"filter":          documentFilter(req.DocumentIDs),
	}
	var resp struct {
		Result []struct {
			point
			Score float64 `json:"score"`
		} `json:"result"`
	}
	path := fmt.Sprintf("/collections/%s/points/search", c.collection)
	if err := c.doJSON(ctx, http.MethodPost, path, body, &resp, "search"); err != nil {
		return nil, domain.WrapError(domain.ErrStore, "qdrant search", err)
	}

	out := make([]domain.ScoredChunk, 0, len(resp.Result))
	for _, r := range resp.Result {
		out = append(out, domain.ScoredChunk{Chunk: r.chunk(), Similarity: r.Score})
	}
	return out, nil
}

// ListChunks scrolls every page, so the result is complete. A missing
// collection means nothing was indexed yet.
func (c *ChunkStore) ListChunks(ctx context.Context, documentIDs []string, withEmbeddings bool) ([]domain.Chunk, error) {
	if len(documentIDs) == 0 {
		return []domain.Chunk{}, nil
	}
	chunks, err := c.scroll(ctx, documentFilter(documentIDs), withEmbeddings)
	if err != nil {
		return nil, domain.WrapError(domain.ErrStore, "qdrant list chunks", err)
	}
	return chunks, nil
}

// KeywordMatch uses the full-text payload index on chunk_text, which matches
// whole tokens rather than arbitrary substrings.
func (c *ChunkStore) KeywordMatch(ctx context.Context, documentID, query string, limit int) ([]domain.Chunk, error) {
	filter := map[string]any{
		"must": []map[string]any{
			{"key": "document_id", "match": map[string]any{"value": documentID}},
			{"key": "chunk_text", "match": map[string]any{"text": query}},
		},
	}
	chunks, err := c.scroll(ctx, filter, false)
	if err != nil {
		return nil, domain.WrapError(domain.ErrStore, "qdrant keyword match", err)
	}
	return limitChunks(chunks, limit), nil
}

func (c *ChunkStore) FilterChunksContaining(ctx context.Context, documentID, query string, limit int) ([]domain.Chunk, error) {
	chunks, err := c.scroll(ctx, documentFilter([]string{documentID}), false)
	if err != nil {
		return nil, domain.WrapError(domain.ErrStore, "qdrant filter chunks", err)
	}
	needle := strings.ToLower(strings.TrimSpace(query))
	out := make([]domain.Chunk, 0)
	for _, chunk := range chunks {
		if strings.Contains(strings.ToLower(chunk.Text), needle) {
			out = append(out, chunk)
		}
	}
	return limitChunks(out, limit), nil
}

func (c *ChunkStore) DeleteDocumentChunks(ctx context.Context, documentID string) error {
	body := map[string]any{"filter": documentFilter([]string{documentID})}
	path := fmt.Sprintf("/collections/%s/points/delete?wait=true", c.collection)
	err := c.doJSON(ctx, http.MethodPost, path, body, nil, "delete")
	if err != nil && !isNotFound(err) {
		return domain.WrapError(domain.ErrStore, "qdrant delete chunks", err)
	}
	return nil
}

func (c *ChunkStore) Ping(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodGet, "/collections", nil, nil, "list collections")
}

func (c *ChunkStore) scroll(ctx context.Context, filter map[string]any, withVectors bool) ([]domain.Chunk, error) {
	path := fmt.Sprintf("/collections/%s/points/scroll", c.collection)
	out := make([]domain.Chunk, 0)
	var offset any
	for {
		body := map[string]any{
			"filter":       filter,
			"limit":        scrollPageSize,
			"with_payload": true,
			"with_vector":  withVectors,
		}
		if offset != nil {
			body["offset"] = offset
		}
		var resp struct {
			Result struct {
				Points         []point `json:"points"`
				NextPageOffset any     `json:"next_page_offset"`
			} `json:"result"`
		}
		if err := c.doJSON(ctx, http.MethodPost, path, body, &resp, "scroll"); err != nil {
			if isNotFound(err) {
				return out, nil
			}
			return nil, err
		}
		for _, p := range resp.Result.Points {
			out = append(out, p.chunk())
		}
		if resp.Result.NextPageOffset == nil || len(resp.Result.Points) == 0 {
			break
		}
		offset = resp.Result.NextPageOffset
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].DocumentID != out[j].DocumentID {
			return out[i].DocumentID < out[j].DocumentID
		}
		return out[i].Index < out[j].Index
	})
	return out, nil
}

func documentFilter(documentIDs []string) map[string]any {
	return map[string]any{
		"must": []map[string]any{
			{"key": "document_id", "match": map[string]any{"any": documentIDs}},
		},
	}
}

func limitChunks(chunks []domain.Chunk, limit int) []domain.Chunk {
	if limit > 0 && len(chunks) > limit {
		return chunks[:limit]
	}
	return chunks
}

func (c *ChunkStore) ensureCollection(ctx context.Context, vectorSize int) error {
	c.ensureMu.Lock()
	if c.ensuredCollection && c.ensuredVectorSize == vectorSize {
		c.ensureMu.Unlock()
		return nil
	}
	c.ensureMu.Unlock()

	body := map[string]any{
		"vectors": map[string]any{
			"size":     vectorSize,
			"distance": "Cosine",
		},
	}
	err := c.doJSON(ctx, http.MethodPut, "/collections/"+c.collection, body, nil, "ensure collection")
	// 409 if already exists (depends on version/config).
	var status *statusError
	if err != nil && !(errors.As(err, &status) && status.code == http.StatusConflict) {
		return err
	}

	indexes := []map[string]any{
		{"field_name": "document_id", "field_schema": "keyword"},
		{"field_name": "chunk_text", "field_schema": map[string]any{
			"type":      "text",
			"tokenizer": "word",
			"lowercase": true,
		}},
	}
	for _, index := range indexes {
		path := fmt.Sprintf("/collections/%s/index?wait=true", c.collection)
		if err := c.doJSON(ctx, http.MethodPut, path, index, nil, "create payload index"); err != nil {
			return err
		}
	}

	c.ensureMu.Lock()
	defer c.ensureMu.Unlock()
	c.ensuredCollection = true
	c.ensuredVectorSize = vectorSize
	return nil
}

func (c *ChunkStore) doJSON(ctx context.Context, method, path string, payload any, out any, operation string) error {
	var reader io.Reader
	if payload != nil {
		body, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal %s body: %w", operation, err)
		}
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create %s request: %w", operation, err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant %s request: %w", operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return &statusError{
			operation: operation,
			code:      resp.StatusCode,
			status:    resp.Status,
			body:      strings.TrimSpace(string(body)),
		}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", operation, err)
	}
	return nil
}
