package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/didembi/documind/internal/core/domain"
)

type memRepo struct {
	mu          sync.Mutex
	docs        map[string]domain.Document
	createErr   error
	summaryErr  error
	statusCalls []domain.DocumentStatus
}

func newMemRepo(docs ...domain.Document) *memRepo {
	r := &memRepo{docs: make(map[string]domain.Document)}
	for _, doc := range docs {
		r.docs[doc.ID] = doc
	}
	return r
}

func (r *memRepo) Create(_ context.Context, doc *domain.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	r.docs[doc.ID] = *doc
	return nil
}

func (r *memRepo) GetByID(_ context.Context, id string) (*domain.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document", fmt.Errorf("id=%s", id))
	}
	return &doc, nil
}

func (r *memRepo) ListByUser(_ context.Context, userID string) ([]domain.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Document, 0, len(r.docs))
	for _, doc := range r.docs {
		if doc.UserID == userID {
			out = append(out, doc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memRepo) UpdateStatus(_ context.Context, id string, from, to domain.DocumentStatus, errMessage string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statusCalls = append(r.statusCalls, to)
	doc, ok := r.docs[id]
	if !ok {
		return domain.WrapError(domain.ErrDocumentNotFound, "update status", fmt.Errorf("id=%s", id))
	}
	if doc.Status != from || !domain.CanTransition(from, to) {
		return domain.WrapError(domain.ErrInvalidStatusTransition, "update status",
			fmt.Errorf("%s -> %s", doc.Status, to))
	}
	doc.Status = to
	doc.Error = errMessage
	r.docs[id] = doc
	return nil
}

func (r *memRepo) SaveSummary(_ context.Context, id string, update domain.SummaryUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.summaryErr != nil {
		return r.summaryErr
	}
	doc, ok := r.docs[id]
	if !ok {
		return domain.WrapError(domain.ErrDocumentNotFound, "save summary", fmt.Errorf("id=%s", id))
	}
	if update.Short != nil {
		doc.ShortSummary = *update.Short
	}
	if update.Long != nil {
		doc.LongSummary = *update.Long
	}
	r.docs[id] = doc
	return nil
}

func (r *memRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.docs[id]; !ok {
		return domain.WrapError(domain.ErrDocumentNotFound, "delete document", fmt.Errorf("id=%s", id))
	}
	delete(r.docs, id)
	return nil
}

func (r *memRepo) status(id string) domain.DocumentStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.docs[id].Status
}

// memChunks is a ChunkStore whose server-side routines can be switched off.
type memChunks struct {
	mu         sync.Mutex
	chunks     []domain.Chunk
	insertErr  func(domain.Chunk) error
	matchErr   error
	keywordErr error
	matchCalls int
}

func (s *memChunks) InsertChunk(_ context.Context, chunk domain.Chunk) error {
	if s.insertErr != nil {
		if err := s.insertErr(chunk); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks = append(s.chunks, chunk)
	return nil
}

func (s *memChunks) MatchChunks(_ context.Context, req domain.MatchRequest) ([]domain.ScoredChunk, error) {
	s.mu.Lock()
	s.matchCalls++
	s.mu.Unlock()
	if s.matchErr != nil {
		return nil, s.matchErr
	}
	chunks, _ := s.ListChunks(context.Background(), req.DocumentIDs, true)
	return rankBySimilarity(req.QueryVector, chunks, req.Count, &req.Threshold), nil
}

func (s *memChunks) ListChunks(_ context.Context, documentIDs []string, withEmbeddings bool) ([]domain.Chunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wanted := make(map[string]struct{}, len(documentIDs))
	for _, id := range documentIDs {
		wanted[id] = struct{}{}
	}
	out := make([]domain.Chunk, 0)
	for _, chunk := range s.chunks {
		if _, ok := wanted[chunk.DocumentID]; !ok {
			continue
		}
		if !withEmbeddings {
			chunk.Embedding = nil
		}
		out = append(out, chunk)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DocumentID != out[j].DocumentID {
			return out[i].DocumentID < out[j].DocumentID
		}
		return out[i].Index < out[j].Index
	})
	return out, nil
}

func (s *memChunks) KeywordMatch(ctx context.Context, documentID, query string, limit int) ([]domain.Chunk, error) {
	if s.keywordErr != nil {
		return nil, s.keywordErr
	}
	return s.FilterChunksContaining(ctx, documentID, query, limit)
}

func (s *memChunks) FilterChunksContaining(ctx context.Context, documentID, query string, limit int) ([]domain.Chunk, error) {
	chunks, _ := s.ListChunks(ctx, []string{documentID}, false)
	out := make([]domain.Chunk, 0)
	for _, chunk := range chunks {
		if strings.Contains(strings.ToLower(chunk.Text), strings.ToLower(query)) {
			out = append(out, chunk)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *memChunks) DeleteDocumentChunks(_ context.Context, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.chunks[:0]
	for _, chunk := range s.chunks {
		if chunk.DocumentID != documentID {
			kept = append(kept, chunk)
		}
	}
	s.chunks = kept
	return nil
}

func (s *memChunks) count(documentID string) int {
	chunks, _ := s.ListChunks(context.Background(), []string{documentID}, false)
	return len(chunks)
}

// keywordEmbedder maps text onto a small bag-of-words vector, so texts that
// share words are similar.
type keywordEmbedder struct {
	mu     sync.Mutex
	vocab  []string
	failOn string
	calls  int
}

func newKeywordEmbedder(vocab ...string) *keywordEmbedder {
	return &keywordEmbedder{vocab: vocab}
}

func (e *keywordEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()
	if e.failOn != "" && strings.Contains(text, e.failOn) {
		return nil, domain.WrapError(domain.ErrEmbedding, "embed", errors.New("backend rejected input"))
	}
	if strings.TrimSpace(text) == "" {
		return []float32{}, nil
	}
	lower := strings.ToLower(text)
	vector := make([]float32, len(e.vocab)+1)
	vector[len(e.vocab)] = 0.1
	for i, word := range e.vocab {
		if strings.Contains(lower, word) {
			vector[i] = 1
		}
	}
	return vector, nil
}

func (e *keywordEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vector, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = vector
	}
	return out, nil
}

func (e *keywordEmbedder) Dimension() int { return len(e.vocab) + 1 }

type generatorFake struct {
	calls        int
	lastQuestion string
	lastContext  string
	lastMode     domain.SummaryMode
	answer       string
	err          error
}

func (g *generatorFake) GenerateAnswer(_ context.Context, question, contextText string) (string, error) {
	g.calls++
	g.lastQuestion = question
	g.lastContext = contextText
	if g.err != nil {
		return "", g.err
	}
	if strings.TrimSpace(contextText) == "" {
		return domain.InsufficientContextAnswer, nil
	}
	if g.answer != "" {
		return g.answer, nil
	}
	return "answer from context", nil
}

func (g *generatorFake) Summarize(_ context.Context, content string, mode domain.SummaryMode, _ string) (string, error) {
	g.calls++
	g.lastContext = content
	g.lastMode = mode
	if g.err != nil {
		return "", g.err
	}
	if strings.TrimSpace(content) == "" {
		return domain.NothingToSummarizeText, nil
	}
	return string(mode) + " summary", nil
}

type memStorage struct {
	mu      sync.Mutex
	files   map[string][]byte
	saveErr error
	deleted []string
}

func newMemStorage() *memStorage {
	return &memStorage{files: make(map[string][]byte)}
}

func (s *memStorage) Save(_ context.Context, key string, data io.Reader) (int64, error) {
	if s.saveErr != nil {
		return 0, s.saveErr
	}
	raw, err := io.ReadAll(data)
	if err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[key] = raw
	return int64(len(raw)), nil
}

func (s *memStorage) Open(_ context.Context, key string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, ok := s.files[key]
	if !ok {
		return nil, fmt.Errorf("open %s: not found", key)
	}
	return io.NopCloser(bytes.NewReader(raw)), nil
}

func (s *memStorage) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, key)
	delete(s.files, key)
	return nil
}

type queueFake struct {
	jobs []domain.IngestJob
	err  error
}

func (q *queueFake) PublishIngestJob(_ context.Context, job domain.IngestJob) error {
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

func (q *queueFake) SubscribeIngestJobs(context.Context, func(context.Context, domain.IngestJob) error) error {
	return errors.New("not implemented")
}

type memQueryLog struct {
	entries []domain.QueryLogEntry
	err     error
}

func (l *memQueryLog) Record(_ context.Context, entry domain.QueryLogEntry) error {
	if l.err != nil {
		return l.err
	}
	l.entries = append(l.entries, entry)
	return nil
}

func (l *memQueryLog) ListByUser(_ context.Context, userID string, limit int) ([]domain.QueryLogEntry, error) {
	out := make([]domain.QueryLogEntry, 0)
	for i := len(l.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if l.entries[i].UserID == userID {
			out = append(out, l.entries[i])
		}
	}
	return out, nil
}

type extractorFake struct {
	text domain.ExtractedText
	err  error
}

func (f *extractorFake) Extract(context.Context, *domain.Document) (domain.ExtractedText, error) {
	return f.text, f.err
}

type chunkerFake struct {
	chunks []domain.Chunk
}

func (f *chunkerFake) Chunk(domain.ExtractedText) []domain.Chunk {
	out := make([]domain.Chunk, len(f.chunks))
	copy(out, f.chunks)
	return out
}

func textChunks(texts ...string) []domain.Chunk {
	out := make([]domain.Chunk, 0, len(texts))
	for i, text := range texts {
		out = append(out, domain.Chunk{Index: i, Text: text, LineStart: domain.IntPtr(i), LineEnd: domain.IntPtr(i)})
	}
	return out
}

type fallbackCounter struct {
	mu         sync.Mutex
	operations []string
}

func (c *fallbackCounter) RecordIndexFallback(operation string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.operations = append(c.operations, operation)
}
