// Package openai embeds text through an OpenAI-compatible /embeddings endpoint.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/didembi/documind/internal/core/domain"
	"github.com/didembi/documind/internal/infrastructure/resilience"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	defaultModel   = "text-embedding-3-small"
	defaultTimeout = 30 * time.Second
)

type Config struct {
	BaseURL   string
	APIKey    string
	Model     string
	Dimension int
	Timeout   time.Duration
	Executor  *resilience.Executor
}

type Embedder struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	executor   *resilience.Executor
	dimension  atomic.Int64
}

func New(cfg Config) (*Embedder, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("openai embedder: api key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	e := &Embedder{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		executor:   cfg.Executor,
	}
	e.dimension.Store(int64(cfg.Dimension))
	return e, nil
}

func (e *Embedder) Dimension() int {
	return int(e.dimension.Load())
}

func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	inputs := make([]string, 0, len(texts))
	positions := make([]int, 0, len(texts))
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			out[i] = []float32{}
			continue
		}
		inputs = append(inputs, text)
		positions = append(positions, i)
	}
	if len(inputs) == 0 {
		return out, nil
	}

	vectors, err := resilience.Call(ctx, e.executor, "openai.embed", func(callCtx context.Context) ([][]float32, error) {
		return e.request(callCtx, inputs)
	}, classifyError)
	if err != nil {
		return nil, domain.WrapError(domain.ErrEmbedding, "openai embed", err)
	}
	if len(vectors) != len(inputs) {
		return nil, domain.WrapError(domain.ErrEmbedding, "openai embed",
			fmt.Errorf("got %d vectors for %d inputs", len(vectors), len(inputs)))
	}
	for k, vector := range vectors {
		if len(vector) == 0 {
			return nil, domain.WrapError(domain.ErrEmbedding, "openai embed", errors.New("empty vector for non-empty input"))
		}
		e.dimension.CompareAndSwap(0, int64(len(vector)))
		if want := e.dimension.Load(); int64(len(vector)) != want {
			return nil, domain.WrapError(domain.ErrEmbedding, "openai embed",
				fmt.Errorf("vector dimension %d, want %d", len(vector), want))
		}
		out[positions[k]] = vector
	}
	return out, nil
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("openai embeddings status %d: %s", e.code, e.body)
}

func (e *Embedder) request(ctx context.Context, inputs []string) ([][]float32, error) {
	body, err := json.Marshal(map[string]any{"model": e.model, "input": inputs})
	if err != nil {
		return nil, fmt.Errorf("marshal embeddings request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create embeddings request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.apiKey)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embeddings request: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return nil, fmt.Errorf("read embeddings response: %w", err)
	}
	if resp.StatusCode >= 300 {
		snippet := strings.TrimSpace(string(payload))
		if len(snippet) > 512 {
			snippet = snippet[:512]
		}
		return nil, &statusError{code: resp.StatusCode, body: snippet}
	}
	return decodeVectors(payload)
}

// decodeVectors accepts {"data":[{"index","embedding"}]} and the single
// {"embedding":[...]} form some compatible servers return.
func decodeVectors(payload []byte) ([][]float32, error) {
	var parsed struct {
		Data []struct {
			Index     int       `json:"index"`
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
		Embedding []float32 `json:"embedding"`
	}
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return nil, fmt.Errorf("decode embeddings response: %w", err)
	}
	if len(parsed.Data) > 0 {
		sort.SliceStable(parsed.Data, func(i, j int) bool { return parsed.Data[i].Index < parsed.Data[j].Index })
		out := make([][]float32, 0, len(parsed.Data))
		for _, item := range parsed.Data {
			out = append(out, item.Embedding)
		}
		return out, nil
	}
	if len(parsed.Embedding) > 0 {
		return [][]float32{parsed.Embedding}, nil
	}
	return nil, errors.New("embeddings response has no vectors")
}

func classifyError(err error) resilience.ErrorClassification {
	if errors.Is(err, context.Canceled) {
		return resilience.ErrorClassification{}
	}
	var status *statusError
	if errors.As(err, &status) {
		retryable := status.code == http.StatusTooManyRequests || status.code >= 500
		return resilience.ErrorClassification{Retryable: retryable, RecordFailure: retryable}
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}
	return resilience.ErrorClassification{Retryable: false, RecordFailure: true}
}
