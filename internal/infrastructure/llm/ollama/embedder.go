package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/didembi/documind/internal/core/domain"
	"github.com/didembi/documind/internal/infrastructure/resilience"
)

// Embedder calls /api/embed. Blank inputs map to empty vectors and never
// reach the server.
type Embedder struct {
	client    *Client
	dimension atomic.Int64
}

// NewEmbedder returns an embedder that checks every vector against
// dimension. A zero dimension is learned from the first response.
func NewEmbedder(client *Client, dimension int) *Embedder {
	e := &Embedder{client: client}
	e.dimension.Store(int64(dimension))
	return e
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

// EmbedBatch returns one vector per input, in input order.
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

	vectors, err := resilience.Call(ctx, e.client.executor, "ollama.embed", func(callCtx context.Context) ([][]float32, error) {
		var raw json.RawMessage
		request := map[string]any{
			"model": e.client.embedModel,
			"input": inputs,
		}
		if err := e.client.postJSON(callCtx, "/api/embed", request, &raw, "embed"); err != nil {
			return nil, err
		}
		vectors, err := decodeEmbeddings(raw)
		if err != nil {
			return nil, &malformedResponseError{operation: "embed", err: err}
		}
		return vectors, nil
	}, classifyOllamaError)
	if err != nil {
		return nil, domain.WrapError(domain.ErrEmbedding, "ollama embed", err)
	}
	if len(vectors) != len(inputs) {
		return nil, domain.WrapError(domain.ErrEmbedding, "ollama embed",
			fmt.Errorf("got %d vectors for %d inputs", len(vectors), len(inputs)))
	}

	for k, vector := range vectors {
		if err := e.checkDimension(vector); err != nil {
			return nil, domain.WrapError(domain.ErrEmbedding, "ollama embed", err)
		}
		out[positions[k]] = vector
	}
	return out, nil
}

func (e *Embedder) checkDimension(vector []float32) error {
	if len(vector) == 0 {
		return fmt.Errorf("empty vector for non-empty input")
	}
	want := e.dimension.Load()
	if want == 0 && e.dimension.CompareAndSwap(0, int64(len(vector))) {
		return nil
	}
	want = e.dimension.Load()
	if int64(len(vector)) != want {
		return fmt.Errorf("vector dimension %d, want %d", len(vector), want)
	}
	return nil
}
