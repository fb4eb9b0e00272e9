package ollama

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/didembi/documind/internal/core/domain"
)

// generationEnvelope covers the response shapes accepted from a generation
// backend: Ollama generate, Ollama chat and OpenAI-style completions.
type generationEnvelope struct {
	Response *string `json:"response"`
	Message  *struct {
		Content string `json:"content"`
	} `json:"message"`
	Choices []struct {
		Message *struct {
			Content string `json:"content"`
		} `json:"message"`
		Text string `json:"text"`
	} `json:"choices"`
	Error string `json:"error"`
}

type generationShape struct {
	name    string
	extract func(generationEnvelope) (string, bool)
}

var generationShapes = []generationShape{
	{name: "generate", extract: func(env generationEnvelope) (string, bool) {
		if env.Response == nil {
			return "", false
		}
		return *env.Response, strings.TrimSpace(*env.Response) != ""
	}},
	{name: "chat", extract: func(env generationEnvelope) (string, bool) {
		if env.Message == nil {
			return "", false
		}
		return env.Message.Content, strings.TrimSpace(env.Message.Content) != ""
	}},
	{name: "completion", extract: func(env generationEnvelope) (string, bool) {
		if len(env.Choices) == 0 {
			return "", false
		}
		choice := env.Choices[0]
		if choice.Message != nil && strings.TrimSpace(choice.Message.Content) != "" {
			return choice.Message.Content, true
		}
		return choice.Text, strings.TrimSpace(choice.Text) != ""
	}},
}

// decodeGeneration returns the answer text of the first matching shape.
func decodeGeneration(operation string, raw json.RawMessage) (string, error) {
	var env generationEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return "", domain.WrapError(domain.ErrMalformedResponse, operation, fmt.Errorf("unexpected response body: %w", err))
	}
	if env.Error != "" {
		return "", domain.WrapError(domain.ErrLLMUnavailable, operation, errors.New(env.Error))
	}
	for _, shape := range generationShapes {
		if text, ok := shape.extract(env); ok {
			return strings.TrimSpace(text), nil
		}
	}
	return "", domain.WrapError(domain.ErrMalformedResponse, operation, fmt.Errorf("unexpected response format: %s", truncateForError(raw)))
}

type embeddingEnvelope struct {
	Embeddings [][]float32 `json:"embeddings"`
	Embedding  []float32   `json:"embedding"`
	Data       []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

type embeddingShape struct {
	name    string
	extract func(embeddingEnvelope) [][]float32
}

var embeddingShapes = []embeddingShape{
	{name: "embeddings", extract: func(env embeddingEnvelope) [][]float32 {
		return env.Embeddings
	}},
	{name: "embedding", extract: func(env embeddingEnvelope) [][]float32 {
		if len(env.Embedding) == 0 {
			return nil
		}
		return [][]float32{env.Embedding}
	}},
	{name: "data", extract: func(env embeddingEnvelope) [][]float32 {
		if len(env.Data) == 0 {
			return nil
		}
		items := env.Data
		sort.SliceStable(items, func(i, j int) bool { return items[i].Index < items[j].Index })
		out := make([][]float32, 0, len(items))
		for _, item := range items {
			out = append(out, item.Embedding)
		}
		return out
	}},
}

// decodeEmbeddings tries each known embedding response shape in order.
func decodeEmbeddings(raw json.RawMessage) ([][]float32, error) {
	var env embeddingEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("unexpected embedding response body: %w", err)
	}
	for _, shape := range embeddingShapes {
		if vectors := shape.extract(env); len(vectors) > 0 {
			return vectors, nil
		}
	}
	return nil, fmt.Errorf("unrecognized embedding response shape: %s", truncateForError(raw))
}

func truncateForError(raw []byte) string {
	const max = 200
	s := strings.TrimSpace(string(raw))
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
