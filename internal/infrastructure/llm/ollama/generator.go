package ollama

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/didembi/documind/internal/core/domain"
	"github.com/didembi/documind/internal/infrastructure/resilience"
)

const (
	summaryShortNumPredict = 512
	summaryLongNumPredict  = 1536
)

type GeneratorOptions struct {
	Temperature float64
	TopP        float64
	NumPredict  int
	// SmalltalkIgnoresContext answers greetings with a canned reply even
	// when retrieval found context. By default only an empty context does.
	SmalltalkIgnoresContext bool
}

func DefaultGeneratorOptions() GeneratorOptions {
	return GeneratorOptions{
		Temperature: 0.3,
		TopP:        0.9,
		NumPredict:  1024,
	}
}

type Generator struct {
	client  *Client
	options GeneratorOptions
}

func NewGenerator(client *Client, options GeneratorOptions) *Generator {
	def := DefaultGeneratorOptions()
	if options.Temperature < 0 {
		options.Temperature = def.Temperature
	}
	if options.TopP <= 0 || options.TopP > 1 {
		options.TopP = def.TopP
	}
	if options.NumPredict <= 0 {
		options.NumPredict = def.NumPredict
	}
	return &Generator{client: client, options: options}
}

func (g *Generator) GenerateAnswer(ctx context.Context, question, contextText string) (string, error) {
	emptyContext := strings.TrimSpace(contextText) == ""
	if emptyContext || g.options.SmalltalkIgnoresContext {
		if reply, ok := domain.SmalltalkReply(question); ok {
			return reply, nil
		}
	}
	if emptyContext {
		return domain.InsufficientContextAnswer, nil
	}
	return g.generate(ctx, "ollama generate answer", buildAnswerPrompt(question, contextText), g.options.NumPredict)
}

func (g *Generator) Summarize(ctx context.Context, content string, mode domain.SummaryMode, documentName string) (string, error) {
	prompt, err := buildSummaryPrompt(content, mode, documentName)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(content) == "" {
		return domain.NothingToSummarizeText, nil
	}
	numPredict := summaryShortNumPredict
	if mode == domain.SummaryLong {
		numPredict = summaryLongNumPredict
	}
	return g.generate(ctx, "ollama summarize", prompt, numPredict)
}

func (g *Generator) generate(ctx context.Context, operation, prompt string, numPredict int) (string, error) {
	request := map[string]any{
		"model":  g.client.genModel,
		"prompt": prompt,
		"stream": false,
		"options": map[string]any{
			"temperature": g.options.Temperature,
			"top_p":       g.options.TopP,
			"num_predict": numPredict,
		},
	}

	raw, err := resilience.Call(ctx, g.client.executor, "ollama.generate", func(callCtx context.Context) (json.RawMessage, error) {
		var raw json.RawMessage
		if err := g.client.postJSON(callCtx, "/api/generate", request, &raw, "generate"); err != nil {
			return nil, err
		}
		return raw, nil
	}, classifyOllamaError)
	if err != nil {
		return "", classifyGenerationFailure(operation, g.client.baseURL, err)
	}
	return decodeGeneration(operation, raw)
}
