package ollama

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/didembi/documind/internal/infrastructure/resilience"
)

const defaultTimeout = 120 * time.Second

// Client is the shared transport for generation and embedding calls against
// an Ollama server.
type Client struct {
	baseURL    string
	genModel   string
	embedModel string
	httpClient *http.Client
	executor   *resilience.Executor
}

type Options struct {
	Timeout            time.Duration
	ResilienceExecutor *resilience.Executor
}

func New(baseURL, genModel, embedModel string) *Client {
	return NewWithOptions(baseURL, genModel, embedModel, Options{})
}

func NewWithOptions(baseURL, genModel, embedModel string, options Options) *Client {
	timeout := options.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		genModel:   genModel,
		embedModel: embedModel,
		httpClient: &http.Client{Timeout: timeout},
		executor:   options.ResilienceExecutor,
	}
}

// Ping checks that the server answers its model listing endpoint.
func (c *Client) Ping(ctx context.Context) error {
	var out struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := c.getJSON(ctx, "/api/tags", &out, "tags"); err != nil {
		return classifyGenerationFailure("ollama ping", c.baseURL, err)
	}
	return nil
}
