// Package genai provides an Embedder backed by the Google GenAI embedding
// API. Credentials come from the environment (GEMINI_API_KEY / GOOGLE_API_KEY),
// matching the SDK's defaults.
package genai

import (
	"context"
	"fmt"

	gai "google.golang.org/genai"

	"github.com/tiergate/tiergate"
)

// DefaultModel is the embedding model used when none is configured.
const DefaultModel = "gemini-embedding-001"

// Embedder computes embeddings via the GenAI API.
type Embedder struct {
	client *gai.Client
	model  string
}

var _ tiergate.Embedder = (*Embedder)(nil)

// New creates an Embedder. An empty model selects DefaultModel.
func New(ctx context.Context, model string) (*Embedder, error) {
	if model == "" {
		model = DefaultModel
	}
	cli, err := gai.NewClient(ctx, &gai.ClientConfig{Backend: gai.BackendGeminiAPI})
	if err != nil {
		return nil, fmt.Errorf("tiergate: genai embedder: %w", err)
	}
	return &Embedder{client: cli, model: model}, nil
}

func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.client.Models.EmbedContent(ctx, e.model,
		[]*gai.Content{{Parts: []*gai.Part{{Text: text}}}}, nil)
	if err != nil {
		return nil, fmt.Errorf("tiergate: genai embed: %w", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
		return nil, fmt.Errorf("tiergate: genai embed: empty embedding in response")
	}
	return resp.Embeddings[0].Values, nil
}
