// Package openaicompat implements the gateway's only wire protocol: the
// OpenAI-compatible chat completion exchange with bearer-token auth. It
// works with OpenRouter, OpenAI, Together, Ollama, and other compatible
// services.
package openaicompat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/tiergate/tiergate"
)

// Backend is an OpenAI-compatible completion transport.
type Backend struct {
	name       string
	baseURL    string
	httpClient *http.Client
}

var _ tiergate.Backend = (*Backend)(nil)

// Option configures the backend.
type Option func(*Backend)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(b *Backend) { b.httpClient = c }
}

// New creates a backend for any OpenAI-compatible base URL.
func New(name, baseURL string, opts ...Option) *Backend {
	b := &Backend{
		name:       name,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// NewOpenRouter creates a backend for OpenRouter.
func NewOpenRouter(opts ...Option) *Backend {
	return New("openrouter", "https://openrouter.ai/api/v1", opts...)
}

// NewOpenAI creates a backend for OpenAI.
func NewOpenAI(opts ...Option) *Backend {
	return New("openai", "https://api.openai.com/v1", opts...)
}

func (b *Backend) Name() string { return b.name }

// apiRequest is the chat completion request format.
type apiRequest struct {
	Model    string             `json:"model"`
	Messages []tiergate.Message `json:"messages"`
}

// apiResponse is the chat completion response format. Only the fields the
// core depends on are decoded; everything else a vendor adds is ignored.
type apiResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int64 `json:"prompt_tokens"`
		CompletionTokens int64 `json:"completion_tokens"`
	} `json:"usage"`
}

func (b *Backend) Complete(ctx context.Context, req tiergate.BackendRequest) (tiergate.BackendResponse, error) {
	body, err := json.Marshal(apiRequest{Model: req.Model, Messages: req.Messages})
	if err != nil {
		return tiergate.BackendResponse{}, fmt.Errorf("tiergate: marshal request: %w", err)
	}

	url := b.baseURL + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return tiergate.BackendResponse{}, fmt.Errorf("tiergate: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+req.Credential)

	httpResp, err := b.httpClient.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return tiergate.BackendResponse{}, tiergate.ErrBackendTimeout
		}
		return tiergate.BackendResponse{}, fmt.Errorf("%w: %v", tiergate.ErrBackendUnavailable, err)
	}
	defer httpResp.Body.Close()

	if err := mapHTTPError(httpResp); err != nil {
		return tiergate.BackendResponse{}, err
	}

	var resp apiResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return tiergate.BackendResponse{}, fmt.Errorf("%w: decode response: %v", tiergate.ErrBackendHTTP, err)
	}
	if len(resp.Choices) == 0 {
		return tiergate.BackendResponse{}, fmt.Errorf("%w: empty choices in response", tiergate.ErrBackendHTTP)
	}

	return tiergate.BackendResponse{
		ID:           resp.ID,
		Model:        resp.Model,
		Content:      resp.Choices[0].Message.Content,
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}, nil
}

func mapHTTPError(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	// Read a little of the body for error context.
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))

	switch resp.StatusCode {
	case http.StatusTooManyRequests:
		return tiergate.ErrBackendRateLimited
	case http.StatusUnauthorized, http.StatusForbidden:
		return tiergate.ErrAuthFailed
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return tiergate.ErrBackendTimeout
	default:
		return fmt.Errorf("%w: HTTP %d: %s", tiergate.ErrBackendHTTP, resp.StatusCode, string(body))
	}
}
