package openaicompat

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tiergate/tiergate"
)

func TestComplete_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req apiRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "meta-llama/llama-3.3-8b-instruct:free", req.Model)
		require.Len(t, req.Messages, 1)
		assert.Equal(t, "user", req.Messages[0].Role)

		json.NewEncoder(w).Encode(map[string]any{
			"id":    "gen-123",
			"model": req.Model,
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": "Paris"}},
			},
			"usage": map[string]any{"prompt_tokens": 12, "completion_tokens": 3},
		})
	}))
	defer srv.Close()

	b := New("test", srv.URL+"/v1")
	resp, err := b.Complete(context.Background(), tiergate.BackendRequest{
		Credential: "sk-test",
		Model:      "meta-llama/llama-3.3-8b-instruct:free",
		Messages:   []tiergate.Message{{Role: "user", Content: "What is the capital of France?"}},
	})
	require.NoError(t, err)

	assert.Equal(t, "gen-123", resp.ID)
	assert.Equal(t, "Paris", resp.Content)
	assert.EqualValues(t, 12, resp.InputTokens)
	assert.EqualValues(t, 3, resp.OutputTokens)
}

func TestComplete_StatusMapping(t *testing.T) {
	cases := []struct {
		status int
		want   error
	}{
		{http.StatusTooManyRequests, tiergate.ErrBackendRateLimited},
		{http.StatusUnauthorized, tiergate.ErrAuthFailed},
		{http.StatusForbidden, tiergate.ErrAuthFailed},
		{http.StatusRequestTimeout, tiergate.ErrBackendTimeout},
		{http.StatusGatewayTimeout, tiergate.ErrBackendTimeout},
		{http.StatusInternalServerError, tiergate.ErrBackendHTTP},
		{http.StatusBadRequest, tiergate.ErrBackendHTTP},
	}

	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "upstream said no", tc.status)
		}))

		b := New("test", srv.URL)
		_, err := b.Complete(context.Background(), tiergate.BackendRequest{Model: "m"})
		assert.ErrorIs(t, err, tc.want, "status %d", tc.status)

		srv.Close()
	}
}

func TestComplete_EmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"id": "gen-1", "choices": []any{}})
	}))
	defer srv.Close()

	b := New("test", srv.URL)
	_, err := b.Complete(context.Background(), tiergate.BackendRequest{Model: "m"})
	assert.ErrorIs(t, err, tiergate.ErrBackendHTTP)
}

func TestComplete_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer srv.Close()

	b := New("test", srv.URL)
	_, err := b.Complete(context.Background(), tiergate.BackendRequest{Model: "m"})
	assert.ErrorIs(t, err, tiergate.ErrBackendHTTP)
}

func TestComplete_DeadlineMapsToTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Drain the body so the server's background read can observe the
		// client disconnect and cancel the request context; otherwise the
		// handler never returns and srv.Close deadlocks.
		io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	b := New("test", srv.URL)
	_, err := b.Complete(ctx, tiergate.BackendRequest{Model: "m"})
	assert.ErrorIs(t, err, tiergate.ErrBackendTimeout)
}

func TestComplete_ConnectionRefused(t *testing.T) {
	b := New("test", "http://127.0.0.1:1")
	_, err := b.Complete(context.Background(), tiergate.BackendRequest{Model: "m"})
	assert.ErrorIs(t, err, tiergate.ErrBackendUnavailable)
}

func TestNew_TrimsTrailingSlash(t *testing.T) {
	b := New("test", "https://example.com/v1/")
	assert.Equal(t, "https://example.com/v1", b.baseURL)
	assert.Equal(t, "test", b.Name())
}

func TestPresets(t *testing.T) {
	assert.Equal(t, "openrouter", NewOpenRouter().Name())
	assert.Equal(t, "openai", NewOpenAI().Name())
}
