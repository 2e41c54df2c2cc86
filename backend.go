package tiergate

import "context"

// Backend is the transport to a remote completion service. Implementations
// are opaque HTTP adapters; the adapter drives retries and fallback above
// this interface.
type Backend interface {
	// Name returns the backend identifier (e.g. "openrouter").
	Name() string

	// Complete performs one completion call for a single model.
	Complete(ctx context.Context, req BackendRequest) (BackendResponse, error)
}

// BackendRequest is one call to a Backend.
type BackendRequest struct {
	Credential string
	Model      string
	Messages   []Message
}

// BackendResponse is the parsed completion result.
type BackendResponse struct {
	ID           string
	Model        string
	Content      string
	InputTokens  int64
	OutputTokens int64
}
