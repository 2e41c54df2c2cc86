package tiergate

import "context"

// Embedder maps text to a vector. Implementations must be stateless from
// the caller's point of view: the same text always yields the same vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Cache is a similarity-indexed store of prior (query, response) pairs.
// A lookup error never aborts a request: the engine degrades to always-miss.
type Cache interface {
	// Get returns the cached response whose stored query is most similar to
	// text, if that similarity is at least threshold. ok is false on a miss.
	Get(ctx context.Context, text string, threshold float64) (response string, ok bool, err error)

	// Set stores a (query, response) pair with the given TTL in seconds.
	// ttl <= 0 selects the cache's default TTL.
	Set(ctx context.Context, text, response string, ttl int) error
}
