// Package embed provides embedding functions for the semantic cache.
package embed

import (
	"context"
	"hash/fnv"
	"math"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/tiergate/tiergate"
)

// DefaultDimensions is the vector size of the hashing embedder.
const DefaultDimensions = 256

// Hashing is a pure, deterministic feature-hash embedder: each token is
// hashed to a signed bucket and the vector is L2-normalized. It has no
// mutable state, so the same text always yields the same vector and
// self-similarity is exactly 1.0. Suitable for tests and offline use; swap
// in a real embedding backend for semantic quality.
type Hashing struct {
	Dimensions int
}

var _ tiergate.Embedder = Hashing{}

func (h Hashing) Embed(_ context.Context, text string) ([]float32, error) {
	dim := h.Dimensions
	if dim <= 0 {
		dim = DefaultDimensions
	}

	vec := make([]float32, dim)
	for _, token := range strings.Fields(strings.ToLower(text)) {
		f := fnv.New64a()
		f.Write([]byte(token))
		sum := f.Sum64()

		bucket := int(sum % uint64(dim))
		// One hash bit decides the sign so unrelated tokens cancel rather
		// than pile up in the same direction.
		if sum&(1<<63) != 0 {
			vec[bucket]--
		} else {
			vec[bucket]++
		}
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		inv := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= inv
		}
	}
	return vec, nil
}

// Memoized wraps an Embedder with an LRU cache keyed by the exact text, so
// repeated queries do not re-run the (possibly remote) embedding call.
type Memoized struct {
	inner tiergate.Embedder
	cache *lru.Cache[string, []float32]
}

var _ tiergate.Embedder = (*Memoized)(nil)

// NewMemoized creates a memoizing wrapper holding up to size vectors.
func NewMemoized(inner tiergate.Embedder, size int) (*Memoized, error) {
	c, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, err
	}
	return &Memoized{inner: inner, cache: c}, nil
}

func (m *Memoized) Embed(ctx context.Context, text string) ([]float32, error) {
	if vec, ok := m.cache.Get(text); ok {
		return vec, nil
	}
	vec, err := m.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	m.cache.Add(text, vec)
	return vec, nil
}
