// Package cache provides the in-memory semantic cache: an embedding
// similarity store of prior (query, response) pairs with per-entry TTL.
package cache

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/tiergate/tiergate"
)

// Memory is an in-memory Cache. Entries are immutable once written and
// removed only by TTL expiry or Clear. Prune and append are serialized
// under the cache lock; similarity matching runs on a copied snapshot so
// no lock is held while the embedder computes.
type Memory struct {
	embedder   tiergate.Embedder
	defaultTTL time.Duration

	mu      sync.Mutex
	entries []entry
	now     func() time.Time
}

type entry struct {
	vector   []float32
	response string
	inserted time.Time
	ttl      time.Duration
}

var _ tiergate.Cache = (*Memory)(nil)

// Option configures a Memory cache.
type Option func(*Memory)

// WithDefaultTTL sets the entry lifetime used when Set gets ttl <= 0.
func WithDefaultTTL(d time.Duration) Option {
	return func(m *Memory) { m.defaultTTL = d }
}

// New creates a Memory cache over an embedder.
func New(embedder tiergate.Embedder, opts ...Option) *Memory {
	m := &Memory{
		embedder:   embedder,
		defaultTTL: time.Duration(tiergate.DefaultCacheTTL) * time.Second,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Get returns the response of the most similar live entry if its cosine
// similarity reaches threshold. Ties keep the first-encountered entry.
func (m *Memory) Get(ctx context.Context, text string, threshold float64) (string, bool, error) {
	live := m.snapshot()
	if len(live) == 0 {
		return "", false, nil
	}

	vec, err := m.embedder.Embed(ctx, text)
	if err != nil {
		return "", false, fmt.Errorf("%w: embed: %v", tiergate.ErrCacheUnavailable, err)
	}

	bestScore := math.Inf(-1)
	bestIdx := -1
	for i, e := range live {
		if score := cosine(vec, e.vector); score > bestScore {
			bestScore = score
			bestIdx = i
		}
	}

	if bestIdx < 0 || bestScore < threshold {
		return "", false, nil
	}
	return live[bestIdx].response, true, nil
}

// Set embeds the query and appends the pair synchronously.
func (m *Memory) Set(ctx context.Context, text, response string, ttl int) error {
	vec, err := m.embedder.Embed(ctx, text)
	if err != nil {
		return fmt.Errorf("%w: embed: %v", tiergate.ErrCacheUnavailable, err)
	}

	d := m.defaultTTL
	if ttl > 0 {
		d = time.Duration(ttl) * time.Second
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry{
		vector:   vec,
		response: response,
		inserted: m.now(),
		ttl:      d,
	})
	return nil
}

// snapshot prunes expired entries and returns a copy of the live ones.
func (m *Memory) snapshot() []entry {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	live := m.entries[:0]
	for _, e := range m.entries {
		if now.Sub(e.inserted) <= e.ttl {
			live = append(live, e)
		}
	}
	m.entries = live

	out := make([]entry, len(live))
	copy(out, live)
	return out
}

// Len prunes and returns the number of live entries.
func (m *Memory) Len() int {
	return len(m.snapshot())
}

// Clear removes every entry.
func (m *Memory) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = nil
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
