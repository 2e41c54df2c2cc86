package cache

import (
	"sync"

	"github.com/tiergate/tiergate"
)

// Manager owns one isolated Memory cache per conversation. Caches share
// the embedder but nothing else, so clearing one conversation never touches
// another.
type Manager struct {
	embedder tiergate.Embedder
	opts     []Option

	mu     sync.Mutex
	caches map[int64]*Memory
}

// NewManager creates a Manager. opts apply to every cache it creates.
func NewManager(embedder tiergate.Embedder, opts ...Option) *Manager {
	return &Manager{
		embedder: embedder,
		opts:     opts,
		caches:   make(map[int64]*Memory),
	}
}

// ForConversation returns the cache for a conversation, creating it lazily.
func (m *Manager) ForConversation(id int64) *Memory {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.caches[id]
	if !ok {
		c = New(m.embedder, m.opts...)
		m.caches[id] = c
	}
	return c
}

// Selector adapts the manager to the engine's cache-selector hook.
func (m *Manager) Selector() func(tiergate.Query) tiergate.Cache {
	return func(q tiergate.Query) tiergate.Cache {
		return m.ForConversation(q.Conversation)
	}
}

// Clear drops the cache of one conversation.
func (m *Manager) Clear(id int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.caches[id]; ok {
		c.Clear()
		delete(m.caches, id)
	}
}

// ClearAll drops every conversation cache.
func (m *Manager) ClearAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, c := range m.caches {
		c.Clear()
		delete(m.caches, id)
	}
}

// Size returns the number of live conversation caches.
func (m *Manager) Size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.caches)
}
