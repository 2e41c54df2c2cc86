package tiergate

import "time"

// Query is one incoming request. It is created per request and discarded
// after the result is produced.
type Query struct {
	Text string

	// Optional identity. UserID identifies an authenticated user, SessionID
	// an anonymous session, Address the remote network address.
	UserID    string
	SessionID string
	Address   string

	// Plan is the subscription tier used by admission control
	// (free/basic/premium/enterprise). Empty means free.
	Plan string

	// Conversation scopes the semantic cache. Zero means the shared cache.
	Conversation int64

	Arrival time.Time
}

// Identity returns the most specific identifier available for rate limiting.
func (q Query) Identity() string {
	switch {
	case q.UserID != "":
		return q.UserID
	case q.SessionID != "":
		return q.SessionID
	default:
		return q.Address
	}
}

// Message is a single chat message in the backend wire format.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Candidate is one backend model eligible for a tier, with its mutable
// ranking score. Candidates are owned by the Registry; the engine only sees
// ordered snapshot copies.
type Candidate struct {
	DisplayName string
	Identifier  string
	Tier        Tier
	Score       int
}

// Override is a caller-supplied private candidate for a single request.
// It is prepended to that tier's ranked snapshot for one query only and
// never leaks into other requests.
type Override struct {
	DisplayName string
	Identifier  string
	Credential  string
}

// DispatchResult is the record produced for one query, consumed by
// persistence and monitoring layers outside this module.
type DispatchResult struct {
	ID             string
	Success        bool
	Response       string
	Classification string
	Tier           Tier
	ModelUsed      string
	CacheHit       bool
	RetryCount     int
	Err            error
	Cost           float64
	Latency        time.Duration
}

// Invocation is a successful backend call as reported by the Adapter.
type Invocation struct {
	Model        string
	DisplayName  string
	Content      string
	InputTokens  int64
	OutputTokens int64
	Cost         float64
	Latency      time.Duration
}
