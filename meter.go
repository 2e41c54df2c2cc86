package tiergate

import "time"

// Meter observes dispatch events for monitoring and logging.
type Meter interface {
	// OnAttempt is called when a candidate is selected for a backend call.
	OnAttempt(event AttemptEvent)

	// OnResult is called once per query with the terminal outcome.
	OnResult(event ResultEvent)

	// OnCache is called for cache lookups and stores.
	OnCache(event CacheEvent)
}

// AttemptEvent describes one candidate selection.
type AttemptEvent struct {
	ID          string
	Model       string
	DisplayName string
	Tier        Tier
	Attempt     int
	EstimatedIn int64
}

// ResultEvent describes the terminal outcome of a query.
type ResultEvent struct {
	ID           string
	Model        string
	Tier         Tier
	Success      bool
	CacheHit     bool
	Duration     time.Duration
	InputTokens  int64
	OutputTokens int64
	Cost         float64
	Error        error
}

// CacheEvent describes a cache lookup or store.
type CacheEvent struct {
	ID    string
	Store bool // false = lookup
	Hit   bool
	Error error
}

// noopMeter is the default meter, doing nothing.
type noopMeter struct{}

func (noopMeter) OnAttempt(AttemptEvent) {}
func (noopMeter) OnResult(ResultEvent)   {}
func (noopMeter) OnCache(CacheEvent)     {}
