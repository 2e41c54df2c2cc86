package tiergate

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultMaxRetriesPerModel bounds how many times the engine may select
	// each candidate of a tier before the retry budget is exhausted.
	DefaultMaxRetriesPerModel = 3

	// DefaultCacheThreshold is the minimum cosine similarity for a cache
	// hit. Deliberately a tunable, not a validated constant: sentence
	// embedding spaces usually want something higher.
	DefaultCacheThreshold = 0.5

	// DefaultCacheTTL is the default cache entry lifetime in seconds.
	DefaultCacheTTL = 3600
)

// Engine is the per-query dispatch state machine composing the semantic
// cache, classifier, registry, and backend adapter. All shared state lives
// in the injected components; the engine itself holds only configuration
// and is safe for concurrent use.
type Engine struct {
	classifier Classifier
	registry   *Registry
	adapter    *Adapter
	cacheFor   func(Query) Cache
	meter      Meter

	maxRetries int
	threshold  float64
	ttl        int
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithClassifier replaces the default heuristic classifier.
func WithClassifier(c Classifier) EngineOption {
	return func(e *Engine) { e.classifier = c }
}

// WithCache sets a single semantic cache shared by all queries.
func WithCache(c Cache) EngineOption {
	return func(e *Engine) { e.cacheFor = func(Query) Cache { return c } }
}

// WithCacheSelector routes each query to a cache instance, e.g. one per
// conversation. Returning nil degrades that query to always-miss.
func WithCacheSelector(fn func(Query) Cache) EngineOption {
	return func(e *Engine) { e.cacheFor = fn }
}

// WithMeter sets the meter.
func WithMeter(m Meter) EngineOption {
	return func(e *Engine) { e.meter = m }
}

// WithMaxRetriesPerModel sets the engine retry budget multiplier.
func WithMaxRetriesPerModel(n int) EngineOption {
	return func(e *Engine) { e.maxRetries = n }
}

// WithCacheThreshold sets the similarity threshold for cache hits.
func WithCacheThreshold(t float64) EngineOption {
	return func(e *Engine) { e.threshold = t }
}

// WithCacheTTL sets the TTL in seconds for stored responses.
func WithCacheTTL(seconds int) EngineOption {
	return func(e *Engine) { e.ttl = seconds }
}

// NewEngine creates an Engine. The registry and adapter are required; the
// cache is optional (no cache means every lookup is a miss).
func NewEngine(registry *Registry, adapter *Adapter, opts ...EngineOption) (*Engine, error) {
	if registry == nil {
		return nil, fmt.Errorf("tiergate: engine: registry is required")
	}
	if adapter == nil {
		return nil, fmt.Errorf("tiergate: engine: adapter is required")
	}

	e := &Engine{
		classifier: HeuristicClassifier{},
		registry:   registry,
		adapter:    adapter,
		cacheFor:   func(Query) Cache { return nil },
		meter:      noopMeter{},
		maxRetries: DefaultMaxRetriesPerModel,
		threshold:  DefaultCacheThreshold,
		ttl:        DefaultCacheTTL,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// DispatchOption configures a single dispatch.
type DispatchOption func(*dispatchOptions)

type dispatchOptions struct {
	overrides []Override
}

// WithOverrides prepends caller-supplied private candidates (and their
// credentials) to the tier's ranked list for this query only.
func WithOverrides(ovs ...Override) DispatchOption {
	return func(o *dispatchOptions) { o.overrides = append(o.overrides, ovs...) }
}

// Dispatch runs one query through the state machine and returns its result
// record. The result always carries a terminal outcome; errors are reported
// in the record, never panicked.
func (e *Engine) Dispatch(ctx context.Context, q Query, opts ...DispatchOption) DispatchResult {
	var dopts dispatchOptions
	for _, opt := range opts {
		opt(&dopts)
	}

	start := time.Now()
	st := &dispatchState{
		id:    uuid.New().String(),
		query: q,
		state: StateCheckCache,
	}
	creds := e.requestResolver(dopts.overrides)
	cache := e.cacheFor(q)

	for !st.state.terminal() {
		switch st.state {
		case StateCheckCache:
			st.state = transition(st.state, e.checkCache(ctx, cache, st))
		case StateClassify:
			st.state = transition(st.state, e.classify(st))
		case StateSelectModel:
			st.state = transition(st.state, e.selectModel(st, dopts.overrides, creds))
		case StateCallBackend:
			ok := e.callBackend(ctx, st, creds)
			if ctx.Err() != nil {
				// Caller cancellation stops further retries promptly.
				st.err = ctx.Err()
				st.state = StateFailed
				continue
			}
			st.state = transition(st.state, ok)
		case StateStoreCache:
			st.state = transition(st.state, e.storeCache(ctx, cache, st))
		}
	}

	return e.finish(st, start)
}

// requestResolver layers per-request override credentials over the
// adapter's resolver. The overlay is discarded with the request.
func (e *Engine) requestResolver(overrides []Override) CredentialResolver {
	if len(overrides) == 0 {
		return e.adapter.Resolver()
	}
	m := make(map[string]string, len(overrides))
	for _, ov := range overrides {
		if ov.Credential != "" {
			m[ov.Identifier] = ov.Credential
		}
	}
	return overlayResolver{overrides: m, base: e.adapter.Resolver()}
}

func (e *Engine) checkCache(ctx context.Context, cache Cache, st *dispatchState) bool {
	if cache == nil {
		return false
	}
	response, ok, err := cache.Get(ctx, st.query.Text, e.threshold)
	e.meter.OnCache(CacheEvent{ID: st.id, Hit: ok, Error: err})
	if err != nil {
		// Cache trouble degrades to a miss, never a failure.
		return false
	}
	if !ok {
		return false
	}
	st.cacheHit = true
	st.response = response
	return true
}

func (e *Engine) classify(st *dispatchState) bool {
	tier, err := e.classifier.Classify(st.query.Text)
	if err != nil {
		st.err = err
		return false
	}
	// Classification is immutable for the rest of this query.
	st.tier = tier
	st.classified = true
	return true
}

// selectModel picks candidate retry_count mod N from the snapshot taken at
// the first selection, then advances the counter. It fails terminally on an
// empty tier or once the budget of N * maxRetriesPerModel selections is
// spent.
func (e *Engine) selectModel(st *dispatchState, overrides []Override, creds CredentialResolver) bool {
	if st.candidates == nil {
		st.candidates = e.buildCandidates(st.tier, overrides, creds)
		if len(st.candidates) == 0 {
			st.err = ErrNoCandidates
			return false
		}
	}

	budget := len(st.candidates) * e.maxRetries
	if st.retryCount >= budget {
		if last := st.err; last != nil {
			st.err = fmt.Errorf("%w after %d attempts: %w", ErrRetryBudget, st.retryCount, last)
		} else {
			st.err = fmt.Errorf("%w after %d attempts", ErrRetryBudget, st.retryCount)
		}
		return false
	}

	st.selected = st.candidates[st.retryCount%len(st.candidates)]
	st.retryCount++
	return true
}

// buildCandidates snapshots the tier's ranked list, prepends per-request
// overrides, and drops candidates with no resolvable credential so they
// never consume retry budget.
func (e *Engine) buildCandidates(tier Tier, overrides []Override, creds CredentialResolver) []Candidate {
	ranked := e.registry.Snapshot(tier)

	all := make([]Candidate, 0, len(overrides)+len(ranked))
	for _, ov := range overrides {
		all = append(all, Candidate{
			DisplayName: ov.DisplayName,
			Identifier:  ov.Identifier,
			Tier:        tier,
		})
	}
	all = append(all, ranked...)

	callable := all[:0]
	for _, c := range all {
		if _, ok := resolveCredential(creds, c.Identifier); ok {
			callable = append(callable, c)
		}
	}
	return callable
}

func (e *Engine) callBackend(ctx context.Context, st *dispatchState, creds CredentialResolver) bool {
	e.meter.OnAttempt(AttemptEvent{
		ID:          st.id,
		Model:       st.selected.Identifier,
		DisplayName: st.selected.DisplayName,
		Tier:        st.tier,
		Attempt:     st.retryCount,
		EstimatedIn: EstimateTokens([]Message{{Role: "user", Content: st.query.Text}}),
	})

	inv, err := e.adapter.InvokeOnce(ctx, st.selected, st.query.Text, creds)
	if err != nil {
		st.err = err
		return false
	}

	st.invocation = inv
	st.response = inv.Content
	st.err = nil
	return true
}

func (e *Engine) storeCache(ctx context.Context, cache Cache, st *dispatchState) bool {
	if cache == nil || st.cacheHit {
		return true
	}
	err := cache.Set(ctx, st.query.Text, st.response, e.ttl)
	e.meter.OnCache(CacheEvent{ID: st.id, Store: true, Error: err})
	return err == nil
}

func (e *Engine) finish(st *dispatchState, start time.Time) DispatchResult {
	res := DispatchResult{
		ID:         st.id,
		Success:    st.state == StateDone,
		Response:   st.response,
		Tier:       st.tier,
		CacheHit:   st.cacheHit,
		RetryCount: st.retryCount,
		Cost:       st.invocation.Cost,
		Latency:    time.Since(start),
	}
	if st.classified {
		res.Classification = st.tier.Label()
	}
	if st.invocation.Model != "" {
		res.ModelUsed = st.invocation.Model
	} else if st.retryCount > 0 {
		// Terminal failure still names the last candidate attempted so
		// usage stats can count the failure.
		res.ModelUsed = st.selected.Identifier
	}
	if !res.Success {
		res.Response = ""
		res.Err = &DispatchError{
			Err:      st.err,
			Tier:     st.tier,
			Model:    st.selected.Identifier,
			Attempts: st.retryCount,
		}
	}

	ev := ResultEvent{
		ID:       res.ID,
		Model:    res.ModelUsed,
		Tier:     res.Tier,
		Success:  res.Success,
		CacheHit: res.CacheHit,
		Duration: res.Latency,
		Cost:     res.Cost,
		Error:    res.Err,
	}
	if res.Success && !res.CacheHit {
		ev.InputTokens = st.invocation.InputTokens
		ev.OutputTokens = st.invocation.OutputTokens
	}
	e.meter.OnResult(ev)

	return res
}
