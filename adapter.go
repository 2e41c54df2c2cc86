package tiergate

import (
	"context"
	"errors"
	"time"
)

const (
	defaultAttemptsPerCandidate = 2
	defaultCallTimeout          = 30 * time.Second
	defaultBackoff              = time.Second
)

// Adapter executes backend calls for ranked candidates with per-call
// timeout, bounded retries, backoff, and cost accounting.
type Adapter struct {
	backend  Backend
	prices   PriceTable
	creds    CredentialResolver
	attempts int
	timeout  time.Duration
	backoff  time.Duration
}

// AdapterOption configures an Adapter.
type AdapterOption func(*Adapter)

// WithAttemptsPerCandidate sets how many times one candidate is tried
// before moving to the next.
func WithAttemptsPerCandidate(n int) AdapterOption {
	return func(a *Adapter) { a.attempts = n }
}

// WithCallTimeout bounds each individual backend call.
func WithCallTimeout(d time.Duration) AdapterOption {
	return func(a *Adapter) { a.timeout = d }
}

// WithBackoff sets the delay between attempts on the same candidate.
func WithBackoff(d time.Duration) AdapterOption {
	return func(a *Adapter) { a.backoff = d }
}

// NewAdapter creates an Adapter over a backend transport.
func NewAdapter(backend Backend, prices PriceTable, creds CredentialResolver, opts ...AdapterOption) *Adapter {
	a := &Adapter{
		backend:  backend,
		prices:   prices,
		creds:    creds,
		attempts: defaultAttemptsPerCandidate,
		timeout:  defaultCallTimeout,
		backoff:  defaultBackoff,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Invoke tries each candidate in order until one call succeeds. Candidates
// without a resolvable credential are skipped without consuming attempts.
// Exhausting every candidate returns an *InvokeError aggregating the
// attempt count and the last underlying error.
func (a *Adapter) Invoke(ctx context.Context, candidates []Candidate, prompt string) (Invocation, error) {
	return a.invoke(ctx, candidates, prompt, a.creds)
}

// InvokeWith behaves like Invoke with a request-scoped credential resolver.
func (a *Adapter) InvokeWith(ctx context.Context, candidates []Candidate, prompt string, creds CredentialResolver) (Invocation, error) {
	return a.invoke(ctx, candidates, prompt, creds)
}

func (a *Adapter) invoke(ctx context.Context, candidates []Candidate, prompt string, creds CredentialResolver) (Invocation, error) {
	if creds == nil {
		creds = a.creds
	}
	messages := []Message{{Role: "user", Content: prompt}}

	var lastErr error
	attemptsMade := 0

	for _, c := range candidates {
		credential, ok := resolveCredential(creds, c.Identifier)
		if !ok {
			continue
		}

		req := BackendRequest{
			Credential: credential,
			Model:      c.Identifier,
			Messages:   messages,
		}

		for attempt := 0; attempt < a.attempts; attempt++ {
			if attempt > 0 {
				if err := a.wait(ctx); err != nil {
					return Invocation{}, err
				}
			}

			attemptsMade++
			start := time.Now()
			resp, err := a.call(ctx, req)
			latency := time.Since(start)

			if err == nil {
				return Invocation{
					Model:        c.Identifier,
					DisplayName:  c.DisplayName,
					Content:      resp.Content,
					InputTokens:  resp.InputTokens,
					OutputTokens: resp.OutputTokens,
					Cost:         a.prices.Cost(c.Identifier, resp.InputTokens, resp.OutputTokens),
					Latency:      latency,
				}, nil
			}

			if ctx.Err() != nil {
				return Invocation{}, ctx.Err()
			}
			lastErr = err

			// Bad credentials will not recover on retry; move on.
			if errors.Is(err, ErrAuthFailed) {
				break
			}
		}
	}

	return Invocation{}, &InvokeError{Attempts: attemptsMade, LastErr: lastErr}
}

// InvokeOnce performs exactly one bounded call for a single candidate.
// The dispatch engine owns the retry budget and uses this instead of the
// chain-walking Invoke. A nil creds falls back to the adapter's resolver.
func (a *Adapter) InvokeOnce(ctx context.Context, c Candidate, prompt string, creds CredentialResolver) (Invocation, error) {
	if creds == nil {
		creds = a.creds
	}
	credential, ok := resolveCredential(creds, c.Identifier)
	if !ok {
		return Invocation{}, ErrNoCredential
	}

	req := BackendRequest{
		Credential: credential,
		Model:      c.Identifier,
		Messages:   []Message{{Role: "user", Content: prompt}},
	}

	start := time.Now()
	resp, err := a.call(ctx, req)
	latency := time.Since(start)
	if err != nil {
		return Invocation{}, err
	}

	return Invocation{
		Model:        c.Identifier,
		DisplayName:  c.DisplayName,
		Content:      resp.Content,
		InputTokens:  resp.InputTokens,
		OutputTokens: resp.OutputTokens,
		Cost:         a.prices.Cost(c.Identifier, resp.InputTokens, resp.OutputTokens),
		Latency:      latency,
	}, nil
}

// Resolver exposes the adapter's credential resolver so the engine can
// decide which candidates are callable before spending retry budget.
func (a *Adapter) Resolver() CredentialResolver { return a.creds }

// call performs one bounded backend call, mapping the deadline to
// ErrBackendTimeout.
func (a *Adapter) call(ctx context.Context, req BackendRequest) (BackendResponse, error) {
	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	resp, err := a.backend.Complete(callCtx, req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return BackendResponse{}, ErrBackendTimeout
		}
		return BackendResponse{}, err
	}
	return resp, nil
}

func (a *Adapter) wait(ctx context.Context) error {
	if a.backoff <= 0 {
		return nil
	}
	select {
	case <-time.After(a.backoff):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func resolveCredential(creds CredentialResolver, identifier string) (string, bool) {
	if creds == nil {
		return "", false
	}
	return creds.Resolve(identifier)
}
