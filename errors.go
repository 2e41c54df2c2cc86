package tiergate

import (
	"errors"
	"fmt"
)

// Sentinel errors.
var (
	ErrEmptyQuery   = errors.New("tiergate: empty query")
	ErrUnknownLabel = errors.New("tiergate: unmappable classification label")
	ErrNoCandidates = errors.New("tiergate: no candidates in tier")
	ErrRetryBudget  = errors.New("tiergate: retry budget exhausted")

	ErrBackendTimeout     = errors.New("tiergate: backend timeout")
	ErrBackendHTTP        = errors.New("tiergate: backend http error")
	ErrBackendUnavailable = errors.New("tiergate: backend unavailable")
	ErrBackendRateLimited = errors.New("tiergate: rate limited by backend")
	ErrAuthFailed         = errors.New("tiergate: backend authentication failed")

	ErrNoCredential = errors.New("tiergate: no credential for model")

	ErrCacheUnavailable = errors.New("tiergate: cache unavailable")
	ErrAdmissionDenied  = errors.New("tiergate: admission denied")
)

// DispatchError wraps a terminal engine failure with routing context.
type DispatchError struct {
	Err      error
	Tier     Tier
	Model    string
	Attempts int
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("tiergate: tier=%s model=%s attempts=%d: %v",
		e.Tier, e.Model, e.Attempts, e.Err)
}

func (e *DispatchError) Unwrap() error {
	return e.Err
}

// InvokeError aggregates an adapter run that exhausted every candidate.
type InvokeError struct {
	Attempts int
	LastErr  error
}

func (e *InvokeError) Error() string {
	return fmt.Sprintf("tiergate: all candidates failed after %d attempts: %v",
		e.Attempts, e.LastErr)
}

func (e *InvokeError) Unwrap() error {
	return e.LastErr
}

// IsFatal returns true if the error must terminate a query without further
// retries or fallback.
func IsFatal(err error) bool {
	return errors.Is(err, ErrEmptyQuery) ||
		errors.Is(err, ErrUnknownLabel) ||
		errors.Is(err, ErrNoCandidates) ||
		errors.Is(err, ErrAuthFailed) ||
		errors.Is(err, ErrAdmissionDenied)
}

// IsRetryable returns true if the error can be retried on the same or the
// next candidate.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrBackendTimeout) ||
		errors.Is(err, ErrBackendHTTP) ||
		errors.Is(err, ErrBackendUnavailable) ||
		errors.Is(err, ErrBackendRateLimited)
}
