// Package mock provides a configurable Backend test double.
package mock

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/tiergate/tiergate"
)

// Backend is a mock completion backend for testing.
type Backend struct {
	name         string
	latency      time.Duration
	failFirst    int
	staticErr    error
	inputTokens  int64
	outputTokens int64
	callCount    atomic.Int64
	responseFunc func(tiergate.BackendRequest) (tiergate.BackendResponse, error)
}

var _ tiergate.Backend = (*Backend)(nil)

// Option configures a mock Backend.
type Option func(*Backend)

// New creates a mock backend with the given options.
func New(opts ...Option) *Backend {
	b := &Backend{
		name:         "mock",
		inputTokens:  10,
		outputTokens: 20,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// WithName sets the backend name.
func WithName(name string) Option {
	return func(b *Backend) { b.name = name }
}

// WithLatency adds simulated latency to each call.
func WithLatency(d time.Duration) Option {
	return func(b *Backend) { b.latency = d }
}

// WithFailFirst makes the first n calls fail with ErrBackendUnavailable.
func WithFailFirst(n int) Option {
	return func(b *Backend) { b.failFirst = n }
}

// WithError makes every call return this error.
func WithError(err error) Option {
	return func(b *Backend) { b.staticErr = err }
}

// WithUsage sets the token usage reported on success.
func WithUsage(input, output int64) Option {
	return func(b *Backend) { b.inputTokens, b.outputTokens = input, output }
}

// WithResponseFunc sets a custom response function.
func WithResponseFunc(fn func(tiergate.BackendRequest) (tiergate.BackendResponse, error)) Option {
	return func(b *Backend) { b.responseFunc = fn }
}

func (b *Backend) Name() string { return b.name }

func (b *Backend) Complete(ctx context.Context, req tiergate.BackendRequest) (tiergate.BackendResponse, error) {
	if b.latency > 0 {
		select {
		case <-time.After(b.latency):
		case <-ctx.Done():
			return tiergate.BackendResponse{}, ctx.Err()
		}
	}

	count := b.callCount.Add(1)

	if b.staticErr != nil {
		return tiergate.BackendResponse{}, b.staticErr
	}
	if int(count) <= b.failFirst {
		return tiergate.BackendResponse{}, tiergate.ErrBackendUnavailable
	}
	if b.responseFunc != nil {
		return b.responseFunc(req)
	}

	return tiergate.BackendResponse{
		ID:           "mock-response-id",
		Model:        req.Model,
		Content:      "Hello from mock backend",
		InputTokens:  b.inputTokens,
		OutputTokens: b.outputTokens,
	}, nil
}

// CallCount returns the number of calls made to the backend.
func (b *Backend) CallCount() int64 { return b.callCount.Load() }
