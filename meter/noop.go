// Package meter provides Meter implementations for observing dispatches.
package meter

import "github.com/tiergate/tiergate"

// NoopMeter discards all events.
type NoopMeter struct{}

var _ tiergate.Meter = (*NoopMeter)(nil)

func (*NoopMeter) OnAttempt(tiergate.AttemptEvent) {}
func (*NoopMeter) OnResult(tiergate.ResultEvent)   {}
func (*NoopMeter) OnCache(tiergate.CacheEvent)     {}
