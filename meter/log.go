package meter

import (
	"log/slog"

	"github.com/tiergate/tiergate"
)

// LogMeter logs dispatch events using slog.
type LogMeter struct {
	Logger *slog.Logger
}

var _ tiergate.Meter = (*LogMeter)(nil)

// NewLogMeter creates a LogMeter with the given logger.
// If logger is nil, slog.Default() is used.
func NewLogMeter(logger *slog.Logger) *LogMeter {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogMeter{Logger: logger}
}

func (m *LogMeter) OnAttempt(e tiergate.AttemptEvent) {
	m.Logger.Info("attempt",
		"id", e.ID,
		"model", e.Model,
		"tier", e.Tier.String(),
		"attempt", e.Attempt,
		"estimated_tokens", e.EstimatedIn,
	)
}

func (m *LogMeter) OnResult(e tiergate.ResultEvent) {
	if e.Success {
		m.Logger.Info("result",
			"id", e.ID,
			"model", e.Model,
			"tier", e.Tier.String(),
			"cache_hit", e.CacheHit,
			"duration_ms", e.Duration.Milliseconds(),
			"input_tokens", e.InputTokens,
			"output_tokens", e.OutputTokens,
			"cost", e.Cost,
		)
	} else {
		m.Logger.Warn("result_error",
			"id", e.ID,
			"model", e.Model,
			"tier", e.Tier.String(),
			"duration_ms", e.Duration.Milliseconds(),
			"error", e.Error,
		)
	}
}

func (m *LogMeter) OnCache(e tiergate.CacheEvent) {
	if e.Error != nil {
		m.Logger.Warn("cache_error", "id", e.ID, "store", e.Store, "error", e.Error)
		return
	}
	m.Logger.Debug("cache", "id", e.ID, "store", e.Store, "hit", e.Hit)
}
