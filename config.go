package tiergate

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/tiergate/tiergate/admission"
)

// Config is the top-level gateway configuration.
type Config struct {
	Tiers       []TierConfig    `yaml:"tiers"`
	Prices      PriceConfig     `yaml:"prices"`
	Credentials MapResolver     `yaml:"credentials"`
	Cache       CacheConfig     `yaml:"cache"`
	Engine      EngineConfig    `yaml:"engine"`
	Adapter     AdapterConfig   `yaml:"adapter"`
	Admission   AdmissionConfig `yaml:"admission"`
}

// TierConfig lists the candidates of one tier in initial rank order.
type TierConfig struct {
	Tier   Tier          `yaml:"tier"`
	Models []ModelConfig `yaml:"models"`
}

// ModelConfig is one candidate: a display name plus the identifier sent on
// the wire. Always a tagged pair, never a bare string.
type ModelConfig struct {
	Name       string `yaml:"name"`
	Identifier string `yaml:"identifier"`
}

// PriceConfig configures the price table.
type PriceConfig struct {
	Default string           `yaml:"default"`
	Models  map[string]Price `yaml:"models"`
}

// CacheConfig tunes the semantic cache.
type CacheConfig struct {
	Threshold  float64 `yaml:"threshold"`
	TTLSeconds int     `yaml:"ttl_seconds"`
}

// EngineConfig tunes the dispatch engine.
type EngineConfig struct {
	MaxRetriesPerModel int `yaml:"max_retries_per_model"`
}

// AdapterConfig tunes the backend adapter.
type AdapterConfig struct {
	AttemptsPerCandidate int `yaml:"attempts_per_candidate"`
	CallTimeoutSeconds   int `yaml:"call_timeout_seconds"`
	BackoffSeconds       int `yaml:"backoff_seconds"`
}

// AdmissionConfig tunes admission control.
type AdmissionConfig struct {
	BanThreshold       int  `yaml:"ban_threshold"`
	BanDurationSeconds int  `yaml:"ban_duration_seconds"`
	Adaptive           bool `yaml:"adaptive"`
	DDoSWindowSeconds  int  `yaml:"ddos_window_seconds"`
	DDoSThreshold      int  `yaml:"ddos_threshold"`
	DDoSBlockSeconds   int  `yaml:"ddos_block_seconds"`
}

// LoadConfig reads and parses a YAML config file. A .env file is loaded
// best-effort first, and ${VAR} references are expanded before parsing so
// credentials never live in the file itself.
func LoadConfig(path string) (Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("tiergate: read config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return Config{}, fmt.Errorf("tiergate: parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate checks the config for required fields and consistency.
func (c Config) Validate() error {
	if len(c.Tiers) == 0 {
		return fmt.Errorf("tiergate: config: at least one tier is required")
	}

	seen := make(map[string]bool)
	for i, tc := range c.Tiers {
		if len(tc.Models) == 0 {
			return fmt.Errorf("tiergate: config: tiers[%d] (%s): at least one model is required", i, tc.Tier)
		}
		for j, m := range tc.Models {
			if m.Identifier == "" {
				return fmt.Errorf("tiergate: config: tiers[%d] (%s): models[%d]: identifier is required", i, tc.Tier, j)
			}
			if seen[m.Identifier] {
				return fmt.Errorf("tiergate: config: duplicate model identifier %q", m.Identifier)
			}
			seen[m.Identifier] = true
		}
	}

	if c.Prices.Default != "" {
		if _, ok := c.Prices.Models[c.Prices.Default]; !ok {
			return fmt.Errorf("tiergate: config: prices: default row %q not in table", c.Prices.Default)
		}
	}

	if c.Cache.Threshold < 0 || c.Cache.Threshold > 1 {
		return fmt.Errorf("tiergate: config: cache: threshold must be in [0, 1]")
	}

	return nil
}

// NewRegistry builds a Registry from the configured tiers. Models are
// registered in reverse file order so the first listed candidate of each
// tier ends up ranked first.
func (c Config) NewRegistry() *Registry {
	r := NewRegistry()
	for _, tc := range c.Tiers {
		for i := len(tc.Models) - 1; i >= 0; i-- {
			m := tc.Models[i]
			r.Register(m.Name, m.Identifier, tc.Tier)
		}
	}
	return r
}

// PriceTable builds the price table.
func (c Config) PriceTable() PriceTable {
	return PriceTable{Rows: c.Prices.Models, Default: c.Prices.Default}
}

// AdapterOptions converts the adapter tuning into options for NewAdapter.
func (c Config) AdapterOptions() []AdapterOption {
	var opts []AdapterOption
	if c.Adapter.AttemptsPerCandidate > 0 {
		opts = append(opts, WithAttemptsPerCandidate(c.Adapter.AttemptsPerCandidate))
	}
	if c.Adapter.CallTimeoutSeconds > 0 {
		opts = append(opts, WithCallTimeout(time.Duration(c.Adapter.CallTimeoutSeconds)*time.Second))
	}
	if c.Adapter.BackoffSeconds > 0 {
		opts = append(opts, WithBackoff(time.Duration(c.Adapter.BackoffSeconds)*time.Second))
	}
	return opts
}

// EngineOptions converts the engine and cache tuning into options for
// NewEngine.
func (c Config) EngineOptions() []EngineOption {
	var opts []EngineOption
	if c.Engine.MaxRetriesPerModel > 0 {
		opts = append(opts, WithMaxRetriesPerModel(c.Engine.MaxRetriesPerModel))
	}
	if c.Cache.Threshold > 0 {
		opts = append(opts, WithCacheThreshold(c.Cache.Threshold))
	}
	if c.Cache.TTLSeconds > 0 {
		opts = append(opts, WithCacheTTL(c.Cache.TTLSeconds))
	}
	return opts
}

// AdmissionConfig converts the admission tuning for admission.NewController.
func (c Config) AdmissionConfig() admission.Config {
	return admission.Config{
		BanThreshold:      c.Admission.BanThreshold,
		BanDuration:       time.Duration(c.Admission.BanDurationSeconds) * time.Second,
		Adaptive:          c.Admission.Adaptive,
		DDoSWindow:        time.Duration(c.Admission.DDoSWindowSeconds) * time.Second,
		DDoSThreshold:     c.Admission.DDoSThreshold,
		DDoSBlockDuration: time.Duration(c.Admission.DDoSBlockSeconds) * time.Second,
	}
}
