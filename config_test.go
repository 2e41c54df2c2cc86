package tiergate_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tg "github.com/tiergate/tiergate"
)

const sampleConfig = `
tiers:
  - tier: simple
    models:
      - name: Llama 3.3 8B
        identifier: meta-llama/llama-3.3-8b-instruct:free
      - name: Mistral 7B
        identifier: mistralai/mistral-7b-instruct:free
  - tier: medium
    models:
      - name: Gemini 2.0 Flash
        identifier: google/gemini-2.0-flash-exp:free
  - tier: advanced
    models:
      - name: DeepSeek R1
        identifier: deepseek/deepseek-r1:free

prices:
  default: meta-llama/llama-3.3-8b-instruct:free
  models:
    "meta-llama/llama-3.3-8b-instruct:free":
      input: 0.7
      output: 0.7

credentials:
  default: ${TIERGATE_API_KEY}

cache:
  threshold: 0.85
  ttl_seconds: 1800

engine:
  max_retries_per_model: 2

adapter:
  call_timeout_seconds: 20

admission:
  ban_threshold: 3
  ban_duration_seconds: 600
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tiergate.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("TIERGATE_API_KEY", "sk-from-env")

	cfg, err := tg.LoadConfig(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	require.Len(t, cfg.Tiers, 3)
	assert.Equal(t, tg.TierSimple, cfg.Tiers[0].Tier)
	assert.Equal(t, tg.TierAdvanced, cfg.Tiers[2].Tier)

	// Environment expansion keeps credentials out of the file.
	assert.Equal(t, "sk-from-env", cfg.Credentials.Default)

	assert.Equal(t, 0.85, cfg.Cache.Threshold)
	assert.Equal(t, 1800, cfg.Cache.TTLSeconds)
	assert.Equal(t, 2, cfg.Engine.MaxRetriesPerModel)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := tg.LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestConfig_ValidateErrors(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"no tiers", `tiers: []`},
		{"empty tier", `
tiers:
  - tier: simple
    models: []
`},
		{"missing identifier", `
tiers:
  - tier: simple
    models:
      - name: Llama
`},
		{"duplicate identifier", `
tiers:
  - tier: simple
    models:
      - name: A
        identifier: model-a
      - name: A again
        identifier: model-a
`},
		{"unknown tier name", `
tiers:
  - tier: gigantic
    models:
      - name: A
        identifier: model-a
`},
		{"dangling default price", `
tiers:
  - tier: simple
    models:
      - name: A
        identifier: model-a
prices:
  default: model-b
`},
		{"threshold out of range", `
tiers:
  - tier: simple
    models:
      - name: A
        identifier: model-a
cache:
  threshold: 1.5
`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tg.LoadConfig(writeConfig(t, tc.yaml))
			assert.Error(t, err)
		})
	}
}

func TestConfig_NewRegistryKeepsFileOrder(t *testing.T) {
	t.Setenv("TIERGATE_API_KEY", "sk")
	cfg, err := tg.LoadConfig(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	r := cfg.NewRegistry()

	ranked := r.Snapshot(tg.TierSimple)
	require.Len(t, ranked, 2)
	// The first model listed in the file ranks first.
	assert.Equal(t, "meta-llama/llama-3.3-8b-instruct:free", ranked[0].Identifier)
	assert.Equal(t, "mistralai/mistral-7b-instruct:free", ranked[1].Identifier)
}

func TestConfig_DerivedComponents(t *testing.T) {
	t.Setenv("TIERGATE_API_KEY", "sk")
	cfg, err := tg.LoadConfig(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	table := cfg.PriceTable()
	assert.InDelta(t, 0.00105, table.Cost("unknown-model", 1000, 500), 1e-9)

	assert.Len(t, cfg.AdapterOptions(), 1)
	assert.Len(t, cfg.EngineOptions(), 3)

	adm := cfg.AdmissionConfig()
	assert.Equal(t, 3, adm.BanThreshold)
	assert.Equal(t, 10*time.Minute, adm.BanDuration)
}
