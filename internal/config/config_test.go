package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nerdneilsfield/novel-translator/pkg/cost"
	"github.com/nerdneilsfield/novel-translator/pkg/translator"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("CAIYUN_API_KEY", "")

	cfg, err := LoadConfig(writeConfig(t, "debug: false\n"))
	require.NoError(t, err)

	assert.Equal(t, "caiyun", cfg.DefaultEngine)
	assert.Equal(t, "zh", cfg.SourceLanguage)
	assert.Equal(t, "en", cfg.TargetLanguage)
	assert.Equal(t, translator.DefaultBatchSize, cfg.BatchSize)
	assert.Equal(t, 1, cfg.SaveInterval)
	assert.Equal(t, "txt", cfg.OutputFormat)
	assert.True(t, cfg.IncludeTitles)
	assert.Equal(t, "gpt-3.5-turbo", cfg.OpenAI.Model)
	assert.InDelta(t, 0.5, cfg.Caiyun.RequestInterval, 1e-9)
	assert.NotEmpty(t, cfg.CacheDir)
}

func TestLoadConfigFile(t *testing.T) {
	path := writeConfig(t, `
default_engine: openai
target_language: ja
batch_size: 8
budget_limit: 12.5
bilingual_output: true
heading_patterns:
  - '^Part\s+[IVX]+$'
openai:
  api_key: sk-test
  model: gpt-4o-mini
  temperature: 0.1
pricing:
  openai:
    unit: chars
    per_thousand_chars: 0.2
    currency: USD
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "openai", cfg.DefaultEngine)
	assert.Equal(t, "ja", cfg.TargetLanguage)
	assert.Equal(t, 8, cfg.BatchSize)
	assert.InDelta(t, 12.5, cfg.BudgetLimit, 1e-9)
	assert.True(t, cfg.BilingualOutput)
	assert.Equal(t, []string{`^Part\s+[IVX]+$`}, cfg.HeadingPatterns)
	assert.Equal(t, "sk-test", cfg.OpenAI.APIKey)
	assert.Equal(t, "gpt-4o-mini", cfg.OpenAI.Model)
	require.Contains(t, cfg.Pricing, "openai")
	assert.Equal(t, cost.Rate{Unit: cost.UnitChars, PerThousandChars: 0.2, Currency: "USD"}, cfg.Pricing["openai"])
	require.NoError(t, cfg.Validate())
}

func TestLoadConfigEnv(t *testing.T) {
	t.Setenv("NOVEL_TRANSLATOR_BATCH_SIZE", "11")
	t.Setenv("NOVEL_TRANSLATOR_OPENAI_MODEL", "gpt-4o")
	t.Setenv("OPENAI_API_KEY", "sk-env")
	t.Setenv("CAIYUN_API_KEY", "cy-env")

	cfg, err := LoadConfig(writeConfig(t, "batch_size: 3\n"))
	require.NoError(t, err)

	assert.Equal(t, 11, cfg.BatchSize)
	assert.Equal(t, "gpt-4o", cfg.OpenAI.Model)
	assert.Equal(t, "sk-env", cfg.OpenAI.APIKey)
	assert.Equal(t, "cy-env", cfg.Caiyun.APIKey)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := NewDefaultConfig()
		cfg.Caiyun.APIKey = "key"
		return cfg
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"empty engine", func(c *Config) { c.DefaultEngine = "" }, "default_engine"},
		{"zero batch", func(c *Config) { c.BatchSize = 0 }, "batch_size"},
		{"zero save interval", func(c *Config) { c.SaveInterval = 0 }, "save_interval"},
		{"negative budget", func(c *Config) { c.BudgetLimit = -1 }, "budget_limit"},
		{"zero timeout", func(c *Config) { c.RequestTimeout = 0 }, "request_timeout"},
		{"unknown format", func(c *Config) { c.OutputFormat = "pdf" }, "output_format"},
		{"missing caiyun key", func(c *Config) { c.Caiyun.APIKey = "" }, "caiyun.api_key"},
		{"missing openai key", func(c *Config) { c.DefaultEngine = "openai" }, "openai.api_key"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.ErrorIs(t, err, translator.ErrInvalidConfig)

			var cfgErr *translator.ConfigError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}

	cfg := valid()
	cfg.DefaultEngine = "raw"
	cfg.Caiyun.APIKey = ""
	assert.NoError(t, cfg.Validate())
}

func TestEngineOptions(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.RequestTimeout = 10
	cfg.RetryTimes = 1
	cfg.Caiyun.APIKey = "cy"
	cfg.Caiyun.RequestInterval = 0.25
	cfg.OpenAI.APIKey = "sk"
	cfg.DeepLX.AccessToken = "token"

	opts := cfg.EngineOptions("caiyun", zap.NewNop())
	assert.Equal(t, "cy", opts.APIKey)
	assert.Equal(t, 250*time.Millisecond, opts.RequestInterval)
	assert.Equal(t, 10*time.Second, opts.Timeout)
	assert.Equal(t, 1, opts.MaxRetries)

	opts = cfg.EngineOptions("OpenAI", nil)
	assert.Equal(t, "sk", opts.APIKey)
	assert.Equal(t, "gpt-3.5-turbo", opts.Model)
	assert.InDelta(t, 0.3, opts.Temperature, 1e-6)
	assert.NotNil(t, opts.Logger)

	opts = cfg.EngineOptions("deeplx", nil)
	assert.Equal(t, "token", opts.APIKey)
	assert.Equal(t, cfg.DeepLX.URL, opts.BaseURL)
}

func TestTranslatorAndExportOptions(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.BatchSize = 9
	cfg.BudgetLimit = 3
	cfg.BilingualOutput = true
	cfg.Pricing = map[string]cost.Rate{"raw": {PerThousandChars: 1, Currency: "CNY"}}

	topts := cfg.TranslatorOptions(zap.NewNop())
	assert.Equal(t, 9, topts.BatchSize)
	assert.InDelta(t, 3, topts.BudgetLimit, 1e-9)
	assert.Equal(t, cfg.CacheDir, topts.CacheDir)
	assert.InDelta(t, 1.0, topts.Estimator.EstimateText(string(make([]rune, 1000)), "raw").Cost, 1e-9)

	eopts := cfg.ExportOptions()
	assert.True(t, eopts.BilingualOutput)
	assert.Equal(t, "en", eopts.Language)
}

func TestSaveConfigRoundTrip(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("CAIYUN_API_KEY", "")

	cfg := NewDefaultConfig()
	cfg.DefaultEngine = "deeplx"
	cfg.BatchSize = 4
	cfg.HeadingPatterns = []string{`^Book\s+\d+`}
	cfg.Pricing = map[string]cost.Rate{"deeplx": {Unit: cost.UnitChars, PerThousandChars: 0.1, Currency: "EUR"}}

	path := filepath.Join(t.TempDir(), "nested", "saved.yaml")
	require.NoError(t, SaveConfig(cfg, path))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "deeplx", loaded.DefaultEngine)
	assert.Equal(t, 4, loaded.BatchSize)
	assert.Equal(t, cfg.HeadingPatterns, loaded.HeadingPatterns)
	assert.Equal(t, cfg.Pricing, loaded.Pricing)
	assert.Equal(t, cfg.Compatible.Model, loaded.Compatible.Model)
}
