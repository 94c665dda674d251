package config

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// validConfig returns a default configuration with every required key filled in.
func validConfig() *Config {
	cfg := NewDefaultConfig()
	cfg.SearchCfg.APIKey = "tvly-test"
	m := cfg.LLMCfg.Models["gemini-flash"]
	m.APIKey = "g-test"
	cfg.LLMCfg.Models["gemini-flash"] = m
	return cfg
}

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()
	require.NotNil(t, cfg)

	assert.Equal(t, "info", cfg.Logger().Level)
	assert.Equal(t, "riskgate", cfg.Logger().ServiceName)

	assert.Equal(t, "https://services.nvd.nist.gov/rest/json/cves/2.0", cfg.NVD().BaseURL)
	assert.Equal(t, 730, cfg.NVD().DaysBack)
	assert.Equal(t, 100, cfg.NVD().MaxResults)
	assert.Equal(t, 120, cfg.NVD().WindowDays)
	assert.Equal(t, 30*time.Second, cfg.NVD().Timeout)

	assert.Equal(t, 5, cfg.Search().MaxResults)
	assert.Equal(t, "basic", cfg.Search().Depth)

	assert.Equal(t, "gemini-flash", cfg.LLM().DefaultPowerfulModel)
	require.Contains(t, cfg.LLM().Models, "gemini-flash")
	assert.Equal(t, ProviderGemini, cfg.LLM().Models["gemini-flash"].Provider)
	assert.Equal(t, 60*time.Second, cfg.LLM().Models["gemini-flash"].APITimeout)
	assert.Equal(t, ModelPricing{InputPer1M: 0.30, OutputPer1M: 2.50}, cfg.LLM().Models["gemini-flash"].Pricing)
	assert.False(t, cfg.LLM().Consensus.Enabled)

	assert.False(t, cfg.Cache().Enabled)
	assert.Equal(t, 24*time.Hour, cfg.Cache().TTL)
	assert.True(t, cfg.Report().Save)
	assert.Equal(t, "outputs", cfg.Report().OutputDir)
	assert.Equal(t, "json", cfg.Report().Format)
	assert.Equal(t, ":3000", cfg.Server().Address)
}

func TestValidate(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, validConfig().Validate())
	})

	t.Run("missing search key", func(t *testing.T) {
		cfg := validConfig()
		cfg.SearchCfg.APIKey = ""
		assert.ErrorIs(t, cfg.Validate(), ErrMissingAPIKey)
	})

	t.Run("missing model key", func(t *testing.T) {
		cfg := validConfig()
		m := cfg.LLMCfg.Models["gemini-flash"]
		m.APIKey = ""
		cfg.LLMCfg.Models["gemini-flash"] = m
		assert.ErrorIs(t, cfg.Validate(), ErrMissingAPIKey)
	})

	t.Run("ollama needs no key", func(t *testing.T) {
		cfg := validConfig()
		cfg.LLMCfg.Models["local"] = LLMModelConfig{Provider: ProviderOllama, Model: "llama3"}
		cfg.LLMCfg.DefaultFastModel = "local"
		assert.NoError(t, cfg.Validate())
	})

	t.Run("undefined default model", func(t *testing.T) {
		cfg := validConfig()
		cfg.LLMCfg.DefaultPowerfulModel = "nope"
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), `"nope"`)
	})

	t.Run("consensus with no models", func(t *testing.T) {
		cfg := validConfig()
		cfg.LLMCfg.Consensus.Enabled = true
		assert.Error(t, cfg.Validate())
	})

	t.Run("consensus with unknown model", func(t *testing.T) {
		cfg := validConfig()
		cfg.LLMCfg.Consensus.Enabled = true
		cfg.LLMCfg.Consensus.Models = []string{"gemini-flash", "ghost"}
		assert.Error(t, cfg.Validate())
	})

	t.Run("bad nvd values", func(t *testing.T) {
		cfg := validConfig()
		cfg.NVDCfg.DaysBack = 0
		assert.Error(t, cfg.Validate())

		cfg = validConfig()
		cfg.NVDCfg.WindowDays = 365
		assert.Error(t, cfg.Validate())
	})

	t.Run("cache enabled without address", func(t *testing.T) {
		cfg := validConfig()
		cfg.CacheCfg.Enabled = true
		cfg.CacheCfg.Address = ""
		assert.Error(t, cfg.Validate())
	})

	t.Run("unknown report format", func(t *testing.T) {
		cfg := validConfig()
		cfg.ReportCfg.Format = "pdf"
		assert.ErrorContains(t, cfg.Validate(), "report.format")
	})
}

func TestNewConfigFromViper(t *testing.T) {
	t.Setenv("TAVILY_API_KEY", "tvly-env")
	t.Setenv("GOOGLE_API_KEY", "g-env")
	t.Setenv("NVD_API_KEY", "nvd-env")

	v := viper.New()
	SetDefaults(v)
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(strings.NewReader(`
nvd:
  days_back: 365
search:
  depth: advanced
`)))

	cfg, err := NewConfigFromViper(v)
	require.NoError(t, err)

	assert.Equal(t, "tvly-env", cfg.Search().APIKey)
	assert.Equal(t, "nvd-env", cfg.NVD().APIKey)
	assert.Equal(t, "g-env", cfg.LLM().Models["gemini-flash"].APIKey)
	assert.Equal(t, 365, cfg.NVD().DaysBack)
	assert.Equal(t, "advanced", cfg.Search().Depth)
}

func TestNewConfigFromViper_MissingKey(t *testing.T) {
	t.Setenv("TAVILY_API_KEY", "")
	t.Setenv("RISKGATE_SEARCH_API_KEY", "")

	v := viper.New()
	SetDefaults(v)

	_, err := NewConfigFromViper(v)
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestApplyEnvFallbacks_KeepsExplicitKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "from-env")

	cfg := validConfig()
	cfg.LLMCfg.Models["gpt"] = LLMModelConfig{Provider: ProviderOpenAI, Model: "gpt-4o-mini", APIKey: "explicit"}
	cfg.LLMCfg.Models["gpt2"] = LLMModelConfig{Provider: ProviderOpenAI, Model: "gpt-4o-mini"}
	cfg.ApplyEnvFallbacks()

	assert.Equal(t, "explicit", cfg.LLMCfg.Models["gpt"].APIKey)
	assert.Equal(t, "from-env", cfg.LLMCfg.Models["gpt2"].APIKey)
}
