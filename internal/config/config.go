// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// ErrMissingAPIKey is returned by Validate when a required credential is absent.
var ErrMissingAPIKey = errors.New("missing API key")

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	NVD() NVDConfig
	Search() SearchConfig
	LLM() LLMConfig
	Cache() CacheConfig
	Database() DatabaseConfig
	Report() ReportConfig
	Server() ServerConfig
}

// Config holds the entire application configuration.
type Config struct {
	LoggerCfg   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	NVDCfg      NVDConfig      `mapstructure:"nvd" yaml:"nvd"`
	SearchCfg   SearchConfig   `mapstructure:"search" yaml:"search"`
	LLMCfg      LLMConfig      `mapstructure:"llm" yaml:"llm"`
	CacheCfg    CacheConfig    `mapstructure:"cache" yaml:"cache"`
	DatabaseCfg DatabaseConfig `mapstructure:"database" yaml:"database"`
	ReportCfg   ReportConfig   `mapstructure:"report" yaml:"report"`
	ServerCfg   ServerConfig   `mapstructure:"server" yaml:"server"`
}

// --- Interface Method Implementations (Getters) ---

func (c *Config) Logger() LoggerConfig     { return c.LoggerCfg }
func (c *Config) NVD() NVDConfig           { return c.NVDCfg }
func (c *Config) Search() SearchConfig     { return c.SearchCfg }
func (c *Config) LLM() LLMConfig           { return c.LLMCfg }
func (c *Config) Cache() CacheConfig       { return c.CacheCfg }
func (c *Config) Database() DatabaseConfig { return c.DatabaseCfg }
func (c *Config) Report() ReportConfig     { return c.ReportCfg }
func (c *Config) Server() ServerConfig     { return c.ServerCfg }

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// NVDConfig configures the National Vulnerability Database client.
type NVDConfig struct {
	BaseURL         string        `mapstructure:"base_url" yaml:"base_url"`
	APIKey          string        `mapstructure:"api_key" yaml:"-"`
	DaysBack        int           `mapstructure:"days_back" yaml:"days_back"`
	MaxResults      int           `mapstructure:"max_results" yaml:"max_results"`
	WindowDays      int           `mapstructure:"window_days" yaml:"window_days"`
	Timeout         time.Duration `mapstructure:"timeout" yaml:"timeout"`
	RateLimit       float64       `mapstructure:"rate_limit" yaml:"rate_limit"` // Requests per second.
	MaxRetryElapsed time.Duration `mapstructure:"max_retry_elapsed" yaml:"max_retry_elapsed"`
}

// SearchConfig configures the evidence search collaborator (Tavily).
type SearchConfig struct {
	BaseURL    string        `mapstructure:"base_url" yaml:"base_url"`
	APIKey     string        `mapstructure:"api_key" yaml:"-"`
	MaxResults int           `mapstructure:"max_results" yaml:"max_results"`
	Depth      string        `mapstructure:"depth" yaml:"depth"`
	Timeout    time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// LLMProvider defines the supported LLM providers.
type LLMProvider string

const (
	ProviderGemini    LLMProvider = "gemini"
	ProviderOpenAI    LLMProvider = "openai"
	ProviderAnthropic LLMProvider = "anthropic"
	ProviderOllama    LLMProvider = "ollama"
)

// LLMConfig configures model routing and the consensus engine.
type LLMConfig struct {
	DefaultFastModel     string                    `mapstructure:"default_fast_model" yaml:"default_fast_model"`
	DefaultPowerfulModel string                    `mapstructure:"default_powerful_model" yaml:"default_powerful_model"`
	Models               map[string]LLMModelConfig `mapstructure:"models" yaml:"models"`
	Consensus            ConsensusConfig           `mapstructure:"consensus" yaml:"consensus"`
}

// ConsensusConfig lists the backends that vote on criticality, in declaration order.
type ConsensusConfig struct {
	Enabled bool          `mapstructure:"enabled" yaml:"enabled"`
	Models  []string      `mapstructure:"models" yaml:"models"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"` // Per-backend call timeout.
}

// LLMModelConfig defines the configuration for a single LLM.
type LLMModelConfig struct {
	Provider    LLMProvider   `mapstructure:"provider" yaml:"provider"`
	Model       string        `mapstructure:"model" yaml:"model"`
	APIKey      string        `mapstructure:"api_key" yaml:"-"`
	Endpoint    string        `mapstructure:"endpoint" yaml:"endpoint"`
	APITimeout  time.Duration `mapstructure:"api_timeout" yaml:"api_timeout"`
	Temperature float32       `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens" yaml:"max_tokens"`
	Pricing     ModelPricing  `mapstructure:"pricing" yaml:"pricing"`
}

// ModelPricing is the per-million-token price in US dollars. Zero means unknown.
type ModelPricing struct {
	InputPer1M  float64 `mapstructure:"input_per_1m" yaml:"input_per_1m"`
	OutputPer1M float64 `mapstructure:"output_per_1m" yaml:"output_per_1m"`
}

// CacheConfig configures the optional Redis cache for NVD payloads.
type CacheConfig struct {
	Enabled  bool          `mapstructure:"enabled" yaml:"enabled"`
	Address  string        `mapstructure:"address" yaml:"address"`
	Password string        `mapstructure:"password" yaml:"-"`
	DB       int           `mapstructure:"db" yaml:"db"`
	TTL      time.Duration `mapstructure:"ttl" yaml:"ttl"`
}

// DatabaseConfig holds the connection details of the optional audit store.
type DatabaseConfig struct {
	URL string `mapstructure:"url" yaml:"url"`
}

// ReportConfig controls on-disk reports. Format is json, sarif or markdown.
type ReportConfig struct {
	Save      bool   `mapstructure:"save" yaml:"save"`
	OutputDir string `mapstructure:"output_dir" yaml:"output_dir"`
	Format    string `mapstructure:"format" yaml:"format"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Address string `mapstructure:"address" yaml:"address"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "riskgate")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")

	// -- NVD --
	v.SetDefault("nvd.base_url", "https://services.nvd.nist.gov/rest/json/cves/2.0")
	v.SetDefault("nvd.days_back", 730)
	v.SetDefault("nvd.max_results", 100)
	v.SetDefault("nvd.window_days", 120)
	v.SetDefault("nvd.timeout", "30s")
	// Public NVD limit without a key is 5 requests per rolling 30 seconds.
	v.SetDefault("nvd.rate_limit", 5.0/30.0)
	v.SetDefault("nvd.max_retry_elapsed", "45s")

	// -- Search --
	v.SetDefault("search.base_url", "https://api.tavily.com/search")
	v.SetDefault("search.max_results", 5)
	v.SetDefault("search.depth", "basic")
	v.SetDefault("search.timeout", "30s")

	// -- LLM --
	v.SetDefault("llm.default_fast_model", "gemini-flash")
	v.SetDefault("llm.default_powerful_model", "gemini-flash")
	v.SetDefault("llm.models", map[string]any{
		"gemini-flash": map[string]any{
			"provider":    string(ProviderGemini),
			"model":       "gemini-2.5-flash",
			"api_timeout": "60s",
			"temperature": 0.1,
			"pricing": map[string]any{
				"input_per_1m":  0.30,
				"output_per_1m": 2.50,
			},
		},
	})
	v.SetDefault("llm.consensus.enabled", false)
	v.SetDefault("llm.consensus.timeout", "90s")

	// -- Cache --
	v.SetDefault("cache.enabled", false)
	v.SetDefault("cache.address", "localhost:6379")
	v.SetDefault("cache.db", 0)
	v.SetDefault("cache.ttl", "24h")

	// -- Report --
	v.SetDefault("report.save", true)
	v.SetDefault("report.output_dir", "outputs")
	v.SetDefault("report.format", "json")

	// -- Server --
	v.SetDefault("server.address", ":3000")
}

// providerKeyEnv lists the conventional environment variables for each provider's key.
var providerKeyEnv = map[LLMProvider][]string{
	ProviderGemini:    {"GOOGLE_API_KEY", "GEMINI_API_KEY"},
	ProviderOpenAI:    {"OPENAI_API_KEY"},
	ProviderAnthropic: {"ANTHROPIC_API_KEY"},
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Bind the conventional variables for sensitive data.
	_ = v.BindEnv("search.api_key", "RISKGATE_SEARCH_API_KEY", "TAVILY_API_KEY")
	_ = v.BindEnv("nvd.api_key", "RISKGATE_NVD_API_KEY", "NVD_API_KEY")
	_ = v.BindEnv("database.url", "RISKGATE_DATABASE_URL")
	_ = v.BindEnv("cache.password", "RISKGATE_CACHE_PASSWORD")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	cfg.ApplyEnvFallbacks()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// ApplyEnvFallbacks fills empty model API keys from the provider's conventional
// environment variables.
func (c *Config) ApplyEnvFallbacks() {
	for name, m := range c.LLMCfg.Models {
		if m.APIKey != "" {
			continue
		}
		for _, env := range providerKeyEnv[m.Provider] {
			if val := os.Getenv(env); val != "" {
				m.APIKey = val
				break
			}
		}
		c.LLMCfg.Models[name] = m
	}
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.SearchCfg.APIKey == "" {
		return fmt.Errorf("%w: search.api_key (TAVILY_API_KEY) is required", ErrMissingAPIKey)
	}
	if c.NVDCfg.DaysBack <= 0 {
		return fmt.Errorf("nvd.days_back must be a positive integer")
	}
	if c.NVDCfg.MaxResults <= 0 {
		return fmt.Errorf("nvd.max_results must be a positive integer")
	}
	if c.NVDCfg.WindowDays <= 0 || c.NVDCfg.WindowDays > 120 {
		return fmt.Errorf("nvd.window_days must be between 1 and 120")
	}
	if err := c.LLMCfg.Validate(); err != nil {
		return fmt.Errorf("llm configuration invalid: %w", err)
	}
	if c.CacheCfg.Enabled && c.CacheCfg.Address == "" {
		return fmt.Errorf("cache.address is required when the cache is enabled")
	}
	switch c.ReportCfg.Format {
	case "", "json", "sarif", "markdown":
	default:
		return fmt.Errorf("report.format %q is not one of json, sarif, markdown", c.ReportCfg.Format)
	}
	return nil
}

// Validate checks that every referenced model exists and is usable.
func (l *LLMConfig) Validate() error {
	for _, name := range []string{l.DefaultFastModel, l.DefaultPowerfulModel} {
		if err := l.checkModel(name); err != nil {
			return err
		}
	}
	if !l.Consensus.Enabled {
		return nil
	}
	if len(l.Consensus.Models) == 0 {
		return fmt.Errorf("consensus.models must list at least one model when consensus is enabled")
	}
	for _, name := range l.Consensus.Models {
		if err := l.checkModel(name); err != nil {
			return err
		}
	}
	return nil
}

func (l *LLMConfig) checkModel(name string) error {
	m, ok := l.Models[name]
	if !ok {
		return fmt.Errorf("model %q is referenced but not defined under llm.models", name)
	}
	switch m.Provider {
	case ProviderGemini, ProviderOpenAI, ProviderAnthropic:
		if m.APIKey == "" {
			return fmt.Errorf("%w: model %q (%s)", ErrMissingAPIKey, name, m.Provider)
		}
	case ProviderOllama:
	default:
		return fmt.Errorf("model %q has unsupported provider %q", name, m.Provider)
	}
	if m.Model == "" {
		return fmt.Errorf("model %q has no model identifier", name)
	}
	return nil
}
