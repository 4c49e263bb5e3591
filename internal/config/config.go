// Package config loads reel-judge configuration from file and environment.
//
// Precedence (highest to lowest):
//  1. Command-line flags (applied by the caller)
//  2. Environment variables (REEL_JUDGE_*)
//  3. Config file
//  4. Built-in defaults
//
// Config file search order:
//  1. the path given to LoadFrom, else $REEL_JUDGE_CONFIG
//  2. .reel-judge.yaml in current directory
//  3. ~/.config/reel-judge/config.yaml
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config holds all reel-judge configuration.
type Config struct {
	LLM      LLMConfig      `yaml:"llm"`
	TMDB     TMDBConfig     `yaml:"tmdb"`
	Database DatabaseConfig `yaml:"database"`
	Cache    CacheConfig    `yaml:"cache"`
	Log      LogConfig      `yaml:"log"`
	OTEL     OTELConfig     `yaml:"otel"`

	// ConfigFile is the path to the config file that was loaded (empty if none).
	ConfigFile string `yaml:"-"`
}

// LLMConfig selects and tunes the chat model.
type LLMConfig struct {
	Provider    string  `yaml:"provider" validate:"oneof=anthropic openai google"`
	Model       string  `yaml:"model" validate:"required"`
	BaseURL     string  `yaml:"base_url" validate:"omitempty,url"`
	APIKey      string  `yaml:"api_key"`
	MaxTokens   int64   `yaml:"max_tokens" validate:"gt=0"`
	Temperature float64 `yaml:"temperature" validate:"gte=0,lte=2"`
	Timeout     string  `yaml:"timeout"` // Go duration string, e.g. "2m"
	Retries     int     `yaml:"retries" validate:"gte=0,lte=10"`

	// TimeoutDuration is parsed from Timeout after loading.
	TimeoutDuration time.Duration `yaml:"-"`
}

// TMDBConfig configures the movie catalog client.
type TMDBConfig struct {
	Token             string  `yaml:"token"`
	BaseURL           string  `yaml:"base_url" validate:"omitempty,url"`
	Language          string  `yaml:"language"`
	RequestsPerSecond float64 `yaml:"requests_per_second" validate:"gte=0"`
}

// DatabaseConfig selects the result store.
type DatabaseConfig struct {
	Driver string `yaml:"driver" validate:"oneof=postgres sqlite"`
	DSN    string `yaml:"dsn" validate:"required"`
}

// CacheConfig sizes the probe response cache.
type CacheConfig struct {
	Size int `yaml:"size" validate:"gte=0"`
}

// LogConfig controls the diagnostic logger.
type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=console json"`
}

// OTELConfig points telemetry at an OTLP collector. Empty endpoint disables it.
type OTELConfig struct {
	Endpoint string `yaml:"endpoint"`
	Headers  string `yaml:"headers"` // Comma-separated key=value pairs, e.g. "Authorization=Basic abc123"
}

// Defaults returns a Config with all default values.
func Defaults() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:    "anthropic",
			MaxTokens:   4096,
			Temperature: 0,
			Timeout:     "2m",
			Retries:     2,
		},
		TMDB: TMDBConfig{
			Language:          "en-US",
			RequestsPerSecond: 20,
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    "reel-judge.db",
		},
		Cache: CacheConfig{Size: 100},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads configuration from file and environment variables.
// Environment variables always override file values.
func Load() (*Config, error) {
	return LoadFrom("")
}

// LoadFrom is like Load but reads the named file instead of searching.
// An empty path falls back to the search order.
func LoadFrom(path string) (*Config, error) {
	cfg := Defaults()

	path, data, err := findConfigFile(path)
	switch {
	case err == nil:
		var fileCfg Config
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
		cfg.ConfigFile = path
		mergeFile(cfg, &fileCfg)
	case path != "":
		// An explicitly named file must exist.
		return nil, err
	}

	if err := mergeEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Finalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Finalize parses derived fields and validates the result. Call it again
// after applying flag overrides.
func (c *Config) Finalize() error {
	if c.LLM.Model == "" {
		c.LLM.Model = DefaultModel(c.LLM.Provider)
	}
	var err error
	c.LLM.TimeoutDuration, err = parseDurationOrDisable(c.LLM.Timeout, 2*time.Minute)
	if err != nil {
		return fmt.Errorf("invalid llm timeout %q: %w", c.LLM.Timeout, err)
	}
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// findConfigFile searches for a config file and returns its path and contents.
// When an explicit path is unreadable, path is returned with the error.
func findConfigFile(explicit string) (string, []byte, error) {
	if explicit == "" {
		explicit = os.Getenv("REEL_JUDGE_CONFIG")
	}
	if path := explicit; path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return path, nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		return path, data, nil
	}

	if data, err := os.ReadFile(".reel-judge.yaml"); err == nil {
		return ".reel-judge.yaml", data, nil
	}

	if home, err := os.UserHomeDir(); err == nil {
		path := filepath.Join(home, ".config", "reel-judge", "config.yaml")
		if data, err := os.ReadFile(path); err == nil {
			return path, data, nil
		}
	}

	return "", nil, fmt.Errorf("no config file found")
}

// mergeFile applies non-zero file values onto cfg.
func mergeFile(cfg *Config, file *Config) {
	setString(&cfg.LLM.Provider, file.LLM.Provider)
	setString(&cfg.LLM.Model, file.LLM.Model)
	setString(&cfg.LLM.BaseURL, file.LLM.BaseURL)
	setString(&cfg.LLM.APIKey, file.LLM.APIKey)
	setString(&cfg.LLM.Timeout, file.LLM.Timeout)
	if file.LLM.MaxTokens > 0 {
		cfg.LLM.MaxTokens = file.LLM.MaxTokens
	}
	if file.LLM.Temperature > 0 {
		cfg.LLM.Temperature = file.LLM.Temperature
	}
	if file.LLM.Retries > 0 {
		cfg.LLM.Retries = file.LLM.Retries
	}

	setString(&cfg.TMDB.Token, file.TMDB.Token)
	setString(&cfg.TMDB.BaseURL, file.TMDB.BaseURL)
	setString(&cfg.TMDB.Language, file.TMDB.Language)
	if file.TMDB.RequestsPerSecond > 0 {
		cfg.TMDB.RequestsPerSecond = file.TMDB.RequestsPerSecond
	}

	setString(&cfg.Database.Driver, file.Database.Driver)
	setString(&cfg.Database.DSN, file.Database.DSN)

	if file.Cache.Size > 0 {
		cfg.Cache.Size = file.Cache.Size
	}

	setString(&cfg.Log.Level, file.Log.Level)
	setString(&cfg.Log.Format, file.Log.Format)

	setString(&cfg.OTEL.Endpoint, file.OTEL.Endpoint)
	setString(&cfg.OTEL.Headers, file.OTEL.Headers)
}

// mergeEnv applies environment variables onto cfg. Env always wins.
func mergeEnv(cfg *Config) error {
	setString(&cfg.LLM.Provider, os.Getenv("REEL_JUDGE_PROVIDER"))
	setString(&cfg.LLM.Model, os.Getenv("REEL_JUDGE_MODEL"))
	setString(&cfg.LLM.BaseURL, os.Getenv("REEL_JUDGE_BASE_URL"))
	setString(&cfg.LLM.APIKey, os.Getenv("REEL_JUDGE_API_KEY"))
	setString(&cfg.LLM.Timeout, os.Getenv("REEL_JUDGE_TIMEOUT"))
	if v := os.Getenv("REEL_JUDGE_MAX_TOKENS"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid REEL_JUDGE_MAX_TOKENS %q: %w", v, err)
		}
		cfg.LLM.MaxTokens = n
	}
	if v := os.Getenv("REEL_JUDGE_TEMPERATURE"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid REEL_JUDGE_TEMPERATURE %q: %w", v, err)
		}
		cfg.LLM.Temperature = f
	}
	if v := os.Getenv("REEL_JUDGE_RETRIES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid REEL_JUDGE_RETRIES %q: %w", v, err)
		}
		cfg.LLM.Retries = n
	}

	setString(&cfg.TMDB.Token, os.Getenv("REEL_JUDGE_TMDB_TOKEN"))
	setString(&cfg.TMDB.Language, os.Getenv("REEL_JUDGE_TMDB_LANGUAGE"))

	setString(&cfg.Database.Driver, os.Getenv("REEL_JUDGE_DB_DRIVER"))
	setString(&cfg.Database.DSN, os.Getenv("REEL_JUDGE_DB_DSN"))

	if v := os.Getenv("REEL_JUDGE_CACHE_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid REEL_JUDGE_CACHE_SIZE %q: %w", v, err)
		}
		cfg.Cache.Size = n
	}

	setString(&cfg.Log.Level, strings.ToLower(os.Getenv("REEL_JUDGE_LOG_LEVEL")))
	setString(&cfg.Log.Format, strings.ToLower(os.Getenv("REEL_JUDGE_LOG_FORMAT")))

	setString(&cfg.OTEL.Endpoint, os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"))
	setString(&cfg.OTEL.Headers, os.Getenv("OTEL_EXPORTER_OTLP_HEADERS"))

	// Provider-specific fallbacks
	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = ProviderAPIKey(cfg.LLM.Provider)
	}
	if cfg.TMDB.Token == "" {
		cfg.TMDB.Token = os.Getenv("TMDB_API_TOKEN")
	}
	if cfg.Database.Driver == "postgres" && os.Getenv("REEL_JUDGE_DB_DSN") == "" {
		setString(&cfg.Database.DSN, os.Getenv("DATABASE_URL"))
	}
	return nil
}

// DefaultModel returns the model used when none is configured.
func DefaultModel(provider string) string {
	switch provider {
	case "openai":
		return "gpt-4o-mini"
	case "google":
		return "gemini-2.5-flash"
	default:
		return "claude-sonnet-4-5"
	}
}

// ProviderAPIKey returns the key from the provider's conventional env var.
func ProviderAPIKey(provider string) string {
	switch provider {
	case "anthropic":
		return os.Getenv("ANTHROPIC_API_KEY")
	case "openai":
		return os.Getenv("OPENAI_API_KEY")
	case "google":
		if v := os.Getenv("GEMINI_API_KEY"); v != "" {
			return v
		}
		return os.Getenv("GOOGLE_API_KEY")
	}
	return ""
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// parseDurationOrDisable parses a duration string. "0", "off", "disable" return 0.
// Empty string returns the fallback value.
func parseDurationOrDisable(s string, fallback time.Duration) (time.Duration, error) {
	if s == "" {
		return fallback, nil
	}
	if s == "0" || s == "off" || s == "disable" {
		return 0, nil
	}
	return time.ParseDuration(s)
}
