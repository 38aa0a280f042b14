// Package config loads keyrank settings from defaults, an optional YAML file,
// KEYRANK_* environment variables and command-line flags, in increasing
// order of precedence.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/FranksOps/keyrank/internal/fingerprint"
	"github.com/FranksOps/keyrank/internal/phrase"
)

// EnvPrefix prefixes every environment override, e.g. KEYRANK_SEARCH_WINDOW.
const EnvPrefix = "KEYRANK"

// Config is the complete keyrank configuration.
type Config struct {
	Fetch    FetchConfig    `mapstructure:"fetch"`
	Search   SearchConfig   `mapstructure:"search"`
	Phrases  PhrasesConfig  `mapstructure:"phrases"`
	Keywords KeywordsConfig `mapstructure:"keywords"`
	Analysis AnalysisConfig `mapstructure:"analysis"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Serve    ServeConfig    `mapstructure:"serve"`
	Log      LogConfig      `mapstructure:"log"`
}

// FetchConfig controls outbound HTTP for page and SERP fetches.
type FetchConfig struct {
	Timeout       time.Duration `mapstructure:"timeout"`
	Fingerprint   string        `mapstructure:"fingerprint"`
	UserAgents    []string      `mapstructure:"user_agents"`
	ProxyFile     string        `mapstructure:"proxy_file"`
	RespectRobots bool          `mapstructure:"respect_robots"`
	MaxRedirects  int           `mapstructure:"max_redirects"`
	CookieJar     bool          `mapstructure:"cookie_jar"`
	MaxBodyBytes  int64         `mapstructure:"max_body_bytes"`
}

// SearchConfig selects and tunes the search results provider.
type SearchConfig struct {
	Provider          string  `mapstructure:"provider"`
	Window            int     `mapstructure:"window"`
	Concurrency       int     `mapstructure:"concurrency"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Jitter            float64 `mapstructure:"jitter"`
	APIKey            string  `mapstructure:"api_key"`
	EngineID          string  `mapstructure:"engine_id"`
	BaseURL           string  `mapstructure:"base_url"`
	Language          string  `mapstructure:"language"`
}

// PhrasesConfig selects the phrase extraction strategy.
type PhrasesConfig struct {
	Strategy   string       `mapstructure:"strategy"`
	MaxPhrases int          `mapstructure:"max_phrases"`
	OpenAI     OpenAIConfig `mapstructure:"openai"`
}

// OpenAIConfig configures the chat-completions phrase extractor.
type OpenAIConfig struct {
	APIKey  string        `mapstructure:"api_key"`
	BaseURL string        `mapstructure:"base_url"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// KeywordsConfig tunes candidate normalization.
type KeywordsConfig struct {
	// StopTerms replaces the built-in stop list when non-empty.
	StopTerms []string `mapstructure:"stop_terms"`
	// ExcludeTerms are added to the stop list.
	ExcludeTerms  []string `mapstructure:"exclude_terms"`
	MaxCandidates int      `mapstructure:"max_candidates"`
}

// AnalysisConfig bounds a single analysis.
type AnalysisConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

// StorageConfig selects where finished reports are archived.
type StorageConfig struct {
	Backend string `mapstructure:"backend"`
	DSN     string `mapstructure:"dsn"`
}

// MetricsConfig controls the Prometheus listener. Port 0 disables it.
type MetricsConfig struct {
	Port int `mapstructure:"port"`
}

// ServeConfig configures the web front end.
type ServeConfig struct {
	Addr string `mapstructure:"addr"`
}

// LogConfig controls the slog handler.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

var defaults = map[string]any{
	"fetch.timeout":              30 * time.Second,
	"fetch.fingerprint":          string(fingerprint.ProfileChrome),
	"fetch.user_agents":          []string{},
	"fetch.proxy_file":           "",
	"fetch.respect_robots":       false,
	"fetch.max_redirects":        10,
	"fetch.cookie_jar":           true,
	"fetch.max_body_bytes":       int64(8 << 20),
	"search.provider":            "google",
	"search.window":              20,
	"search.concurrency":         5,
	"search.requests_per_second": 0.5,
	"search.jitter":              0.3,
	"search.api_key":             "",
	"search.engine_id":           "",
	"search.base_url":            "",
	"search.language":            "en",
	"phrases.strategy":           string(phrase.StrategyHeuristic),
	"phrases.max_phrases":        phrase.DefaultMaxPhrases,
	"phrases.openai.api_key":     "",
	"phrases.openai.base_url":    phrase.DefaultOpenAIBaseURL,
	"phrases.openai.model":       phrase.DefaultOpenAIModel,
	"phrases.openai.timeout":     30 * time.Second,
	"keywords.stop_terms":        []string{},
	"keywords.exclude_terms":     []string{},
	"keywords.max_candidates":    0,
	"analysis.timeout":           2 * time.Minute,
	"storage.backend":            "none",
	"storage.dsn":                "",
	"metrics.port":               0,
	"serve.addr":                 ":8080",
	"log.level":                  "info",
	"log.format":                 "text",
}

// Load reads the configuration. path is optional; when set the file must
// exist. Flags in fs whose names appear in FlagKeys override every other
// source, but only when set on the command line.
func Load(path string, fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	for key, val := range defaults {
		v.SetDefault(key, val)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("phrases.openai.api_key", EnvPrefix+"_PHRASES_OPENAI_API_KEY", "OPENAI_API_KEY"); err != nil {
		return nil, fmt.Errorf("config: bind env: %w", err)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	if fs != nil {
		for name, key := range FlagKeys {
			if f := fs.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("config: bind flag %s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FlagKeys maps command-line flag names to configuration keys.
var FlagKeys = map[string]string{
	"timeout":        "analysis.timeout",
	"fetch-timeout":  "fetch.timeout",
	"fingerprint":    "fetch.fingerprint",
	"proxy-file":     "fetch.proxy_file",
	"respect-robots": "fetch.respect_robots",
	"provider":       "search.provider",
	"window":         "search.window",
	"concurrency":    "search.concurrency",
	"rps":            "search.requests_per_second",
	"language":       "search.language",
	"phrases":        "phrases.strategy",
	"max-phrases":    "phrases.max_phrases",
	"max-candidates": "keywords.max_candidates",
	"exclude":        "keywords.exclude_terms",
	"storage":        "storage.backend",
	"dsn":            "storage.dsn",
	"metrics-port":   "metrics.port",
	"addr":           "serve.addr",
	"log-level":      "log.level",
	"log-format":     "log.format",
}

var storageBackends = []string{"none", "sqlite", "postgres", "json", "csv"}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if c.Fetch.Timeout <= 0 {
		add("fetch.timeout must be positive")
	}
	if _, err := fingerprint.ParseProfile(c.Fetch.Fingerprint); err != nil {
		add("fetch.fingerprint: %w", err)
	}

	switch c.Search.Provider {
	case "google":
	case "customsearch":
		if c.Search.APIKey == "" || c.Search.EngineID == "" {
			add("search.api_key and search.engine_id are required for the customsearch provider")
		}
	default:
		add("search.provider must be google or customsearch, got %q", c.Search.Provider)
	}
	if c.Search.Window < 1 || c.Search.Window > 100 {
		add("search.window must be between 1 and 100, got %d", c.Search.Window)
	}
	if c.Search.Concurrency < 1 {
		add("search.concurrency must be at least 1, got %d", c.Search.Concurrency)
	}
	if c.Search.RequestsPerSecond < 0 {
		add("search.requests_per_second must not be negative")
	}
	if c.Search.Jitter < 0 || c.Search.Jitter > 1 {
		add("search.jitter must be between 0 and 1, got %g", c.Search.Jitter)
	}

	strategy, err := phrase.ParseStrategy(c.Phrases.Strategy)
	if err != nil {
		add("phrases.strategy: %w", err)
	}
	if strategy == phrase.StrategyOpenAI && c.Phrases.OpenAI.APIKey == "" {
		add("phrases.openai.api_key is required for the openai strategy")
	}
	if c.Phrases.MaxPhrases < 0 {
		add("phrases.max_phrases must not be negative")
	}
	if c.Keywords.MaxCandidates < 0 {
		add("keywords.max_candidates must not be negative")
	}
	if c.Analysis.Timeout <= 0 {
		add("analysis.timeout must be positive")
	}

	if !slices.Contains(storageBackends, c.Storage.Backend) {
		add("storage.backend must be one of %s, got %q", strings.Join(storageBackends, "|"), c.Storage.Backend)
	} else if c.Storage.Backend != "none" && c.Storage.DSN == "" {
		add("storage.dsn is required for the %s backend", c.Storage.Backend)
	}

	if c.Metrics.Port < 0 || c.Metrics.Port > 65535 {
		add("metrics.port out of range: %d", c.Metrics.Port)
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		add("log.level: %w", err)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		add("log.format must be text or json, got %q", c.Log.Format)
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// SlogLevel parses Level.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, err
	}
	return lvl, nil
}
