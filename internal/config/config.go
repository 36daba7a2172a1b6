package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the recall chat service configuration.
type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Database DatabaseConfig `yaml:"database"`
	Cache    CacheConfig    `yaml:"cache"`
	OpenAI   OpenAIConfig   `yaml:"openai"`
	Chat     ChatConfig     `yaml:"chat"`
	Channels ChannelsConfig `yaml:"channels"`
	Auth     AuthConfig     `yaml:"auth"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds the Postgres connection settings for the corpus
// store. The store is read-only for this service; the ingestion pipeline
// owns the schema.
type DatabaseConfig struct {
	URL              string `yaml:"url"`
	MaxConns         int    `yaml:"max_conns"`
	ReadinessTimeout int    `yaml:"readiness_timeout_sec"`
}

// CacheConfig holds the optional Redis embedding-cache settings.
// Empty addrs disables caching.
type CacheConfig struct {
	Addrs    []string `yaml:"addrs"`
	Password string   `yaml:"password"`
	TTLHours int      `yaml:"ttl_hours"`
}

// OpenAIConfig holds the embedding and chat-completion provider settings.
type OpenAIConfig struct {
	APIKey              string `yaml:"api_key"`
	BaseURL             string `yaml:"base_url"`
	EmbeddingModel      string `yaml:"embedding_model"`
	EmbeddingDimensions int    `yaml:"embedding_dimensions"`
	ChatModel           string `yaml:"chat_model"`
}

// ChatConfig holds the retrieval pipeline settings.
type ChatConfig struct {
	MatchThreshold       float64 `yaml:"match_threshold"`         // minimum chunk similarity
	MatchCount           int     `yaml:"match_count"`             // chunks fetched from the store
	DisplayLimit         int     `yaml:"display_limit"`           // chunks kept after sorting
	MaxSources           int     `yaml:"max_sources"`             // cited sources cap
	KeywordLimit         int     `yaml:"keyword_limit"`           // token-match item cap
	RecencyLimit         int     `yaml:"recency_limit"`           // recency-fallback item cap
	MaxAnswerTokens      int     `yaml:"max_answer_tokens"`
	Temperature          float32 `yaml:"temperature"`
	EmbedTimeoutSec      int     `yaml:"embed_timeout_sec"`
	SearchTimeoutSec     int     `yaml:"search_timeout_sec"`
	CompletionTimeoutSec int     `yaml:"completion_timeout_sec"`
}

// ChannelsConfig holds per-channel overrides. Each channel is a thin
// adapter over the same pipeline; only the threshold may differ.
type ChannelsConfig struct {
	Webhook WebhookConfig `yaml:"webhook"`
}

// WebhookConfig holds messaging-webhook channel settings.
type WebhookConfig struct {
	MatchThreshold float64 `yaml:"match_threshold"` // 0 = inherit chat.match_threshold
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		// Answer generation can run tens of seconds.
		c.HTTP.WriteTimeoutSec = 90
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.MaxConns <= 0 {
		c.Database.MaxConns = 10
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Cache.TTLHours <= 0 {
		c.Cache.TTLHours = 72
	}
	// Unset ${VAR:-} expansions leave empty strings behind.
	addrs := c.Cache.Addrs[:0]
	for _, a := range c.Cache.Addrs {
		if a != "" {
			addrs = append(addrs, a)
		}
	}
	c.Cache.Addrs = addrs
	if c.OpenAI.EmbeddingModel == "" {
		c.OpenAI.EmbeddingModel = "text-embedding-3-small"
	}
	if c.OpenAI.ChatModel == "" {
		c.OpenAI.ChatModel = "gpt-4o-mini"
	}
	if c.Chat.MatchThreshold <= 0 {
		c.Chat.MatchThreshold = 0.75
	}
	if c.Chat.MatchCount <= 0 {
		c.Chat.MatchCount = 10
	}
	if c.Chat.DisplayLimit <= 0 {
		c.Chat.DisplayLimit = 8
	}
	if c.Chat.MaxSources <= 0 {
		c.Chat.MaxSources = 3
	}
	if c.Chat.KeywordLimit <= 0 {
		c.Chat.KeywordLimit = 3
	}
	if c.Chat.RecencyLimit <= 0 {
		c.Chat.RecencyLimit = 10
	}
	if c.Chat.MaxAnswerTokens <= 0 {
		c.Chat.MaxAnswerTokens = 1500
	}
	if c.Chat.Temperature <= 0 {
		c.Chat.Temperature = 0.3
	}
	if c.Chat.EmbedTimeoutSec <= 0 {
		c.Chat.EmbedTimeoutSec = 10
	}
	if c.Chat.SearchTimeoutSec <= 0 {
		c.Chat.SearchTimeoutSec = 5
	}
	if c.Chat.CompletionTimeoutSec <= 0 {
		c.Chat.CompletionTimeoutSec = 45
	}
	if c.Channels.Webhook.MatchThreshold <= 0 {
		c.Channels.Webhook.MatchThreshold = c.Chat.MatchThreshold
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if c.Database.URL == "" {
		return fmt.Errorf("database.url is required")
	}
	if c.OpenAI.APIKey == "" {
		return fmt.Errorf("openai.api_key is required")
	}
	if c.Chat.MatchThreshold > 1 {
		return fmt.Errorf("chat.match_threshold must be in (0, 1], got %v", c.Chat.MatchThreshold)
	}
	if c.Channels.Webhook.MatchThreshold > 1 {
		return fmt.Errorf("channels.webhook.match_threshold must be in (0, 1], got %v",
			c.Channels.Webhook.MatchThreshold)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
