package config

import (
	"os"
	"testing"
)

func validConfig() Config {
	return Config{
		HTTP:     HTTPConfig{Port: 8080},
		Database: DatabaseConfig{URL: "postgres://localhost:5432/recall"},
		OpenAI:   OpenAIConfig{APIKey: "test-key"},
	}
}

func TestValidate_Valid(t *testing.T) {
	cfg := validConfig()
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_InvalidPort(t *testing.T) {
	cfg := validConfig()
	cfg.HTTP.Port = 0

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for invalid port")
	}
}

func TestValidate_MissingDatabaseURL(t *testing.T) {
	cfg := validConfig()
	cfg.Database.URL = ""

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing database url")
	}
}

func TestValidate_MissingAPIKey(t *testing.T) {
	cfg := validConfig()
	cfg.OpenAI.APIKey = ""

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing api key")
	}
}

func TestValidate_ThresholdOutOfRange(t *testing.T) {
	cfg := validConfig()
	cfg.Chat.MatchThreshold = 1.5

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for threshold > 1")
	}
}

func TestApplyDefaults_Pipeline(t *testing.T) {
	cfg := validConfig()
	cfg.ApplyDefaults()

	if cfg.Chat.MatchThreshold != 0.75 {
		t.Errorf("match_threshold default = %v, want 0.75", cfg.Chat.MatchThreshold)
	}
	if cfg.Chat.MatchCount != 10 {
		t.Errorf("match_count default = %d, want 10", cfg.Chat.MatchCount)
	}
	if cfg.Chat.DisplayLimit != 8 {
		t.Errorf("display_limit default = %d, want 8", cfg.Chat.DisplayLimit)
	}
	if cfg.Chat.MaxSources != 3 {
		t.Errorf("max_sources default = %d, want 3", cfg.Chat.MaxSources)
	}
	if cfg.Chat.MaxAnswerTokens != 1500 {
		t.Errorf("max_answer_tokens default = %d, want 1500", cfg.Chat.MaxAnswerTokens)
	}
	if cfg.Chat.Temperature != 0.3 {
		t.Errorf("temperature default = %v, want 0.3", cfg.Chat.Temperature)
	}
}

func TestApplyDefaults_WebhookInheritsThreshold(t *testing.T) {
	cfg := validConfig()
	cfg.Chat.MatchThreshold = 0.6
	cfg.ApplyDefaults()

	if cfg.Channels.Webhook.MatchThreshold != 0.6 {
		t.Errorf("webhook threshold = %v, want inherited 0.6", cfg.Channels.Webhook.MatchThreshold)
	}
}

func TestApplyDefaults_WebhookOverrideKept(t *testing.T) {
	cfg := validConfig()
	cfg.Channels.Webhook.MatchThreshold = 0.5
	cfg.ApplyDefaults()

	if cfg.Channels.Webhook.MatchThreshold != 0.5 {
		t.Errorf("webhook threshold = %v, want 0.5", cfg.Channels.Webhook.MatchThreshold)
	}
}

func TestApplyDefaults_DropsEmptyCacheAddrs(t *testing.T) {
	cfg := validConfig()
	cfg.Cache.Addrs = []string{"", "localhost:6379", ""}
	cfg.ApplyDefaults()

	if len(cfg.Cache.Addrs) != 1 || cfg.Cache.Addrs[0] != "localhost:6379" {
		t.Errorf("cache addrs = %v, want only the non-empty one", cfg.Cache.Addrs)
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("RECALL_TEST_KEY", "sk-123")

	got := string(expandEnvVars([]byte("api_key: ${RECALL_TEST_KEY}")))
	if got != "api_key: sk-123" {
		t.Errorf("expandEnvVars = %q", got)
	}
}

func TestExpandEnvVars_Default(t *testing.T) {
	os.Unsetenv("RECALL_TEST_MISSING")

	got := string(expandEnvVars([]byte("level: ${RECALL_TEST_MISSING:-info}")))
	if got != "level: info" {
		t.Errorf("expandEnvVars = %q", got)
	}
}
