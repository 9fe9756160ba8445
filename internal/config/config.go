package config

import (
	_ "embed"
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds application configuration loaded from defaults and environment variables
type Config struct {
	Env  string
	Port string

	DatabaseURL string
	RedisURL    string

	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration
	DBSlowQuery       time.Duration

	// Hosted auth provider
	SupabaseURL       string
	SupabaseAnonKey   string
	SupabaseJWTSecret string

	// Text generation
	LLMProvider  string
	LLMAPIKey    string
	LLMModel     string
	LLMBaseURL   string
	LLMMaxTokens int

	LogLevel  string
	LogFormat string
	LogFile   string

	NotesEncryptionKey string

	IntentionHorizonDays int
	ContentRetentionDays int

	PrecomputeSchedule string
	PruneSchedule      string
	SchedulerTimezone  string

	CORSOrigins []string
}

// Load reads configuration from the embedded defaults, then overrides with
// environment variables. PORT maps to "port", LLM_API_KEY to "llm_api_key".
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(rawbytes.Provider(defaultsYAML), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load default config: %w", err)
	}

	// Empty variables do not override defaults.
	if err := k.Load(env.ProviderWithValue("", ".", func(key, value string) (string, interface{}) {
		if value == "" {
			return "", nil
		}
		return strings.ToLower(key), value
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{
		Env:                  k.String("env"),
		Port:                 k.String("port"),
		DatabaseURL:          k.String("database_url"),
		RedisURL:             k.String("redis_url"),
		DBMaxOpenConns:       k.Int("db_max_open_conns"),
		DBMaxIdleConns:       k.Int("db_max_idle_conns"),
		DBConnMaxLifetime:    k.Duration("db_conn_max_lifetime"),
		DBSlowQuery:          k.Duration("db_slow_query"),
		SupabaseURL:          strings.TrimRight(k.String("supabase_url"), "/"),
		SupabaseAnonKey:      k.String("supabase_anon_key"),
		SupabaseJWTSecret:    k.String("supabase_jwt_secret"),
		LLMProvider:          strings.ToLower(k.String("llm_provider")),
		LLMAPIKey:            k.String("llm_api_key"),
		LLMModel:             k.String("llm_model"),
		LLMBaseURL:           k.String("llm_base_url"),
		LLMMaxTokens:         k.Int("llm_max_tokens"),
		LogLevel:             k.String("log_level"),
		LogFormat:            k.String("log_format"),
		LogFile:              k.String("log_file"),
		NotesEncryptionKey:   k.String("notes_encryption_key"),
		IntentionHorizonDays: k.Int("intention_horizon_days"),
		ContentRetentionDays: k.Int("content_retention_days"),
		PrecomputeSchedule:   k.String("precompute_schedule"),
		PruneSchedule:        k.String("prune_schedule"),
		SchedulerTimezone:    k.String("scheduler_timezone"),
		CORSOrigins:          splitList(k.String("cors_origins")),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// IsProduction reports whether the service runs with ENV=production
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func (c *Config) validate() error {
	switch c.LLMProvider {
	case "openai", "anthropic", "stub":
	default:
		return fmt.Errorf("unsupported LLM_PROVIDER %q (want openai, anthropic or stub)", c.LLMProvider)
	}
	if c.IntentionHorizonDays < 1 {
		return fmt.Errorf("INTENTION_HORIZON_DAYS must be at least 1, got %d", c.IntentionHorizonDays)
	}
	if c.ContentRetentionDays < 1 {
		return fmt.Errorf("CONTENT_RETENTION_DAYS must be at least 1, got %d", c.ContentRetentionDays)
	}
	if c.DBMaxOpenConns < 1 {
		return fmt.Errorf("DB_MAX_OPEN_CONNS must be positive, got %d", c.DBMaxOpenConns)
	}
	if c.DBMaxIdleConns > c.DBMaxOpenConns {
		return fmt.Errorf("DB_MAX_IDLE_CONNS (%d) exceeds DB_MAX_OPEN_CONNS (%d)", c.DBMaxIdleConns, c.DBMaxOpenConns)
	}
	if c.LLMMaxTokens < 1 {
		return fmt.Errorf("LLM_MAX_TOKENS must be positive, got %d", c.LLMMaxTokens)
	}
	return nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
