package config

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/joho/godotenv"
)

var (
	configOnce  sync.Once
	configValue *Config
)

// Load reads the environment-based configuration exactly once.
func Load() *Config {
	configOnce.Do(func() {
		_ = godotenv.Load()
		configValue = buildConfig()
	})
	return configValue
}

// ProvideConfig loads and validates the configuration.
func ProvideConfig() (*Config, error) {
	cfg := Load()
	if cfg == nil {
		return nil, errors.New("config not initialized")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks configuration consistency. An empty API key is valid (the
// upstream call will fail, but the server still serves its status endpoint).
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if c.Gemini.Model == "" {
		return errors.New("gemini model must not be empty")
	}
	if c.Gemini.MaxAttempts < 1 {
		return fmt.Errorf("gemini max attempts must be positive: %d", c.Gemini.MaxAttempts)
	}
	if c.Gemini.BaseDelaySeconds < 1 {
		return fmt.Errorf("gemini base delay must be positive: %d", c.Gemini.BaseDelaySeconds)
	}
	return nil
}

// LogEnvStatus logs the effective environment configuration at startup.
func LogEnvStatus(cfg *Config, logger *slog.Logger) {
	if logger == nil || cfg == nil {
		return
	}

	logger.Debug(
		"env_status",
		"env_file", fileExists(".env"),
		"api_key", maskSecret(cfg.Gemini.APIKey),
		"model", cfg.Gemini.Model,
		"max_attempts", cfg.Gemini.MaxAttempts,
		"base_delay_seconds", cfg.Gemini.BaseDelaySeconds,
		"timeout", cfg.Gemini.TimeoutSeconds,
		"guard_enabled", cfg.Guard.Enabled,
		"db_enabled", cfg.Database.Enabled,
	)

	if cfg.Gemini.APIKey == "" {
		logger.Warn("env_missing_gemini_api_key")
	}
}

func buildConfig() *Config {
	return &Config{
		Gemini: GeminiConfig{
			APIKey:           getEnvString("GEMINI_API_KEY", ""),
			Model:            getEnvString("GEMINI_MODEL", "gemini-2.5-flash-preview-05-20"),
			Temperature:      getEnvFloat("GEMINI_TEMPERATURE", 0.7),
			MaxOutputTokens:  getEnvInt("GEMINI_MAX_TOKENS", 8192),
			MaxAttempts:      max(1, getEnvInt("GEMINI_MAX_ATTEMPTS", 5)),
			BaseDelaySeconds: max(1, getEnvInt("GEMINI_BASE_DELAY_SECONDS", 1)),
			TimeoutSeconds:   getEnvInt("GEMINI_TIMEOUT", 60),
		},
		Guard: GuardConfig{
			Enabled:         getEnvBool("GUARD_ENABLED", true),
			Threshold:       getEnvFloat("GUARD_THRESHOLD", 0.85),
			CacheMaxSize:    getEnvInt("GUARD_CACHE_SIZE", 10000),
			CacheTTLSeconds: getEnvInt("GUARD_CACHE_TTL", 3600),
		},
		Logging: LoggingConfig{
			Level:      getEnvString("LOG_LEVEL", "info"),
			LogDir:     getEnvString("LOG_DIR", ""),
			MaxSizeMB:  getEnvInt("LOG_FILE_MAX_SIZE_MB", 1),
			MaxBackups: getEnvInt("LOG_FILE_MAX_BACKUPS", 30),
			MaxAgeDays: getEnvInt("LOG_FILE_MAX_AGE_DAYS", 7),
			Compress:   getEnvBool("LOG_FILE_COMPRESS", true),
		},
		HTTP: HTTPConfig{
			Host:         getEnvString("HTTP_HOST", "127.0.0.1"),
			Port:         getEnvInt("HTTP_PORT", 5000),
			HTTP2Enabled: getEnvBool("HTTP2_ENABLED", true),
		},
		CORS: CORSConfig{
			AllowOrigins: getEnvList("CORS_ALLOW_ORIGINS", []string{"*"}),
		},
		Database: DatabaseConfig{
			Enabled:                getEnvBool("DB_ENABLED", false),
			Host:                   getEnvString("DB_HOST", "localhost"),
			Port:                   getEnvInt("DB_PORT", 5432),
			Name:                   getEnvString("DB_NAME", "medibot"),
			User:                   getEnvString("DB_USER", "medibot"),
			Password:               getEnvString("DB_PASSWORD", ""),
			FlushIntervalSeconds:   max(1, getEnvInt("DB_USAGE_FLUSH_INTERVAL_SECONDS", 1)),
			FlushMaxBackoffSeconds: getEnvInt("DB_USAGE_FLUSH_MAX_BACKOFF_SECONDS", 60),
			FlushMaxPendingRecords: max(1, getEnvInt("DB_USAGE_FLUSH_MAX_PENDING_RECORDS", 50)),
		},
	}
}
