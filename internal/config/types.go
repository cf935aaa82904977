package config

import (
	"net"
	"net/url"
	"strconv"
)

// GeminiConfig holds the upstream generative-language API settings.
type GeminiConfig struct {
	APIKey           string
	Model            string
	Temperature      float64
	MaxOutputTokens  int
	MaxAttempts      int
	BaseDelaySeconds int
	TimeoutSeconds   int
}

// GuardConfig holds the prompt-injection guard settings.
type GuardConfig struct {
	Enabled         bool
	Threshold       float64
	CacheMaxSize    int
	CacheTTLSeconds int
}

// LoggingConfig holds the logging settings.
type LoggingConfig struct {
	Level      string
	LogDir     string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// HTTPConfig holds the HTTP server settings.
type HTTPConfig struct {
	Host         string
	Port         int
	HTTP2Enabled bool
}

// CORSConfig holds the cross-origin settings. The frontend is served from the
// local filesystem, so all origins are allowed by default.
type CORSConfig struct {
	AllowOrigins []string
}

// DatabaseConfig holds the optional usage-accounting database settings.
type DatabaseConfig struct {
	Enabled                bool
	Host                   string
	Port                   int
	Name                   string
	User                   string
	Password               string
	FlushIntervalSeconds   int
	FlushMaxBackoffSeconds int
	FlushMaxPendingRecords int
}

// DSN returns the postgres connection string.
func (d DatabaseConfig) DSN() string {
	host := net.JoinHostPort(d.Host, strconv.Itoa(d.Port))
	u := &url.URL{
		Scheme: "postgresql",
		Host:   host,
		Path:   "/" + d.Name,
	}
	if d.Password == "" {
		u.User = url.User(d.User)
	} else {
		u.User = url.UserPassword(d.User, d.Password)
	}
	return u.String()
}

// Config is the full application configuration. Built once at process start
// and passed down explicitly; never read from ambient globals afterwards.
type Config struct {
	Gemini   GeminiConfig
	Guard    GuardConfig
	Logging  LoggingConfig
	HTTP     HTTPConfig
	CORS     CORSConfig
	Database DatabaseConfig
}
