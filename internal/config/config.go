package config

import (
	"fmt"
	"time"
)

// Config represents the application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Telegram  TelegramConfig  `yaml:"telegram"`
	Auth      AuthConfig      `yaml:"auth"`
	Session   SessionConfig   `yaml:"session"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Sheets    SheetsConfig    `yaml:"sheets"`
	Log       LogConfig       `yaml:"log"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host              string `yaml:"host" default:"0.0.0.0"`
	Port              int    `yaml:"port" default:"8080"`
	MetricsPort       int    `yaml:"metrics_port" default:"9090"`
	TemplatesPath     string `yaml:"templates_path" default:"web/templates"`
	BaseURL           string `yaml:"base_url"`
	TrustProxyHeaders bool   `yaml:"trust_proxy_headers"` // honor X-Forwarded-For for client IP
	NodeID            int64  `yaml:"node_id" default:"1"` // snowflake node
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Postgres PostgresConfig `yaml:"postgres"`
}

// PostgresConfig holds PostgreSQL-specific configuration
type PostgresConfig struct {
	URL      string `yaml:"url"` // takes precedence over the discrete fields
	Host     string `yaml:"host" default:"localhost"`
	Port     int    `yaml:"port" default:"5432"`
	Database string `yaml:"database" default:"studenthistory"`
	User     string `yaml:"user" default:"postgres"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode" default:"disable"` // disable, require, verify-ca, verify-full
}

// TelegramConfig holds bot configuration
type TelegramConfig struct {
	BotToken    string `yaml:"bot_token"`
	BotUsername string `yaml:"bot_username"`
	EnableBot   bool   `yaml:"enable_bot" default:"true"` // run the /start long-poll loop
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	InitDataMaxAge time.Duration `yaml:"init_data_max_age" default:"1h"`
	Admin          JWTConfig     `yaml:"admin"`
}

// JWTConfig holds admin JWT configuration
type JWTConfig struct {
	SigningKey string        `yaml:"signing_key"`
	Lifetime   time.Duration `yaml:"lifetime" default:"8h"`
}

// SessionConfig holds cookie configuration
type SessionConfig struct {
	Secret       string        `yaml:"secret"` // gorilla/sessions key for the admin cookie
	Secure       bool          `yaml:"secure" default:"true"`
	TokenMaxAge  time.Duration `yaml:"token_max_age" default:"8760h"`
	TelegramTTL  time.Duration `yaml:"telegram_ttl" default:"24h"`
	AdminMaxAge  time.Duration `yaml:"admin_max_age" default:"8h"`
	CookieDomain string        `yaml:"cookie_domain"`
}

// RateLimitConfig holds per-client request budgets
type RateLimitConfig struct {
	Enabled         bool          `yaml:"enabled" default:"true"`
	RequestsPerMin  int           `yaml:"requests_per_minute" default:"60"`
	LoginPerMin     int           `yaml:"login_per_minute" default:"5"`
	CleanupInterval time.Duration `yaml:"cleanup_interval" default:"60s"`
}

// SheetsConfig holds Google Sheets access configuration
type SheetsConfig struct {
	SpreadsheetID   string        `yaml:"spreadsheet_id"`
	CredentialsFile string        `yaml:"credentials_file" default:"credentials.json"`
	CacheTTL        time.Duration `yaml:"cache_ttl" default:"5m"`
	MaxRetries      int           `yaml:"max_retries" default:"3"`
	RetryBaseDelay  time.Duration `yaml:"retry_base_delay" default:"1s"`
	RequestTimeout  time.Duration `yaml:"request_timeout" default:"15s"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `yaml:"level" default:"info"`
	Format string `yaml:"format" default:"text"`
	File   string `yaml:"file"`
}

// ConnectionString returns the PostgreSQL connection string
func (p *PostgresConfig) ConnectionString() string {
	if p.URL != "" {
		return p.URL
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode)
}

// Address returns the HTTP listen address
func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// MetricsAddress returns the metrics listen address
func (s *ServerConfig) MetricsAddress() string {
	return fmt.Sprintf("%s:%d", s.Host, s.MetricsPort)
}

// BotConfigured reports whether a bot token has been supplied
func (t *TelegramConfig) BotConfigured() bool {
	return t.BotToken != "" && t.BotToken != "YOUR_TELEGRAM_BOT_TOKEN_HERE"
}
