package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// expandEnvVars expands environment variables in the format ${VAR} or $VAR
func expandEnvVars(data []byte) []byte {
	return []byte(os.ExpandEnv(string(data)))
}

// DefaultConfigPaths defines the default locations to search for configuration files
var DefaultConfigPaths = []string{
	"./config.yaml",
	"./config.yml",
	"./configs/config.yaml",
	"./configs/config.yml",
	"/etc/studenthistory/config.yaml",
	"/etc/studenthistory/config.yml",
}

// Defaults returns a configuration populated with default values
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host:          "0.0.0.0",
			Port:          8080,
			MetricsPort:   9090,
			TemplatesPath: "web/templates",
			NodeID:        1,
		},
		Database: DatabaseConfig{
			Postgres: PostgresConfig{
				Host:     "localhost",
				Port:     5432,
				Database: "studenthistory",
				User:     "postgres",
				SSLMode:  "disable",
			},
		},
		Telegram: TelegramConfig{
			EnableBot: true,
		},
		Auth: AuthConfig{
			InitDataMaxAge: time.Hour,
			Admin: JWTConfig{
				Lifetime: 8 * time.Hour,
			},
		},
		Session: SessionConfig{
			Secure:      true,
			TokenMaxAge: 365 * 24 * time.Hour,
			TelegramTTL: 24 * time.Hour,
			AdminMaxAge: 8 * time.Hour,
		},
		RateLimit: RateLimitConfig{
			Enabled:         true,
			RequestsPerMin:  60,
			LoginPerMin:     5,
			CleanupInterval: time.Minute,
		},
		Sheets: SheetsConfig{
			CredentialsFile: "credentials.json",
			CacheTTL:        5 * time.Minute,
			MaxRetries:      3,
			RetryBaseDelay:  time.Second,
			RequestTimeout:  15 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads the configuration from the specified file or default locations
func Load(configPath string) (*Config, error) {
	config := Defaults()

	// If no config path is provided, search in default locations
	if configPath == "" {
		configPath = findConfigFile()
	}

	if configPath != "" && fileExists(configPath) {
		fmt.Fprintf(os.Stderr, "[CONFIG] Loading config from: %s\n", configPath)
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		data = expandEnvVars(data)

		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else if configPath != "" {
		return nil, fmt.Errorf("config file not found: %s", configPath)
	} else {
		fmt.Fprintf(os.Stderr, "[CONFIG] No config file found, using defaults\n")
	}

	applyEnvOverrides(config)

	if err := validate(config); err != nil {
		return nil, err
	}

	return config, nil
}

// applyEnvOverrides lets deployment secrets bypass the config file
func applyEnvOverrides(config *Config) {
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		config.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_BOT_NAME"); v != "" {
		config.Telegram.BotUsername = v
	}
	if v := os.Getenv("ADMIN_SECRET_KEY"); v != "" {
		config.Auth.Admin.SigningKey = v
	}
	if v := os.Getenv("SESSION_SECRET"); v != "" {
		config.Session.Secret = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		config.Database.Postgres.URL = v
	}
	if v := os.Getenv("GOOGLE_SHEETS_SPREADSHEET_ID"); v != "" {
		config.Sheets.SpreadsheetID = v
	}
}

// findConfigFile searches for a configuration file in default locations
func findConfigFile() string {
	for _, path := range DefaultConfigPaths {
		if fileExists(path) {
			return path
		}
	}
	return ""
}

// fileExists checks if a file exists and is not a directory
func fileExists(filename string) bool {
	info, err := os.Stat(filename)
	if os.IsNotExist(err) {
		return false
	}
	return err == nil && !info.IsDir()
}

// validate performs basic validation on the configuration
func validate(config *Config) error {
	pg := config.Database.Postgres
	if pg.URL == "" {
		if pg.Host == "" {
			return fmt.Errorf("postgres host is required")
		}
		if pg.Database == "" {
			return fmt.Errorf("postgres database name is required")
		}
		if pg.User == "" {
			return fmt.Errorf("postgres user is required")
		}
	}

	if config.Server.Port < 1 || config.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if config.Server.MetricsPort < 0 || config.Server.MetricsPort > 65535 {
		return fmt.Errorf("server.metrics_port must be between 0 and 65535")
	}

	if config.Auth.InitDataMaxAge <= 0 {
		return fmt.Errorf("auth.init_data_max_age must be positive")
	}

	if config.RateLimit.Enabled {
		if config.RateLimit.RequestsPerMin < 1 {
			return fmt.Errorf("rate_limit.requests_per_minute must be at least 1")
		}
		if config.RateLimit.LoginPerMin < 1 {
			return fmt.Errorf("rate_limit.login_per_minute must be at least 1")
		}
	}

	if config.Sheets.MaxRetries < 1 {
		return fmt.Errorf("sheets.max_retries must be at least 1")
	}

	return nil
}
