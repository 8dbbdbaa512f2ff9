package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"TELEGRAM_BOT_TOKEN", "TELEGRAM_BOT_NAME", "ADMIN_SECRET_KEY", "SESSION_SECRET", "DATABASE_URL", "GOOGLE_SHEETS_SPREADSHEET_ID"} {
		t.Setenv(k, "")
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "server:\n  port: 8000\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 8000 {
		t.Errorf("port = %d, want 8000", cfg.Server.Port)
	}
	if cfg.Auth.InitDataMaxAge != time.Hour {
		t.Errorf("init data max age = %v, want 1h", cfg.Auth.InitDataMaxAge)
	}
	if cfg.RateLimit.RequestsPerMin != 60 || cfg.RateLimit.LoginPerMin != 5 {
		t.Errorf("rate limits = %d/%d, want 60/5", cfg.RateLimit.RequestsPerMin, cfg.RateLimit.LoginPerMin)
	}
	if cfg.Session.TelegramTTL != 24*time.Hour {
		t.Errorf("telegram ttl = %v", cfg.Session.TelegramTTL)
	}
	if cfg.Sheets.CacheTTL != 5*time.Minute {
		t.Errorf("cache ttl = %v", cfg.Sheets.CacheTTL)
	}
}

func TestLoadExpandsEnvAndOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PG_PASSWORD", "s3cret")
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	path := writeConfig(t, `
database:
  postgres:
    password: ${PG_PASSWORD}
telegram:
  bot_token: from-file
auth:
  init_data_max_age: 30m
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Database.Postgres.Password != "s3cret" {
		t.Errorf("password = %q", cfg.Database.Postgres.Password)
	}
	if cfg.Telegram.BotToken != "123:abc" {
		t.Errorf("bot token = %q, want env override", cfg.Telegram.BotToken)
	}
	if cfg.Auth.InitDataMaxAge != 30*time.Minute {
		t.Errorf("init data max age = %v", cfg.Auth.InitDataMaxAge)
	}
}

func TestLoadValidation(t *testing.T) {
	clearEnv(t)
	tests := []struct {
		name string
		body string
	}{
		{"bad port", "server:\n  port: 70000\n"},
		{"empty host", "database:\n  postgres:\n    host: \"\"\n"},
		{"zero login budget", "rate_limit:\n  login_per_minute: 0\n"},
		{"zero retries", "sheets:\n  max_retries: 0\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tt.body)); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	clearEnv(t)
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestConnectionStringPrefersURL(t *testing.T) {
	pg := PostgresConfig{URL: "postgres://u:p@db/x", Host: "ignored"}
	if got := pg.ConnectionString(); got != "postgres://u:p@db/x" {
		t.Errorf("got %q", got)
	}
	pg.URL = ""
	pg.Port = 5432
	pg.User = "u"
	pg.Database = "x"
	pg.SSLMode = "disable"
	want := "host=ignored port=5432 user=u password= dbname=x sslmode=disable"
	if got := pg.ConnectionString(); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestBotConfigured(t *testing.T) {
	for token, want := range map[string]bool{"": false, "YOUR_TELEGRAM_BOT_TOKEN_HERE": false, "1:x": true} {
		tc := TelegramConfig{BotToken: token}
		if got := tc.BotConfigured(); got != want {
			t.Errorf("BotConfigured(%q) = %v", token, got)
		}
	}
}
