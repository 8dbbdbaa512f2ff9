package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Config selects the log level, format and destinations
type Config struct {
	Level         slog.Level
	LogFile       string
	LogToStderr   bool
	AlsoLogStderr bool
	Format        string // "json" or "text"
}

// Attribute keys whose values are credentials. Tokens keep a short prefix
// so access problems can still be traced; everything else is masked.
var sensitiveKeys = map[string]func(string) string{
	"token":        TokenPrefix,
	"access_token": TokenPrefix,
	"init_data":    mask,
	"password":     mask,
	"bot_token":    mask,
	"secret":       mask,
	"signing_key":  mask,
}

// SetupLogger creates the process logger. Source locations are added at
// debug level only.
func SetupLogger(cfg Config) (*slog.Logger, error) {
	w, err := openOutput(cfg)
	if err != nil {
		return nil, err
	}

	opts := &slog.HandlerOptions{
		Level:       cfg.Level,
		AddSource:   cfg.Level <= slog.LevelDebug,
		ReplaceAttr: redact,
	}

	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler), nil
}

func openOutput(cfg Config) (io.Writer, error) {
	var writers []io.Writer
	if cfg.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		writers = append(writers, f)
	}
	if cfg.LogToStderr || cfg.AlsoLogStderr || len(writers) == 0 {
		writers = append(writers, os.Stderr)
	}
	if len(writers) == 1 {
		return writers[0], nil
	}
	return io.MultiWriter(writers...), nil
}

func redact(groups []string, a slog.Attr) slog.Attr {
	fn, ok := sensitiveKeys[strings.ToLower(a.Key)]
	if !ok || a.Value.Kind() != slog.KindString {
		return a
	}
	return slog.String(a.Key, fn(a.Value.String()))
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	return "[redacted]"
}

// ParseLevel converts a level name to slog.Level, defaulting to info
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// TokenPrefix shortens an opaque credential for log output.
func TokenPrefix(token string) string {
	if len(token) <= 8 {
		return token
	}
	return token[:8] + "..."
}
