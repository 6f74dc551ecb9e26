package app

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

const serviceName = "odyssey-ledger"

// NewLogger builds the process logger for one entry point (api, worker, cli, migrate).
// Every record carries the service, the component and the reporting day offset.
func NewLogger(cfg *Config, component string) *slog.Logger {
	return newLogger(os.Stdout, cfg, component)
}

func newLogger(w io.Writer, cfg *Config, component string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: logLevel(cfg)}
	var handler slog.Handler
	if cfg != nil && cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		opts.AddSource = true
		handler = slog.NewTextHandler(w, opts)
	}
	attrs := []slog.Attr{slog.String("service", serviceName), slog.String("component", component)}
	if cfg != nil {
		attrs = append(attrs, slog.String("day_offset", cfg.LedgerDayOffset.String()))
	}
	return slog.New(handler.WithAttrs(attrs))
}

func logLevel(cfg *Config) slog.Level {
	if cfg == nil {
		return slog.LevelInfo
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(cfg.LogLevel))); err != nil {
		return slog.LevelInfo
	}
	return lvl
}
