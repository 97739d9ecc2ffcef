package app

import (
	"log/slog"
	"os"
)

// NewLogger returns a slog.Logger configured from the environment.
// Production runs emit JSON regardless of LOG_FORMAT so log shippers
// never have to parse the text handler's output.
func NewLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{AddSource: true}
	if cfg != nil && (cfg.LogFormat == "json" || cfg.IsProduction()) {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
