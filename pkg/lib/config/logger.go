package config

import (
	"io"
	"log/slog"

	"github.com/charmbracelet/log"
)

// Logger builds the root logger of a binary at the configured level.
func (c Config) Logger(w io.Writer, prefix string) *slog.Logger {
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		level = log.InfoLevel
	}
	handler := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		Prefix:          prefix,
		Level:           level,
	})
	return slog.New(handler)
}
