package logger

import (
	"io"
	"log/slog"
	"os"
)

// Setup returns a JSON structured logger writing to w. Debug level is enabled
// in development.
func Setup(w io.Writer, environment string) *slog.Logger {
	level := slog.LevelInfo
	if environment == "development" {
		level = slog.LevelDebug
	}
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	})
	return slog.New(handler).With(slog.String("service", "nutrition-practice"))
}

// SetupDefault installs the JSON logger as the process-wide default.
// A nil writer means stdout.
func SetupDefault(w io.Writer, environment string) *slog.Logger {
	if w == nil {
		w = os.Stdout
	}
	logger := Setup(w, environment)
	slog.SetDefault(logger)
	return logger
}
