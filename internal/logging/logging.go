package logging

import (
	"log/slog"
	"os"
)

// Init installs the process-wide slog default. Warnings and above are logged
// by default; verbose mode enables debug output.
func Init(verbose bool) {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	slog.SetDefault(slog.New(handler))
}
