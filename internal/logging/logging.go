// Package logging installs the process-wide slog handler used by the commands.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// ParseLevel maps debug|info|warn|error to a slog level; anything else is info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Setup makes slog.Default write text lines to stdout and to a rotated
// filename. The returned closer flushes the file.
func Setup(level, filename string) (io.Closer, error) {
	return setup(os.Stdout, level, filename)
}

func setup(stdout io.Writer, level, filename string) (io.Closer, error) {
	if dir := filepath.Dir(filename); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
	}

	logWriter := &lumberjack.Logger{
		Filename:   filename,
		MaxSize:    25,
		MaxBackups: 10,
		MaxAge:     14,
		Compress:   true,
	}

	h := slog.NewTextHandler(io.MultiWriter(stdout, logWriter), &slog.HandlerOptions{Level: ParseLevel(level)})
	slog.SetDefault(slog.New(h))
	return logWriter, nil
}

// Close closes the log file from Setup, writing any failure to stderr.
func Close(c io.Closer) {
	closeTo(os.Stderr, c)
}

func closeTo(stderr io.Writer, c io.Closer) {
	if err := c.Close(); err != nil {
		if _, writeErr := io.WriteString(stderr, "log close failed: "+err.Error()+"\n"); writeErr != nil {
			slog.Debug("log close stderr write failed", "error", writeErr)
		}
	}
}
