// Package logging configures the process-wide structured logger: JSON
// output to stdout plus a size-rotated file sink, grounded on the teacher
// repo's observability/logging package and its choice of lumberjack for
// log rotation.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// FileConfig controls the rotating file sink. A zero value disables the
// file sink entirely (stdout-only logging).
type FileConfig struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// Setup configures slog's default logger for JSON output tagged with the
// service name and environment, and returns it for direct use where a
// *slog.Logger is preferred over the package-level default.
func Setup(service, env string, file FileConfig) *slog.Logger {
	var sink io.Writer = os.Stdout
	if strings.TrimSpace(file.Path) != "" {
		rotator := &lumberjack.Logger{
			Filename:   file.Path,
			MaxSize:    maxOr(file.MaxSizeMB, 100),
			MaxBackups: file.MaxBackups,
			MaxAge:     file.MaxAgeDays,
			Compress:   file.Compress,
		}
		sink = io.MultiWriter(os.Stdout, rotator)
	}

	handler := slog.NewJSONHandler(sink, &slog.HandlerOptions{
		ReplaceAttr: func(groups []string, attr slog.Attr) slog.Attr {
			switch attr.Key {
			case slog.TimeKey:
				return slog.Attr{Key: "timestamp", Value: attr.Value}
			case slog.LevelKey:
				return slog.String("severity", strings.ToUpper(attr.Value.String()))
			case slog.MessageKey:
				return slog.Attr{Key: "message", Value: attr.Value}
			default:
				return attr
			}
		},
	})

	attrs := []any{slog.String("service", strings.TrimSpace(service))}
	if env = strings.TrimSpace(env); env != "" {
		attrs = append(attrs, slog.String("env", env))
	}

	logger := slog.New(handler).With(attrs...)
	slog.SetDefault(logger)
	return logger
}

func maxOr(v, fallback int) int {
	if v <= 0 {
		return fallback
	}
	return v
}
