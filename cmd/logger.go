package cmd

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.uber.org/fx/fxevent"

	"github.com/webitel/im-presence-service/config"
)

// ProvideLogger builds the process logger and installs it as the slog default.
// With log.otel the records go to the global OpenTelemetry logger provider.
func ProvideLogger(cfg *config.Config, level *slog.LevelVar) *slog.Logger {
	var logger *slog.Logger
	if cfg.Log.Otel {
		logger = otelslog.NewLogger(ServiceName)
	} else {
		logger = slog.New(newHandler(os.Stdout, cfg.Log.Format, level))
	}

	logger = logger.With("service", ServiceName, "version", version)
	slog.SetDefault(logger)
	return logger
}

func newHandler(w io.Writer, format string, level slog.Leveler) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(format, "text") {
		return slog.NewTextHandler(w, opts)
	}
	return slog.NewJSONHandler(w, opts)
}

// ProvideFxLogger keeps fx's own startup chatter at debug level.
func ProvideFxLogger(logger *slog.Logger) fxevent.Logger {
	l := &fxevent.SlogLogger{Logger: logger}
	l.UseLogLevel(slog.LevelDebug)
	return l
}

// ParseLevel maps a config string to a slog level, defaulting to info.
func ParseLevel(s string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo
	}
	return l
}
