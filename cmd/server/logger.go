package main

import (
	"fmt"
	"io"
	"os"

	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/septivank/farm-telemetry/internal/config"
	"github.com/septivank/farm-telemetry/internal/logging"
)

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	return logging.NewLogger(cfg.ServiceName, cfg.Debug)
}

// startupLogger builds the logger used outside the fx graph. A build failure
// is reported on stderr and a no-op logger is used instead.
func startupLogger(build func() (*zap.Logger, error)) *zap.Logger {
	return startupLoggerTo(os.Stderr, build)
}

func startupLoggerTo(stderr io.Writer, build func() (*zap.Logger, error)) *zap.Logger {
	logger, err := build()
	if err != nil || logger == nil {
		fmt.Fprintln(stderr, "logger setup failed, continuing without startup logs:", err)
		return zap.NewNop()
	}
	return logger
}

// fxLogger routes fx lifecycle events through zap
func fxLogger(logger *zap.Logger) fxevent.Logger {
	return &fxevent.ZapLogger{Logger: logger.Named("fx")}
}
