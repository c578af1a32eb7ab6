package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/septivank/farm-telemetry/internal/config"
)

const (
	startTimeout = 30 * time.Second
	stopTimeout  = 30 * time.Second
)

func main() {
	loadEnvFile()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "invalid configuration:", err)
		os.Exit(1)
	}

	app := fx.New(
		fx.Supply(cfg),
		fx.WithLogger(fxLogger),
		coreOptions(),
		brokerOptions(cfg),
	)

	// Setup signal handling for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger := startupLogger(func() (*zap.Logger, error) { return newLogger(cfg) })
	logger.Info("starting farm telemetry service",
		zap.String("addr", cfg.HTTP.Addr),
		zap.String("storage", cfg.Storage.Backend),
		zap.Bool("rabbitmq", cfg.RabbitMQ.Enabled()),
		zap.String("timezone", cfg.Location.String()),
	)

	startCtx, startCancel := context.WithTimeout(context.Background(), startTimeout)
	defer startCancel()

	if err := app.Start(startCtx); err != nil {
		if errors.Is(startCtx.Err(), context.DeadlineExceeded) {
			logger.Error("application did not start within the timeout; check database and broker reachability",
				zap.Duration("timeout", startTimeout))
		}
		logger.Fatal("failed to start application", zap.Error(err))
	}

	<-ctx.Done()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), stopTimeout)
	defer stopCancel()
	if err := app.Stop(stopCtx); err != nil {
		logger.Error("error stopping application", zap.Error(err))
	}
}

// loadEnvFile loads the first .env found in the working directory or its
// two parents. A missing file is fine in containers.
func loadEnvFile() {
	candidates := []string{".env"}
	if workDir, err := os.Getwd(); err == nil {
		parentDir := filepath.Dir(workDir)
		candidates = append(candidates,
			filepath.Join(workDir, ".env"),
			filepath.Join(parentDir, ".env"),
			filepath.Join(filepath.Dir(parentDir), ".env"),
		)
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err == nil {
			absPath, _ := filepath.Abs(path)
			fmt.Printf("Loaded environment from: %s\n", absPath)
			return
		}
	}
	fmt.Println("No .env file found, using system environment variables")
}
