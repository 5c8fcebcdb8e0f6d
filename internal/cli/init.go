// Package cli provides common CLI initialization utilities shared by
// cmd/payback and cmd/payback-worker.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"payback/internal/config"
	applog "payback/internal/log"
)

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// SetupLogger builds the process logger from LOG_LEVEL and LOG_FORMAT and
// sets it as the default. Unknown values fall back to info/text.
func SetupLogger(cfg *config.Config, component string) *applog.Logger {
	lc := applog.DefaultConfig()
	lc.Component = component
	if cfg != nil {
		if level, err := applog.ParseLevel(cfg.LogLevel); err == nil {
			lc.Level = level
		}
		if format, err := applog.ParseFormat(cfg.LogFormat); err == nil {
			lc.Format = format
		}
	}

	logger := applog.New(lc)
	applog.SetDefault(logger)
	return logger
}

// LoadAndValidateConfig loads configuration and runs the given validators.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig(validators ...func(*config.Config) error) *config.Config {
	cfg := config.Load()
	logger := SetupLogger(cfg, applog.ComponentApp)

	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", applog.FieldError, err)
		os.Exit(1)
	}
	for _, validate := range validators {
		if err := validate(cfg); err != nil {
			logger.Error("Configuration validation failed", applog.FieldError, err)
			os.Exit(1)
		}
	}
	return cfg
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}

// Task is a long running unit supervised by Run.
type Task struct {
	Name string
	// Run blocks until ctx is cancelled or the task fails.
	Run func(ctx context.Context) error
	// Stop, when set, is called with a deadline once shutdown starts.
	Stop func(ctx context.Context) error
}

// Run starts every task and blocks until a signal arrives or one task fails.
// Stop hooks then get shutdownTimeout to drain. Cancellation is not reported
// as an error.
func Run(ctx context.Context, logger *applog.Logger, shutdownTimeout time.Duration, tasks ...Task) error {
	ctx, stop := SignalContext(ctx)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	for _, task := range tasks {
		g.Go(func() error {
			logger.Info("Task started", "task", task.Name)
			err := task.Run(gctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("%s: %w", task.Name, err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutdown started", "timeout", shutdownTimeout.String())

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		var errs []error
		for _, task := range tasks {
			if task.Stop == nil {
				continue
			}
			if err := task.Stop(shutdownCtx); err != nil {
				errs = append(errs, fmt.Errorf("stop %s: %w", task.Name, err))
			}
		}
		return errors.Join(errs...)
	})

	err := g.Wait()
	if err != nil {
		applog.NewStructuredLogger(logger).LogError(ctx, "Shutdown with errors", err, logger.Component(), applog.OpShutdown, nil)
		return err
	}
	logger.Info("Shutdown complete")
	return nil
}
