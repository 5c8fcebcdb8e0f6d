package main

import (
	"context"
	"errors"
	"net/http"
	"os"

	"payback/internal/backend"
	"payback/internal/cli"
	apphttp "payback/internal/http"
	applog "payback/internal/log"
	"payback/internal/metrics"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	cli.LoadEnvFile()

	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg, applog.ComponentApp)

	ctx := context.Background()
	reg := metrics.New()

	backendConfig, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", applog.FieldError, err)
		os.Exit(1)
	}
	backendConfig.Metrics = reg

	res, err := backend.NewFactory(logger.WithComponent(applog.ComponentBackend).Slog()).CreateBackend(ctx, backendConfig)
	if err != nil {
		logger.Error("Failed to initialize backend", applog.FieldError, err)
		os.Exit(1)
	}
	defer func() {
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup failed", applog.FieldError, err)
		}
	}()

	srv := apphttp.NewServer(apphttp.Options{
		Addr:               ":" + cfg.Port,
		Ledger:             res.Ledger,
		Blobs:              res.Blobs,
		MaxUploadBytes:     res.Ingestor.MaxBytes(),
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		TrustedProxies:     cfg.TrustedProxies,
		Metrics:            reg,
		Logger:             logger,
	})

	logger.Info("Starting payback server",
		"port", cfg.Port,
		"receipts", cfg.ReceiptBackend,
		"amqp_enabled", cfg.AMQPURL != "")

	err = cli.Run(ctx, logger, cfg.ShutdownTimeout, cli.Task{
		Name: "http",
		Run: func(context.Context) error {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
		Stop: srv.Shutdown,
	})
	if err != nil {
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}
