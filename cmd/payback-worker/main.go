package main

import (
	"context"
	"os"
	"time"

	"payback/internal/amqp"
	"payback/internal/backend"
	"payback/internal/cli"
	"payback/internal/config"
	"payback/internal/core"
	applog "payback/internal/log"
	"payback/internal/storage"
	"payback/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	cli.LoadEnvFile()

	cfg := cli.LoadAndValidateConfig((*config.Config).ValidateWorker)
	logger := cli.SetupLogger(cfg, applog.ComponentWorker)

	logger.Info("Starting payback-worker")
	ctx := context.Background()

	// Read month state straight from the ledger database
	sqliteRepo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", applog.FieldError, err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer sqliteRepo.Close()

	backendConfig, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", applog.FieldError, err)
		os.Exit(1)
	}
	mirror, err := backend.NewFactory(logger.WithComponent(applog.ComponentBackend).Slog()).CreateMirror(ctx, backendConfig)
	if err != nil {
		logger.Error("Failed to initialize sheet mirror", applog.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Sheet mirror ready", "kind", mirror.Kind)

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", applog.FieldError, err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	mirrorWorker := worker.NewMirrorWorker(sqliteRepo, mirror.Writer)
	events := applog.NewStructuredLogger(logger)

	// On startup, rebuild the current month in case events were missed
	logger.Info("Performing startup sync...")
	if err := mirrorWorker.StartupSync(ctx); err != nil {
		events.LogError(ctx, "Failed startup sync", err, applog.ComponentWorker, applog.OpStartup, nil)
		// Don't exit - continue with normal operation
	}

	err = cli.Run(ctx, logger, cfg.ShutdownTimeout,
		cli.Task{
			Name: "consumer",
			Run: func(ctx context.Context) error {
				return amqpClient.ConsumeLedgerEvents(ctx, mirrorWorker.HandleLedgerEvent)
			},
		},
		cli.Task{
			Name: "periodic-sync",
			Run: func(ctx context.Context) error {
				return periodicSync(ctx, events, mirrorWorker, cfg.SyncInterval)
			},
		},
	)
	if err != nil {
		os.Exit(1)
	}
	logger.Info("Worker shutdown complete")
}

// periodicSync rewrites the current month on every tick to recover from missed events.
func periodicSync(ctx context.Context, events *applog.StructuredLogger, w *worker.MirrorWorker, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			period := core.NewPeriod(time.Now())
			if err := w.SyncPeriods(ctx, period); err != nil {
				events.LogError(ctx, "Periodic sync failed", err, applog.ComponentWorker, applog.OpMirror,
					applog.NewFields().WithLedger(period.String(), 0, 0, 0))
			}
		}
	}
}
