package backend

import (
	"context"
	"fmt"
	"log/slog"

	"payback/internal/amqp"
	"payback/internal/blob"
	"payback/internal/metrics"
	"payback/internal/receipts"
	"payback/internal/services"
	gsheet "payback/internal/sheets/google"
	"payback/internal/sheets/memory"
	"payback/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger,
	}
}

// CreateBackend opens the database, the receipt store and the optional event
// publisher, and wires them into the ledger service.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	blobs, err := f.createBlobStore(ctx, config)
	if err != nil {
		return nil, err
	}

	sqliteRepo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	ingestor := receipts.NewIngestor(blobs, config.Ingest, f.logger)

	// A nil *amqp.Client must not reach the service as a non-nil interface
	var publisher services.EventPublisher
	if config.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
		if err != nil {
			f.logger.Warn("Failed to initialize AMQP client, continuing without events", "error", err)
		} else {
			publisher = amqpClient
			f.logger.Info("Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
		}
	}

	ledger := services.NewLedgerService(sqliteRepo, metrics.InstrumentIngestor(ingestor, config.Metrics), publisher)

	f.logger.Info("Initialized ledger backend",
		"db_path", config.SQLiteDBPath,
		"receipts", config.Receipts.String(),
		"amqp_enabled", publisher != nil)

	return &BackendResult{
		Ledger:   ledger,
		Store:    sqliteRepo,
		Blobs:    blobs,
		Ingestor: ingestor,
		Cleanup:  ledger.Close,
	}, nil
}

func (f *DefaultFactory) createBlobStore(ctx context.Context, config Config) (blob.Store, error) {
	switch config.Receipts {
	case LocalReceipts:
		local, err := blob.NewLocal(config.UploadsDir)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize uploads directory: %w", err)
		}
		f.logger.Info("Initialized local receipt store", "dir", local.Dir())
		return local, nil
	case S3Receipts:
		s3Store, err := blob.NewS3(ctx, config.S3, f.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize S3 receipt store: %w", err)
		}
		if err := s3Store.EnsureBucket(ctx); err != nil {
			return nil, fmt.Errorf("failed to ensure S3 bucket: %w", err)
		}
		f.logger.Info("Initialized S3 receipt store", "bucket", config.S3.Bucket, "endpoint", config.S3.Endpoint)
		return s3Store, nil
	default:
		return nil, fmt.Errorf("unsupported receipt backend: %s", config.Receipts)
	}
}

// CreateMirror returns the Google Sheets writer, or an in-memory one when no
// spreadsheet is configured.
func (f *DefaultFactory) CreateMirror(ctx context.Context, config Config) (*MirrorResult, error) {
	if config.SpreadsheetID == "" {
		f.logger.Warn("Google Sheets disabled - no GOOGLE_SPREADSHEET_ID provided, mirroring in memory")
		return &MirrorResult{Writer: memory.New(), Kind: "memory"}, nil
	}

	cli, err := gsheet.New(ctx, gsheet.Config{
		SpreadsheetID:   config.SpreadsheetID,
		SheetPrefix:     config.SheetPrefix,
		CredentialsJSON: config.CredentialsJSON,
		CredentialsFile: config.CredentialsFile,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}

	f.logger.Info("Initialized Google Sheets mirror", "spreadsheet_id", config.SpreadsheetID)
	return &MirrorResult{Writer: cli, Kind: "sheets"}, nil
}
