package backend

import (
	"fmt"

	"payback/internal/blob"
	"payback/internal/config"
	"payback/internal/receipts"
)

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	kind := ReceiptBackend(appConfig.ReceiptBackend)
	if !kind.IsValid() {
		return Config{}, fmt.Errorf("invalid receipt backend in config: %s", appConfig.ReceiptBackend)
	}

	return Config{
		SQLiteDBPath: appConfig.SQLiteDBPath,

		Receipts:   kind,
		UploadsDir: appConfig.UploadsDir,
		S3: blob.S3Config{
			Endpoint:     appConfig.S3Endpoint,
			Region:       appConfig.S3Region,
			Bucket:       appConfig.S3Bucket,
			Prefix:       appConfig.S3Prefix,
			AccessKey:    appConfig.S3AccessKey,
			SecretKey:    appConfig.S3SecretKey,
			UseSSL:       appConfig.S3UseSSL,
			UsePathStyle: appConfig.S3UsePathStyle,
		},
		Ingest: receipts.Options{
			MaxBytes:  appConfig.MaxUploadBytes,
			MaxWidth:  appConfig.ReceiptMaxWidth,
			MaxPixels: appConfig.ReceiptMaxPixels,
			Quality:   appConfig.ReceiptJPEGQuality,
		},

		AMQPURL:      appConfig.AMQPURL,
		AMQPExchange: appConfig.AMQPExchange,
		AMQPQueue:    appConfig.AMQPQueue,

		SpreadsheetID:   appConfig.GoogleSpreadsheetID,
		SheetPrefix:     appConfig.GoogleSheetPrefix,
		CredentialsJSON: appConfig.GoogleServiceAccountJSON,
		CredentialsFile: appConfig.GoogleServiceAccountFile,
	}, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if c.SQLiteDBPath == "" {
		return fmt.Errorf("SQLite database path is required")
	}

	switch c.Receipts {
	case LocalReceipts:
		if c.UploadsDir == "" {
			return fmt.Errorf("uploads directory is required for local receipts")
		}
	case S3Receipts:
		if c.S3.Bucket == "" {
			return fmt.Errorf("S3 bucket is required for s3 receipts")
		}
	default:
		return fmt.Errorf("invalid receipt backend: %s", c.Receipts)
	}

	return nil
}

// GetReceiptBackends returns all valid receipt backends
func GetReceiptBackends() []ReceiptBackend {
	return []ReceiptBackend{LocalReceipts, S3Receipts}
}
