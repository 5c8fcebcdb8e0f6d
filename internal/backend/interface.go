package backend

import (
	"context"

	"payback/internal/blob"
	"payback/internal/metrics"
	"payback/internal/receipts"
	"payback/internal/services"
	"payback/internal/sheets"
	"payback/internal/storage"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult holds the wired ledger and the pieces the HTTP layer serves directly.
type BackendResult struct {
	Ledger   *services.LedgerService
	Store    *storage.SQLiteRepository
	Blobs    blob.Store
	Ingestor *receipts.Ingestor
	Cleanup  CleanupFunc
}

// MirrorResult holds the month writer used by the worker.
type MirrorResult struct {
	Writer sheets.MonthWriter
	Kind   string
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
	CreateMirror(ctx context.Context, config Config) (*MirrorResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	SQLiteDBPath string

	// Receipt storage
	Receipts   ReceiptBackend
	UploadsDir string
	S3         blob.S3Config
	Ingest     receipts.Options

	// Events, disabled when AMQPURL is empty
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Sheet mirror, in-memory when SpreadsheetID is empty
	SpreadsheetID   string
	SheetPrefix     string
	CredentialsJSON string
	CredentialsFile string

	// Metrics, when set, counts receipt ingestion outcomes
	Metrics *metrics.Metrics
}

// ReceiptBackend selects where receipt artifacts live.
type ReceiptBackend string

const (
	LocalReceipts ReceiptBackend = "local"
	S3Receipts    ReceiptBackend = "s3"
)

// String implements fmt.Stringer
func (rb ReceiptBackend) String() string {
	return string(rb)
}

// IsValid returns true if the receipt backend is known
func (rb ReceiptBackend) IsValid() bool {
	switch rb {
	case LocalReceipts, S3Receipts:
		return true
	default:
		return false
	}
}
