package backend

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"payback/internal/config"
	"payback/internal/core"
	"payback/internal/metrics"
	"payback/internal/receipts"
	"payback/internal/services"
	"payback/internal/sheets/memory"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) Config {
	t.Helper()
	dir := t.TempDir()
	return Config{
		SQLiteDBPath: filepath.Join(dir, "payback.db"),
		Receipts:     LocalReceipts,
		UploadsDir:   filepath.Join(dir, "uploads"),
	}
}

func TestCreateBackendLocal(t *testing.T) {
	ctx := context.Background()
	res, err := NewFactory(nil).CreateBackend(ctx, testConfig(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = res.Cleanup() })

	require.NotNil(t, res.Ledger)
	require.NotNil(t, res.Ingestor)
	require.NoError(t, res.Ledger.Ping(ctx))

	m, err := res.Ledger.AddMember(ctx, services.AddMemberCommand{Name: "Alice"})
	require.NoError(t, err)
	assert.Equal(t, "Alice", m.Name)

	_, err = res.Store.GetMember(ctx, m.ID)
	require.NoError(t, err)
}

func TestCreateBackendCountsReceipts(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	cfg.Metrics = metrics.New()
	res, err := NewFactory(nil).CreateBackend(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = res.Cleanup() })

	alice, err := res.Ledger.AddMember(ctx, services.AddMemberCommand{Name: "Alice"})
	require.NoError(t, err)

	_, err = res.Ledger.SetBill(ctx, services.SetBillCommand{
		Month:       6,
		Year:        2024,
		PayerID:     alice.ID,
		TotalAmount: core.Money{Cents: 9000},
		Receipt:     &receipts.Upload{Data: []byte("%PDF"), ContentType: "application/pdf"},
	})
	require.ErrorIs(t, err, core.ErrUnsupportedMedia)

	expected := `
# HELP payback_receipts_ingested_total Receipt uploads by outcome.
# TYPE payback_receipts_ingested_total counter
payback_receipts_ingested_total{outcome="unsupported"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(cfg.Metrics.Registry(), strings.NewReader(expected), "payback_receipts_ingested_total"))
}

func TestCreateBackendRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Receipts = "ftp"
	_, err := NewFactory(nil).CreateBackend(context.Background(), cfg)
	require.Error(t, err)

	cfg = testConfig(t)
	cfg.Receipts = S3Receipts
	_, err = NewFactory(nil).CreateBackend(context.Background(), cfg)
	assert.ErrorContains(t, err, "S3 bucket is required")
}

func TestCreateMirrorFallsBackToMemory(t *testing.T) {
	res, err := NewFactory(nil).CreateMirror(context.Background(), testConfig(t))
	require.NoError(t, err)
	assert.Equal(t, "memory", res.Kind)
	_, ok := res.Writer.(*memory.Store)
	assert.True(t, ok)

	_, err = res.Writer.WriteMonth(context.Background(), core.BuildMonthView(core.Period{Month: 1, Year: 2025}, nil, nil))
	assert.NoError(t, err)
}

func TestFromAppConfig(t *testing.T) {
	_, err := FromAppConfig(nil)
	require.Error(t, err)

	app := &config.Config{
		SQLiteDBPath:       "/tmp/payback.db",
		ReceiptBackend:     "s3",
		S3Bucket:           "receipts",
		S3UsePathStyle:     true,
		MaxUploadBytes:     1024,
		ReceiptMaxWidth:    800,
		ReceiptMaxPixels:   4_000_000,
		ReceiptJPEGQuality: 70,
		GoogleSheetPrefix:  "Flat",
	}
	cfg, err := FromAppConfig(app)
	require.NoError(t, err)
	assert.Equal(t, S3Receipts, cfg.Receipts)
	assert.Equal(t, "receipts", cfg.S3.Bucket)
	assert.True(t, cfg.S3.UsePathStyle)
	assert.Equal(t, int64(1024), cfg.Ingest.MaxBytes)
	assert.Equal(t, 800, cfg.Ingest.MaxWidth)
	assert.Equal(t, int64(4_000_000), cfg.Ingest.MaxPixels)
	assert.Equal(t, 70, cfg.Ingest.Quality)
	assert.Equal(t, "Flat", cfg.SheetPrefix)

	app.ReceiptBackend = "ftp"
	_, err = FromAppConfig(app)
	require.Error(t, err)
}
