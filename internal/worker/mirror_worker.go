package worker

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"payback/internal/amqp"
	"payback/internal/core"
	"payback/internal/sheets"
)

// LedgerReader is the read side the mirror rebuilds month views from.
type LedgerReader interface {
	ListMembers(ctx context.Context) ([]core.Member, error)
	GetBill(ctx context.Context, period core.Period) (*core.BillDetail, error)
}

// MirrorWorker keeps one sheet tab per month in line with the ledger.
type MirrorWorker struct {
	ledger LedgerReader
	sheets sheets.MonthWriter
	now    func() time.Time
}

func NewMirrorWorker(ledger LedgerReader, writer sheets.MonthWriter) *MirrorWorker {
	return &MirrorWorker{
		ledger: ledger,
		sheets: writer,
		now:    time.Now,
	}
}

// HandleLedgerEvent rewrites every month the event touches. Membership changes
// move the split of the current month too.
func (w *MirrorWorker) HandleLedgerEvent(ctx context.Context, event *amqp.LedgerEvent) error {
	slog.InfoContext(ctx, "Processing ledger event",
		"type", event.Type,
		"periods", len(event.Periods),
		"bill_id", event.BillID,
		"member_id", event.MemberID)

	periods := slices.Clone(event.Periods)
	switch event.Type {
	case amqp.EventMemberAdded, amqp.EventMemberDeleted:
		periods = append(periods, core.NewPeriod(w.now()))
	case amqp.EventBillSet, amqp.EventPaymentSet, amqp.EventPaymentUnset:
	default:
		slog.WarnContext(ctx, "Ignoring unknown ledger event", "type", event.Type)
		return nil
	}

	return w.SyncPeriods(ctx, periods...)
}

// SyncPeriods mirrors each distinct period, stopping at the first failure.
func (w *MirrorWorker) SyncPeriods(ctx context.Context, periods ...core.Period) error {
	seen := make(map[core.Period]struct{}, len(periods))
	for _, p := range periods {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		if err := w.syncPeriod(ctx, p); err != nil {
			return fmt.Errorf("sync %s: %w", p, err)
		}
	}
	return nil
}

// StartupSync mirrors the current month so a worker that missed events
// catches up on the month people are looking at.
func (w *MirrorWorker) StartupSync(ctx context.Context) error {
	period := core.NewPeriod(w.now())
	if err := w.SyncPeriods(ctx, period); err != nil {
		return fmt.Errorf("startup sync: %w", err)
	}
	slog.InfoContext(ctx, "Startup sync completed", "period", period.String())
	return nil
}

func (w *MirrorWorker) syncPeriod(ctx context.Context, period core.Period) error {
	if err := period.Validate(); err != nil {
		slog.WarnContext(ctx, "Skipping invalid period", "period", period.String(), "error", err)
		return nil
	}

	bill, err := w.ledger.GetBill(ctx, period)
	if err != nil {
		return fmt.Errorf("get bill: %w", err)
	}
	if bill == nil {
		if err := w.sheets.ClearMonth(ctx, period); err != nil {
			return fmt.Errorf("clear month: %w", err)
		}
		slog.InfoContext(ctx, "Cleared mirrored month", "period", period.String())
		return nil
	}

	members, err := w.ledger.ListMembers(ctx)
	if err != nil {
		return fmt.Errorf("list members: %w", err)
	}

	ref, err := w.sheets.WriteMonth(ctx, core.BuildMonthView(period, members, bill))
	if err != nil {
		return fmt.Errorf("write month: %w", err)
	}
	slog.InfoContext(ctx, "Mirrored month", "period", period.String(), "ref", ref)
	return nil
}
