package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"payback/internal/core"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	now     func() time.Time
}

// NewSQLiteRepository opens the database file, creating its directory when
// needed, and applies pending migrations.
func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	repo := &SQLiteRepository{
		db:      db,
		queries: New(db),
		now:     time.Now,
	}

	return repo, nil
}

func dsn(path string) string {
	return fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_txlock=immediate", path)
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: ping: %v", core.ErrStorage, err)
	}
	return nil
}

func (r *SQLiteRepository) ListMembers(ctx context.Context) ([]core.Member, error) {
	rows, err := r.queries.ListMembers(ctx)
	if err != nil {
		return nil, classify("list members", err)
	}

	members := make([]core.Member, len(rows))
	for i, m := range rows {
		members[i] = toMember(m)
	}
	return members, nil
}

func (r *SQLiteRepository) GetMember(ctx context.Context, id int64) (core.Member, error) {
	m, err := r.queries.GetMember(ctx, id)
	if err != nil {
		return core.Member{}, classify(fmt.Sprintf("get member %d", id), err)
	}
	return toMember(m), nil
}

func (r *SQLiteRepository) AddMember(ctx context.Context, name string, email *string) (core.Member, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return core.Member{}, fmt.Errorf("add member: %w: %v", core.ErrValidation, core.ErrEmptyName)
	}

	m, err := r.queries.CreateMember(ctx, CreateMemberParams{
		Name:      name,
		Email:     nullString(core.NormalizeEmail(email)),
		CreatedAt: r.timestamp(),
	})
	if err != nil {
		return core.Member{}, classify("add member", err)
	}

	slog.InfoContext(ctx, "Member saved to SQLite", "id", m.ID, "name", m.Name)
	return toMember(m), nil
}

// DeleteMember removes the member together with the payments they made, the
// bills they paid and every payment on those bills, in one transaction.
// It returns the periods whose bills were touched.
func (r *SQLiteRepository) DeleteMember(ctx context.Context, id int64) ([]core.Period, error) {
	var periods []core.Period

	err := r.withTx(ctx, func(q *Queries) error {
		rows, err := q.ListPeriodsForMember(ctx, id)
		if err != nil {
			return fmt.Errorf("list affected periods: %w", err)
		}
		for _, p := range rows {
			periods = append(periods, core.Period{Month: int(p.Month), Year: int(p.Year)})
		}

		if err := q.DeletePaymentsForMember(ctx, id); err != nil {
			return fmt.Errorf("delete payments: %w", err)
		}
		if err := q.DeleteBillsByPayer(ctx, id); err != nil {
			return fmt.Errorf("delete bills: %w", err)
		}
		n, err := q.DeleteMember(ctx, id)
		if err != nil {
			return fmt.Errorf("delete member: %w", err)
		}
		if n == 0 {
			return sql.ErrNoRows
		}
		return nil
	})
	if err != nil {
		return nil, classify(fmt.Sprintf("delete member %d", id), err)
	}

	slog.InfoContext(ctx, "Member deleted with cascade", "id", id, "affected_periods", len(periods))
	return periods, nil
}

// GetBill returns the bill for the period joined with its payments, or nil
// when no bill exists.
func (r *SQLiteRepository) GetBill(ctx context.Context, period core.Period) (*core.BillDetail, error) {
	row, err := r.queries.GetBillByPeriod(ctx, int64(period.Month), int64(period.Year))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, classify("get bill "+period.String(), err)
	}

	payments, err := r.queries.ListPaymentsByBill(ctx, row.ID)
	if err != nil {
		return nil, classify("list payments "+period.String(), err)
	}

	detail := &core.BillDetail{
		MonthlyBill: toBill(row.MonthlyBill),
		PayerName:   row.PayerName,
		Payments:    make([]core.PaymentDetail, len(payments)),
	}
	for i, p := range payments {
		detail.Payments[i] = core.PaymentDetail{
			MemberPayment: toPayment(p.MemberPayment),
			MemberName:    p.MemberName,
		}
	}
	return detail, nil
}

func (r *SQLiteRepository) GetBillByID(ctx context.Context, id int64) (core.MonthlyBill, error) {
	b, err := r.queries.GetBill(ctx, id)
	if err != nil {
		return core.MonthlyBill{}, classify(fmt.Sprintf("get bill %d", id), err)
	}
	return toBill(b), nil
}

// UpsertBill inserts the bill or, when the period already has one, replaces
// payer and amount. The stored receipt is kept unless a new one is given.
func (r *SQLiteRepository) UpsertBill(ctx context.Context, in core.BillInput) (core.MonthlyBill, error) {
	if err := in.Validate(); err != nil {
		return core.MonthlyBill{}, fmt.Errorf("upsert bill: %w", err)
	}

	var saved MonthlyBill
	err := r.withTx(ctx, func(q *Queries) error {
		var err error
		saved, err = q.InsertBill(ctx, InsertBillParams{
			Month:            int64(in.Month),
			Year:             int64(in.Year),
			PayerID:          in.PayerID,
			TotalAmountCents: in.TotalAmount.Cents,
			ReceiptUrl:       nullString(in.ReceiptURL),
			CreatedAt:        r.timestamp(),
		})
		if !isConstraint(err, sqlite3.SQLITE_CONSTRAINT_UNIQUE) {
			return err
		}

		saved, err = q.UpdateBillByPeriod(ctx, UpdateBillByPeriodParams{
			PayerID:          in.PayerID,
			TotalAmountCents: in.TotalAmount.Cents,
			ReceiptUrl:       nullString(in.ReceiptURL),
			Month:            int64(in.Month),
			Year:             int64(in.Year),
		})
		return err
	})
	if err != nil {
		return core.MonthlyBill{}, classify("upsert bill", err)
	}

	slog.InfoContext(ctx, "Bill saved to SQLite",
		"id", saved.ID,
		"month", saved.Month,
		"year", saved.Year,
		"payer_id", saved.PayerID,
		"total_amount_cents", saved.TotalAmountCents)

	return toBill(saved), nil
}

// UpsertPayment has the same insert-or-update semantics as UpsertBill, keyed
// by bill and member.
func (r *SQLiteRepository) UpsertPayment(ctx context.Context, in core.PaymentInput) (core.MemberPayment, error) {
	if err := in.Validate(); err != nil {
		return core.MemberPayment{}, fmt.Errorf("upsert payment: %w", err)
	}

	var saved MemberPayment
	err := r.withTx(ctx, func(q *Queries) error {
		var err error
		saved, err = q.InsertPayment(ctx, InsertPaymentParams{
			BillID:      in.BillID,
			MemberID:    in.MemberID,
			AmountCents: in.Amount.Cents,
			ReceiptUrl:  nullString(in.ReceiptURL),
			CreatedAt:   r.timestamp(),
		})
		if !isConstraint(err, sqlite3.SQLITE_CONSTRAINT_UNIQUE) {
			return err
		}

		saved, err = q.UpdatePaymentByKey(ctx, UpdatePaymentByKeyParams{
			AmountCents: in.Amount.Cents,
			ReceiptUrl:  nullString(in.ReceiptURL),
			BillID:      in.BillID,
			MemberID:    in.MemberID,
		})
		return err
	})
	if err != nil {
		return core.MemberPayment{}, classify("upsert payment", err)
	}

	slog.InfoContext(ctx, "Payment saved to SQLite",
		"id", saved.ID,
		"bill_id", saved.BillID,
		"member_id", saved.MemberID,
		"amount_cents", saved.AmountCents)

	return toPayment(saved), nil
}

// DeletePayment removes the payment row if present. Deleting a missing row is not an error.
func (r *SQLiteRepository) DeletePayment(ctx context.Context, billID, memberID int64) error {
	if err := r.queries.DeletePayment(ctx, billID, memberID); err != nil {
		return classify("delete payment", err)
	}
	slog.InfoContext(ctx, "Payment deleted", "bill_id", billID, "member_id", memberID)
	return nil
}

func (r *SQLiteRepository) withTx(ctx context.Context, fn func(*Queries) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(r.queries.WithTx(tx)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) timestamp() string {
	return r.now().UTC().Format(time.RFC3339Nano)
}

// classify maps driver errors onto the core taxonomy.
func classify(op string, err error) error {
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("%s: %w", op, core.ErrNotFound)
	case isConstraint(err, sqlite3.SQLITE_CONSTRAINT_UNIQUE):
		return fmt.Errorf("%s: %w: %v", op, core.ErrConflict, err)
	case isConstraint(err, sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY):
		return fmt.Errorf("%s: %w: referenced record does not exist", op, core.ErrValidation)
	case isConstraint(err, sqlite3.SQLITE_CONSTRAINT_CHECK), isConstraint(err, sqlite3.SQLITE_CONSTRAINT_NOTNULL):
		return fmt.Errorf("%s: %w: %v", op, core.ErrValidation, err)
	default:
		return fmt.Errorf("%s: %w: %v", op, core.ErrStorage, err)
	}
}

func isConstraint(err error, code int) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		return se.Code() == code
	}
	return false
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func parseTimestamp(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func toMember(m Member) core.Member {
	return core.Member{
		ID:        m.ID,
		Name:      m.Name,
		Email:     stringPtr(m.Email),
		CreatedAt: parseTimestamp(m.CreatedAt),
	}
}

func toBill(b MonthlyBill) core.MonthlyBill {
	return core.MonthlyBill{
		ID:          b.ID,
		Month:       int(b.Month),
		Year:        int(b.Year),
		PayerID:     b.PayerID,
		TotalAmount: core.Money{Cents: b.TotalAmountCents},
		ReceiptURL:  stringPtr(b.ReceiptUrl),
		CreatedAt:   parseTimestamp(b.CreatedAt),
	}
}

func toPayment(p MemberPayment) core.MemberPayment {
	return core.MemberPayment{
		ID:         p.ID,
		BillID:     p.BillID,
		MemberID:   p.MemberID,
		Amount:     core.Money{Cents: p.AmountCents},
		ReceiptURL: stringPtr(p.ReceiptUrl),
		CreatedAt:  parseTimestamp(p.CreatedAt),
	}
}
