package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"payback/internal/amqp"
	"payback/internal/core"
	applog "payback/internal/log"
	"payback/internal/receipts"
)

// Store is the persistence the ledger needs.
type Store interface {
	ListMembers(ctx context.Context) ([]core.Member, error)
	GetMember(ctx context.Context, id int64) (core.Member, error)
	AddMember(ctx context.Context, name string, email *string) (core.Member, error)
	DeleteMember(ctx context.Context, id int64) ([]core.Period, error)
	GetBill(ctx context.Context, period core.Period) (*core.BillDetail, error)
	GetBillByID(ctx context.Context, id int64) (core.MonthlyBill, error)
	UpsertBill(ctx context.Context, in core.BillInput) (core.MonthlyBill, error)
	UpsertPayment(ctx context.Context, in core.PaymentInput) (core.MemberPayment, error)
	DeletePayment(ctx context.Context, billID, memberID int64) error
	Ping(ctx context.Context) error
	Close() error
}

type ReceiptIngestor interface {
	Ingest(ctx context.Context, up receipts.Upload) (string, error)
	Discard(ctx context.Context, ref string) error
}

type EventPublisher interface {
	PublishLedgerEvent(ctx context.Context, event *amqp.LedgerEvent) error
	Close() error
}

type AddMemberCommand struct {
	Name  string  `json:"name" validate:"required,max=200"`
	Email *string `json:"email" validate:"omitempty,email,max=320"`
}

type SetBillCommand struct {
	Month       int              `json:"month" validate:"required,min=1,max=12"`
	Year        int              `json:"year" validate:"required,min=1970,max=9999"`
	PayerID     int64            `json:"payer_id" validate:"required,gt=0"`
	TotalAmount core.Money       `json:"total_amount" validate:"gt=0"`
	Receipt     *receipts.Upload `json:"-"`
}

type RecordPaymentCommand struct {
	BillID   int64            `json:"bill_id" validate:"required,gt=0"`
	MemberID int64            `json:"member_id" validate:"required,gt=0"`
	Amount   core.Money       `json:"amount" validate:"gt=0"`
	Receipt  *receipts.Upload `json:"-"`
}

// LedgerService orchestrates members, bills and payments across the store,
// receipt ingestion and the optional event publisher.
type LedgerService struct {
	store     Store
	receipts  ReceiptIngestor
	publisher EventPublisher
	validate  *validator.Validate
	log       *applog.StructuredLogger
}

func NewLedgerService(store Store, ingestor ReceiptIngestor, publisher EventPublisher) *LedgerService {
	return &LedgerService{
		store:     store,
		receipts:  ingestor,
		publisher: publisher,
		validate:  newValidator(),
		log:       applog.NewStructuredLogger(nil),
	}
}

func newValidator() *validator.Validate {
	v := validator.New()
	// Report JSON names so messages match request fields
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	// Money validates as its cent count
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if m, ok := field.Interface().(core.Money); ok {
			return m.Cents
		}
		return nil
	}, core.Money{})
	return v
}

// check runs struct validation and folds failures into core.ErrValidation.
func (s *LedgerService) check(cmd any) error {
	err := s.validate.Struct(cmd)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", core.ErrValidation, err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fe.Field()+" "+describe(fe))
	}
	return fmt.Errorf("%w: %s", core.ErrValidation, strings.Join(msgs, "; "))
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "is not a valid email"
	case "gt":
		return "must be greater than " + fe.Param()
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	default:
		return "is invalid"
	}
}

func (s *LedgerService) ListMembers(ctx context.Context) ([]core.Member, error) {
	members, err := s.store.ListMembers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	if members == nil {
		members = []core.Member{}
	}
	return members, nil
}

func (s *LedgerService) AddMember(ctx context.Context, cmd AddMemberCommand) (core.Member, error) {
	cmd.Name = strings.TrimSpace(cmd.Name)
	cmd.Email = core.NormalizeEmail(cmd.Email)
	if err := s.check(cmd); err != nil {
		return core.Member{}, fmt.Errorf("add member: %w", err)
	}

	m, err := s.store.AddMember(ctx, cmd.Name, cmd.Email)
	if err != nil {
		return core.Member{}, fmt.Errorf("add member: %w", err)
	}

	s.log.LogLedgerChange(ctx, applog.OpAddMember, applog.NewFields().WithLedger("", 0, m.ID, 0))
	// Every month's split depends on the member count
	s.publish(ctx, &amqp.LedgerEvent{Type: amqp.EventMemberAdded, MemberID: m.ID})
	return m, nil
}

// DeleteMember removes the member with every bill they paid and every
// payment made by them or on their bills. Deleting an unknown member is a no-op.
func (s *LedgerService) DeleteMember(ctx context.Context, id int64) error {
	if id <= 0 {
		return fmt.Errorf("delete member: %w: id must be positive", core.ErrValidation)
	}

	periods, err := s.store.DeleteMember(ctx, id)
	if errors.Is(err, core.ErrNotFound) {
		slog.DebugContext(ctx, "Member already absent", "member_id", id)
		return nil
	}
	if err != nil {
		return fmt.Errorf("delete member: %w", err)
	}

	s.log.LogLedgerChange(ctx, applog.OpDeleteMember, applog.NewFields().WithLedger("", 0, id, 0))
	event := amqp.NewLedgerEvent(amqp.EventMemberDeleted, periods...)
	event.MemberID = id
	s.publish(ctx, event)
	return nil
}

// GetBill returns nil without error when the period has no bill.
func (s *LedgerService) GetBill(ctx context.Context, period core.Period) (*core.BillDetail, error) {
	if err := period.Validate(); err != nil {
		return nil, fmt.Errorf("get bill: %w: %v", core.ErrValidation, err)
	}
	bill, err := s.store.GetBill(ctx, period)
	if err != nil {
		return nil, fmt.Errorf("get bill: %w", err)
	}
	return bill, nil
}

func (s *LedgerService) SetBill(ctx context.Context, cmd SetBillCommand) (core.MonthlyBill, error) {
	if err := s.check(cmd); err != nil {
		return core.MonthlyBill{}, fmt.Errorf("set bill: %w", err)
	}

	if err := s.memberExists(ctx, cmd.PayerID, "payer_id"); err != nil {
		return core.MonthlyBill{}, fmt.Errorf("set bill: %w", err)
	}

	ref, err := s.ingest(ctx, cmd.Receipt)
	if err != nil {
		return core.MonthlyBill{}, fmt.Errorf("set bill: %w", err)
	}

	bill, err := s.store.UpsertBill(ctx, core.BillInput{
		Month:       cmd.Month,
		Year:        cmd.Year,
		PayerID:     cmd.PayerID,
		TotalAmount: cmd.TotalAmount,
		ReceiptURL:  ref,
	})
	if err != nil {
		s.discard(ctx, ref)
		return core.MonthlyBill{}, fmt.Errorf("set bill: %w", err)
	}

	s.log.LogLedgerChange(ctx, applog.OpSetBill,
		applog.NewFields().WithLedger(bill.Period().String(), bill.ID, bill.PayerID, bill.TotalAmount.Cents))
	event := amqp.NewLedgerEvent(amqp.EventBillSet, bill.Period())
	event.BillID = bill.ID
	s.publish(ctx, event)
	return bill, nil
}

func (s *LedgerService) RecordPayment(ctx context.Context, cmd RecordPaymentCommand) (core.MemberPayment, error) {
	if err := s.check(cmd); err != nil {
		return core.MemberPayment{}, fmt.Errorf("record payment: %w", err)
	}

	bill, err := s.store.GetBillByID(ctx, cmd.BillID)
	if errors.Is(err, core.ErrNotFound) {
		return core.MemberPayment{}, fmt.Errorf("record payment: %w: bill_id %d does not exist", core.ErrValidation, cmd.BillID)
	}
	if err != nil {
		return core.MemberPayment{}, fmt.Errorf("record payment: %w", err)
	}
	if err := s.memberExists(ctx, cmd.MemberID, "member_id"); err != nil {
		return core.MemberPayment{}, fmt.Errorf("record payment: %w", err)
	}
	if bill.PayerID == cmd.MemberID {
		return core.MemberPayment{}, fmt.Errorf("record payment: %w: the payer does not owe on their own bill", core.ErrValidation)
	}

	ref, err := s.ingest(ctx, cmd.Receipt)
	if err != nil {
		return core.MemberPayment{}, fmt.Errorf("record payment: %w", err)
	}

	payment, err := s.store.UpsertPayment(ctx, core.PaymentInput{
		BillID:     cmd.BillID,
		MemberID:   cmd.MemberID,
		Amount:     cmd.Amount,
		ReceiptURL: ref,
	})
	if err != nil {
		s.discard(ctx, ref)
		return core.MemberPayment{}, fmt.Errorf("record payment: %w", err)
	}

	s.log.LogLedgerChange(ctx, applog.OpRecordPay,
		applog.NewFields().WithLedger(bill.Period().String(), bill.ID, cmd.MemberID, payment.Amount.Cents))
	event := amqp.NewLedgerEvent(amqp.EventPaymentSet, bill.Period())
	event.BillID, event.MemberID = bill.ID, cmd.MemberID
	s.publish(ctx, event)
	return payment, nil
}

// MarkUnpaid deletes the payment row. The stored receipt is left in place.
func (s *LedgerService) MarkUnpaid(ctx context.Context, billID, memberID int64) error {
	if billID <= 0 || memberID <= 0 {
		return fmt.Errorf("mark unpaid: %w: bill_id and member_id must be positive", core.ErrValidation)
	}

	if err := s.store.DeletePayment(ctx, billID, memberID); err != nil {
		return fmt.Errorf("mark unpaid: %w", err)
	}

	event := &amqp.LedgerEvent{Type: amqp.EventPaymentUnset, BillID: billID, MemberID: memberID}
	period := ""
	if bill, err := s.store.GetBillByID(ctx, billID); err == nil {
		event.Periods = []core.Period{bill.Period()}
		period = bill.Period().String()
	}
	s.log.LogLedgerChange(ctx, applog.OpMarkUnpaid, applog.NewFields().WithLedger(period, billID, memberID, 0))
	s.publish(ctx, event)
	return nil
}

// MonthView projects members and the period's bill into per-member status.
func (s *LedgerService) MonthView(ctx context.Context, period core.Period) (core.MonthView, error) {
	bill, err := s.GetBill(ctx, period)
	if err != nil {
		return core.MonthView{}, err
	}
	members, err := s.ListMembers(ctx)
	if err != nil {
		return core.MonthView{}, err
	}
	return core.BuildMonthView(period, members, bill), nil
}

func (s *LedgerService) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *LedgerService) memberExists(ctx context.Context, id int64, field string) error {
	_, err := s.store.GetMember(ctx, id)
	if errors.Is(err, core.ErrNotFound) {
		return fmt.Errorf("%w: %s %d does not exist", core.ErrValidation, field, id)
	}
	return err
}

func (s *LedgerService) ingest(ctx context.Context, up *receipts.Upload) (*string, error) {
	if up == nil {
		return nil, nil
	}
	if s.receipts == nil {
		return nil, fmt.Errorf("%w: receipt storage is not configured", core.ErrIO)
	}
	ref, err := s.receipts.Ingest(ctx, *up)
	if err != nil {
		return nil, err
	}
	return &ref, nil
}

func (s *LedgerService) discard(ctx context.Context, ref *string) {
	if ref == nil || s.receipts == nil {
		return
	}
	if err := s.receipts.Discard(ctx, *ref); err != nil {
		s.log.LogError(ctx, "Failed to discard orphan receipt", err, applog.ComponentReceipts, applog.OpDiscard,
			applog.LogFields{applog.FieldReceiptURL: *ref})
	}
}

func (s *LedgerService) publish(ctx context.Context, event *amqp.LedgerEvent) {
	if s.publisher == nil {
		slog.DebugContext(ctx, "AMQP client not available, skipping ledger event", "type", event.Type)
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	// The mutation is committed; a lost event only delays the sheet mirror
	if err := s.publisher.PublishLedgerEvent(ctx, event); err != nil {
		s.log.LogError(ctx, "Failed to publish ledger event", err, applog.ComponentAMQP, applog.OpPublish,
			applog.LogFields{"type": event.Type})
	}
}

// Close closes the store and the publisher.
func (s *LedgerService) Close() error {
	var errs []error

	if s.store != nil {
		if err := s.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}

	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close ledger service: %w", errors.Join(errs...))
	}

	return nil
}
