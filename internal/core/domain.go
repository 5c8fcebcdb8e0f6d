package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

type (
	// Period identifies a billing month.
	Period struct {
		Month int `json:"month"`
		Year  int `json:"year"`
	}

	Member struct {
		ID        int64     `json:"id"`
		Name      string    `json:"name"`
		Email     *string   `json:"email"`
		CreatedAt time.Time `json:"created_at"`
	}

	// MonthlyBill is the bill one member paid for the whole group in a given month.
	MonthlyBill struct {
		ID          int64     `json:"id"`
		Month       int       `json:"month"`
		Year        int       `json:"year"`
		PayerID     int64     `json:"payer_id"`
		TotalAmount Money     `json:"total_amount"`
		ReceiptURL  *string   `json:"receipt_url"`
		CreatedAt   time.Time `json:"created_at"`
	}

	// MemberPayment is one member's reimbursement to the payer of a bill.
	MemberPayment struct {
		ID         int64     `json:"id"`
		BillID     int64     `json:"bill_id"`
		MemberID   int64     `json:"member_id"`
		Amount     Money     `json:"amount"`
		ReceiptURL *string   `json:"receipt_url"`
		CreatedAt  time.Time `json:"created_at"`
	}

	PaymentDetail struct {
		MemberPayment
		MemberName string `json:"member_name"`
	}

	// BillDetail is a bill joined with its payer name and all payments recorded against it.
	BillDetail struct {
		MonthlyBill
		PayerName string          `json:"payer_name"`
		Payments  []PaymentDetail `json:"payments"`
	}

	BillInput struct {
		Month       int
		Year        int
		PayerID     int64
		TotalAmount Money
		ReceiptURL  *string
	}

	PaymentInput struct {
		BillID     int64
		MemberID   int64
		Amount     Money
		ReceiptURL *string
	}
)

var (
	ErrInvalidMonth = errors.New("invalid month")
	ErrInvalidYear  = errors.New("invalid year")
	ErrEmptyName    = errors.New("name is required")
)

// NewPeriod builds a Period from a time, in its own location.
func NewPeriod(t time.Time) Period {
	return Period{Month: int(t.Month()), Year: t.Year()}
}

func (p Period) Validate() error {
	if p.Month < 1 || p.Month > 12 {
		return ErrInvalidMonth
	}
	if p.Year < 1970 || p.Year > 9999 {
		return ErrInvalidYear
	}
	return nil
}

// String renders the period as YYYY-MM.
func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, p.Month)
}

func (b MonthlyBill) Period() Period {
	return Period{Month: b.Month, Year: b.Year}
}

// NormalizeEmail trims the address and maps blanks to nil, since the
// uniqueness constraint only applies to non-null emails.
func NormalizeEmail(email *string) *string {
	if email == nil {
		return nil
	}
	e := strings.TrimSpace(*email)
	if e == "" {
		return nil
	}
	return &e
}

func (in BillInput) Validate() error {
	if err := (Period{Month: in.Month, Year: in.Year}).Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if in.PayerID <= 0 {
		return fmt.Errorf("%w: payer_id is required", ErrValidation)
	}
	if err := in.TotalAmount.Validate(); err != nil {
		return fmt.Errorf("%w: total_amount: %v", ErrValidation, err)
	}
	return nil
}

func (in PaymentInput) Validate() error {
	if in.BillID <= 0 {
		return fmt.Errorf("%w: bill_id is required", ErrValidation)
	}
	if in.MemberID <= 0 {
		return fmt.Errorf("%w: member_id is required", ErrValidation)
	}
	if err := in.Amount.Validate(); err != nil {
		return fmt.Errorf("%w: amount: %v", ErrValidation, err)
	}
	return nil
}
