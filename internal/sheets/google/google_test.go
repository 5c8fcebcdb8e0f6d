package google

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"payback/internal/core"
)

func TestNew_MissingSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), Config{})
	if err == nil {
		t.Fatal("expected error for missing spreadsheet id")
	}
	if err.Error() != "missing GOOGLE_SPREADSHEET_ID" {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestNew_MissingCredentials(t *testing.T) {
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")

	_, err := New(context.Background(), Config{SpreadsheetID: "test-id"})
	if err == nil {
		t.Fatal("expected error without credentials")
	}
	if !strings.Contains(err.Error(), "missing service account credentials") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestNew_UnreadableCredentialsFile(t *testing.T) {
	_, err := New(context.Background(), Config{
		SpreadsheetID:   "test-id",
		CredentialsFile: filepath.Join(t.TempDir(), "missing.json"),
	})
	if err == nil || !strings.Contains(err.Error(), "read service account file") {
		t.Fatalf("expected read error, got %v", err)
	}
}

func TestClient_NotInitialized(t *testing.T) {
	c := &Client{spreadsheetID: "test"}
	if _, err := c.WriteMonth(context.Background(), core.MonthView{Period: core.Period{Month: 1, Year: 2025}}); err == nil {
		t.Error("WriteMonth should fail without a service")
	}
	if err := c.ClearMonth(context.Background(), core.Period{Month: 1, Year: 2025}); err == nil {
		t.Error("ClearMonth should fail without a service")
	}
}

func TestSheetTitle(t *testing.T) {
	tests := []struct {
		prefix string
		period core.Period
		want   string
	}{
		{"", core.Period{Month: 5, Year: 2025}, "Payback 2025-05"},
		{"Rent", core.Period{Month: 12, Year: 2024}, "Rent 2024-12"},
		{"  Flat  ", core.Period{Month: 1, Year: 2026}, "Flat 2026-01"},
	}
	for _, tt := range tests {
		if got := sheetTitle(tt.prefix, tt.period); got != tt.want {
			t.Errorf("sheetTitle(%q, %v) = %q, want %q", tt.prefix, tt.period, got, tt.want)
		}
	}
}

func TestA1Quoting(t *testing.T) {
	if got := a1("Payback 2025-05", "A1"); got != "'Payback 2025-05'!A1" {
		t.Errorf("a1() = %q", got)
	}
	if got := a1("Bob's", "A:Z"); got != "'Bob''s'!A:Z" {
		t.Errorf("a1() = %q", got)
	}
}

func TestMonthRows(t *testing.T) {
	receipt := "/uploads/1-abc.jpg"
	members := []core.Member{{ID: 1, Name: "Alice"}, {ID: 2, Name: "Bob"}, {ID: 3, Name: "Carol"}}
	bill := &core.BillDetail{
		MonthlyBill: core.MonthlyBill{ID: 1, Month: 5, Year: 2025, PayerID: 1, TotalAmount: core.Money{Cents: 9000}},
		PayerName:   "Alice",
		Payments: []core.PaymentDetail{{
			MemberPayment: core.MemberPayment{BillID: 1, MemberID: 2, Amount: core.Money{Cents: 3000}, ReceiptURL: &receipt},
			MemberName:    "Bob",
		}},
	}
	view := core.BuildMonthView(bill.Period(), members, bill)

	rows := monthRows(view)
	if rows[0][1] != "2025-05" {
		t.Errorf("period row = %v", rows[0])
	}
	if rows[1][1] != "Alice" || rows[1][3] != "90.00" || rows[1][5] != "30.00" {
		t.Errorf("bill row = %v", rows[1])
	}

	// period, bill, blank, header, 3 members, blank, totals
	if len(rows) != 9 {
		t.Fatalf("expected 9 rows, got %d", len(rows))
	}
	bob := rows[5]
	if bob[0] != "Bob" || bob[3] != core.StatusPaid || bob[4] != "30.00" || bob[5] != receipt {
		t.Errorf("bob row = %v", bob)
	}
	carol := rows[6]
	if carol[3] != core.StatusPending || carol[5] != "" {
		t.Errorf("carol row = %v", carol)
	}
	totals := rows[8]
	if totals[1] != "30.00" || totals[3] != "30.00" {
		t.Errorf("totals row = %v", totals)
	}
}

func TestMonthRowsWithoutBill(t *testing.T) {
	view := core.BuildMonthView(core.Period{Month: 2, Year: 2025}, []core.Member{{ID: 1, Name: "Alice"}}, nil)
	rows := monthRows(view)
	if rows[1][0] != "No bill recorded" {
		t.Errorf("expected placeholder row, got %v", rows[1])
	}
	if len(rows) != 5 {
		t.Errorf("expected 5 rows, got %d", len(rows))
	}
}
