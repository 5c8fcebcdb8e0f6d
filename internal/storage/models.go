package storage

import "database/sql"

type Member struct {
	ID        int64
	Name      string
	Email     sql.NullString
	CreatedAt string
}

type MonthlyBill struct {
	ID               int64
	Month            int64
	Year             int64
	PayerID          int64
	TotalAmountCents int64
	ReceiptUrl       sql.NullString
	CreatedAt        string
}

type MemberPayment struct {
	ID          int64
	BillID      int64
	MemberID    int64
	AmountCents int64
	ReceiptUrl  sql.NullString
	CreatedAt   string
}

type GetBillByPeriodRow struct {
	MonthlyBill
	PayerName string
}

type ListPaymentsByBillRow struct {
	MemberPayment
	MemberName string
}
