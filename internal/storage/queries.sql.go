package storage

import (
	"context"
	"database/sql"
)

const listMembers = `-- name: ListMembers :many
SELECT id, name, email, created_at FROM members ORDER BY id
`

func (q *Queries) ListMembers(ctx context.Context) ([]Member, error) {
	rows, err := q.db.QueryContext(ctx, listMembers)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Member
	for rows.Next() {
		var i Member
		if err := rows.Scan(&i.ID, &i.Name, &i.Email, &i.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getMember = `-- name: GetMember :one
SELECT id, name, email, created_at FROM members WHERE id = ?
`

func (q *Queries) GetMember(ctx context.Context, id int64) (Member, error) {
	row := q.db.QueryRowContext(ctx, getMember, id)
	var i Member
	err := row.Scan(&i.ID, &i.Name, &i.Email, &i.CreatedAt)
	return i, err
}

const createMember = `-- name: CreateMember :one
INSERT INTO members (name, email, created_at) VALUES (?, ?, ?)
RETURNING id, name, email, created_at
`

type CreateMemberParams struct {
	Name      string
	Email     sql.NullString
	CreatedAt string
}

func (q *Queries) CreateMember(ctx context.Context, arg CreateMemberParams) (Member, error) {
	row := q.db.QueryRowContext(ctx, createMember, arg.Name, arg.Email, arg.CreatedAt)
	var i Member
	err := row.Scan(&i.ID, &i.Name, &i.Email, &i.CreatedAt)
	return i, err
}

const listPeriodsForMember = `-- name: ListPeriodsForMember :many
SELECT DISTINCT b.month, b.year
FROM monthly_bills b
WHERE b.payer_id = ?1
   OR b.id IN (SELECT p.bill_id FROM member_payments p WHERE p.member_id = ?1)
ORDER BY b.year, b.month
`

type ListPeriodsForMemberRow struct {
	Month int64
	Year  int64
}

func (q *Queries) ListPeriodsForMember(ctx context.Context, memberID int64) ([]ListPeriodsForMemberRow, error) {
	rows, err := q.db.QueryContext(ctx, listPeriodsForMember, memberID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ListPeriodsForMemberRow
	for rows.Next() {
		var i ListPeriodsForMemberRow
		if err := rows.Scan(&i.Month, &i.Year); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const deletePaymentsForMember = `-- name: DeletePaymentsForMember :exec
DELETE FROM member_payments
WHERE member_id = ?1
   OR bill_id IN (SELECT id FROM monthly_bills WHERE payer_id = ?1)
`

func (q *Queries) DeletePaymentsForMember(ctx context.Context, memberID int64) error {
	_, err := q.db.ExecContext(ctx, deletePaymentsForMember, memberID)
	return err
}

const deleteBillsByPayer = `-- name: DeleteBillsByPayer :exec
DELETE FROM monthly_bills WHERE payer_id = ?
`

func (q *Queries) DeleteBillsByPayer(ctx context.Context, payerID int64) error {
	_, err := q.db.ExecContext(ctx, deleteBillsByPayer, payerID)
	return err
}

const deleteMember = `-- name: DeleteMember :execrows
DELETE FROM members WHERE id = ?
`

func (q *Queries) DeleteMember(ctx context.Context, id int64) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteMember, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const getBillByPeriod = `-- name: GetBillByPeriod :one
SELECT b.id, b.month, b.year, b.payer_id, b.total_amount_cents, b.receipt_url, b.created_at, m.name AS payer_name
FROM monthly_bills b
JOIN members m ON m.id = b.payer_id
WHERE b.month = ? AND b.year = ?
`

func (q *Queries) GetBillByPeriod(ctx context.Context, month, year int64) (GetBillByPeriodRow, error) {
	row := q.db.QueryRowContext(ctx, getBillByPeriod, month, year)
	var i GetBillByPeriodRow
	err := row.Scan(
		&i.ID,
		&i.Month,
		&i.Year,
		&i.PayerID,
		&i.TotalAmountCents,
		&i.ReceiptUrl,
		&i.CreatedAt,
		&i.PayerName,
	)
	return i, err
}

const getBill = `-- name: GetBill :one
SELECT id, month, year, payer_id, total_amount_cents, receipt_url, created_at FROM monthly_bills WHERE id = ?
`

func (q *Queries) GetBill(ctx context.Context, id int64) (MonthlyBill, error) {
	row := q.db.QueryRowContext(ctx, getBill, id)
	var i MonthlyBill
	err := row.Scan(
		&i.ID,
		&i.Month,
		&i.Year,
		&i.PayerID,
		&i.TotalAmountCents,
		&i.ReceiptUrl,
		&i.CreatedAt,
	)
	return i, err
}

const listPaymentsByBill = `-- name: ListPaymentsByBill :many
SELECT p.id, p.bill_id, p.member_id, p.amount_cents, p.receipt_url, p.created_at, m.name AS member_name
FROM member_payments p
JOIN members m ON m.id = p.member_id
WHERE p.bill_id = ?
ORDER BY p.member_id
`

func (q *Queries) ListPaymentsByBill(ctx context.Context, billID int64) ([]ListPaymentsByBillRow, error) {
	rows, err := q.db.QueryContext(ctx, listPaymentsByBill, billID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ListPaymentsByBillRow
	for rows.Next() {
		var i ListPaymentsByBillRow
		if err := rows.Scan(
			&i.ID,
			&i.BillID,
			&i.MemberID,
			&i.AmountCents,
			&i.ReceiptUrl,
			&i.CreatedAt,
			&i.MemberName,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const insertBill = `-- name: InsertBill :one
INSERT INTO monthly_bills (month, year, payer_id, total_amount_cents, receipt_url, created_at)
VALUES (?, ?, ?, ?, ?, ?)
RETURNING id, month, year, payer_id, total_amount_cents, receipt_url, created_at
`

type InsertBillParams struct {
	Month            int64
	Year             int64
	PayerID          int64
	TotalAmountCents int64
	ReceiptUrl       sql.NullString
	CreatedAt        string
}

func (q *Queries) InsertBill(ctx context.Context, arg InsertBillParams) (MonthlyBill, error) {
	row := q.db.QueryRowContext(ctx, insertBill,
		arg.Month,
		arg.Year,
		arg.PayerID,
		arg.TotalAmountCents,
		arg.ReceiptUrl,
		arg.CreatedAt,
	)
	var i MonthlyBill
	err := row.Scan(
		&i.ID,
		&i.Month,
		&i.Year,
		&i.PayerID,
		&i.TotalAmountCents,
		&i.ReceiptUrl,
		&i.CreatedAt,
	)
	return i, err
}

const updateBillByPeriod = `-- name: UpdateBillByPeriod :one
UPDATE monthly_bills
SET payer_id = ?, total_amount_cents = ?, receipt_url = COALESCE(?, receipt_url)
WHERE month = ? AND year = ?
RETURNING id, month, year, payer_id, total_amount_cents, receipt_url, created_at
`

type UpdateBillByPeriodParams struct {
	PayerID          int64
	TotalAmountCents int64
	ReceiptUrl       sql.NullString
	Month            int64
	Year             int64
}

func (q *Queries) UpdateBillByPeriod(ctx context.Context, arg UpdateBillByPeriodParams) (MonthlyBill, error) {
	row := q.db.QueryRowContext(ctx, updateBillByPeriod,
		arg.PayerID,
		arg.TotalAmountCents,
		arg.ReceiptUrl,
		arg.Month,
		arg.Year,
	)
	var i MonthlyBill
	err := row.Scan(
		&i.ID,
		&i.Month,
		&i.Year,
		&i.PayerID,
		&i.TotalAmountCents,
		&i.ReceiptUrl,
		&i.CreatedAt,
	)
	return i, err
}

const insertPayment = `-- name: InsertPayment :one
INSERT INTO member_payments (bill_id, member_id, amount_cents, receipt_url, created_at)
VALUES (?, ?, ?, ?, ?)
RETURNING id, bill_id, member_id, amount_cents, receipt_url, created_at
`

type InsertPaymentParams struct {
	BillID      int64
	MemberID    int64
	AmountCents int64
	ReceiptUrl  sql.NullString
	CreatedAt   string
}

func (q *Queries) InsertPayment(ctx context.Context, arg InsertPaymentParams) (MemberPayment, error) {
	row := q.db.QueryRowContext(ctx, insertPayment,
		arg.BillID,
		arg.MemberID,
		arg.AmountCents,
		arg.ReceiptUrl,
		arg.CreatedAt,
	)
	var i MemberPayment
	err := row.Scan(
		&i.ID,
		&i.BillID,
		&i.MemberID,
		&i.AmountCents,
		&i.ReceiptUrl,
		&i.CreatedAt,
	)
	return i, err
}

const updatePaymentByKey = `-- name: UpdatePaymentByKey :one
UPDATE member_payments
SET amount_cents = ?, receipt_url = COALESCE(?, receipt_url)
WHERE bill_id = ? AND member_id = ?
RETURNING id, bill_id, member_id, amount_cents, receipt_url, created_at
`

type UpdatePaymentByKeyParams struct {
	AmountCents int64
	ReceiptUrl  sql.NullString
	BillID      int64
	MemberID    int64
}

func (q *Queries) UpdatePaymentByKey(ctx context.Context, arg UpdatePaymentByKeyParams) (MemberPayment, error) {
	row := q.db.QueryRowContext(ctx, updatePaymentByKey,
		arg.AmountCents,
		arg.ReceiptUrl,
		arg.BillID,
		arg.MemberID,
	)
	var i MemberPayment
	err := row.Scan(
		&i.ID,
		&i.BillID,
		&i.MemberID,
		&i.AmountCents,
		&i.ReceiptUrl,
		&i.CreatedAt,
	)
	return i, err
}

const deletePayment = `-- name: DeletePayment :exec
DELETE FROM member_payments WHERE bill_id = ? AND member_id = ?
`

func (q *Queries) DeletePayment(ctx context.Context, billID, memberID int64) error {
	_, err := q.db.ExecContext(ctx, deletePayment, billID, memberID)
	return err
}
