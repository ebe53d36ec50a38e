package storage

import (
	"context"
	"fmt"

	"homie/internal/core"
)

func insertPayment(ctx context.Context, q dbtx, p core.BillPayment) (int64, error) {
	res, err := q.ExecContext(ctx, `
		INSERT INTO bill_payments (bill_id, amount_cents, payment_date, paid_by, notes)
		VALUES (?, ?, ?, ?, ?)`,
		p.BillID, p.Amount.Cents, fmtDate(p.PaymentDate), p.PaidBy, p.Notes)
	if err != nil {
		return 0, fmt.Errorf("insert bill payment: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("payment last insert id: %w", err)
	}
	return id, nil
}

func listPayments(ctx context.Context, q dbtx, billID int64) ([]core.BillPayment, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, bill_id, amount_cents, payment_date, paid_by, notes, created_at
		FROM bill_payments
		WHERE bill_id = ?
		ORDER BY payment_date DESC, id DESC`, billID)
	if err != nil {
		return nil, fmt.Errorf("list bill payments: %w", err)
	}
	defer rows.Close()

	var payments []core.BillPayment
	for rows.Next() {
		var (
			p           core.BillPayment
			paymentDate string
			createdAt   string
		)
		if err := rows.Scan(&p.ID, &p.BillID, &p.Amount.Cents, &paymentDate, &p.PaidBy, &p.Notes, &createdAt); err != nil {
			return nil, fmt.Errorf("scan bill payment: %w", err)
		}
		p.PaymentDate = parseStoredTime(paymentDate)
		p.CreatedAt = parseStoredTime(createdAt)
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bill payments: %w", err)
	}
	return payments, nil
}

// ListPayments returns the payment history of one bill, newest first.
func (r *Repository) ListPayments(ctx context.Context, billID int64) ([]core.BillPayment, error) {
	return listPayments(ctx, r.db, billID)
}

func (t *Tx) InsertPayment(ctx context.Context, p core.BillPayment) (int64, error) {
	return insertPayment(ctx, t.tx, p)
}
