package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"homie/internal/core"
)

// BillWithUsers is a bill joined with the usernames the UI displays.
type BillWithUsers struct {
	core.Bill
	AddedByName string
	PaidByName  string
}

const billColumns = `id, bill_name, amount_cents, due_day, category, is_recurring,
	recurrence_pattern, is_paid, paid_date, paid_by, added_by, created_at`

func scanBill(row interface{ Scan(dest ...any) error }) (core.Bill, error) {
	var (
		b         core.Bill
		recurring int64
		paid      int64
		paidDate  sql.NullString
		paidBy    sql.NullInt64
		createdAt string
	)
	err := row.Scan(&b.ID, &b.Name, &b.Amount.Cents, &b.DueDay, &b.Category, &recurring,
		&b.Pattern, &paid, &paidDate, &paidBy, &b.AddedBy, &createdAt)
	if err != nil {
		return core.Bill{}, err
	}
	b.Recurring = recurring != 0
	b.Paid = paid != 0
	if paidDate.Valid {
		b.PaidDate = parseStoredTime(paidDate.String)
	}
	if paidBy.Valid {
		b.PaidBy = paidBy.Int64
	}
	b.CreatedAt = parseStoredTime(createdAt)
	return b, nil
}

func insertBill(ctx context.Context, q dbtx, b core.Bill) (int64, error) {
	if strings.TrimSpace(b.Category) == "" {
		b.Category = core.DefaultCategory
	}
	res, err := q.ExecContext(ctx, `
		INSERT INTO bills (bill_name, amount_cents, due_day, category, is_recurring, recurrence_pattern, added_by)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		b.Name, b.Amount.Cents, b.DueDay, b.Category, b.Recurring, string(b.Pattern), b.AddedBy)
	if err != nil {
		if isUnpaidDedupViolation(err) {
			return 0, core.ErrDuplicateBill
		}
		return 0, fmt.Errorf("insert bill: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("bill last insert id: %w", err)
	}
	return id, nil
}

// isUnpaidDedupViolation detects the partial unique index on unpaid
// (bill_name, added_by, category).
func isUnpaidDedupViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed: bills.bill_name")
}

func getBill(ctx context.Context, q dbtx, id int64) (core.Bill, error) {
	row := q.QueryRowContext(ctx, `SELECT `+billColumns+` FROM bills WHERE id = ?`, id)
	b, err := scanBill(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Bill{}, core.ErrNotFound
	}
	if err != nil {
		return core.Bill{}, fmt.Errorf("get bill %d: %w", id, err)
	}
	return b, nil
}

func hasUnpaidBill(ctx context.Context, q dbtx, name string, addedBy int64, category string) (bool, error) {
	var one int64
	err := q.QueryRowContext(ctx, `
		SELECT 1 FROM bills
		WHERE bill_name = ? AND added_by = ? AND category = ? AND is_paid = 0
		LIMIT 1`, name, addedBy, category).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check unpaid bill: %w", err)
	}
	return true, nil
}

func listPaidRecurring(ctx context.Context, q dbtx) ([]core.Bill, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+billColumns+` FROM bills
		WHERE is_recurring = 1 AND is_paid = 1 AND paid_date IS NOT NULL
		ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list paid recurring bills: %w", err)
	}
	defer rows.Close()

	var bills []core.Bill
	for rows.Next() {
		b, err := scanBill(rows)
		if err != nil {
			return nil, fmt.Errorf("scan recurring bill: %w", err)
		}
		bills = append(bills, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recurring bills: %w", err)
	}
	return bills, nil
}

func markBillPaid(ctx context.Context, q dbtx, id, userID int64, when time.Time) (int64, error) {
	res, err := q.ExecContext(ctx, `
		UPDATE bills SET is_paid = 1, paid_date = ?, paid_by = ?
		WHERE id = ?`, fmtDate(when), userID, id)
	if err != nil {
		return 0, fmt.Errorf("mark bill paid: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("mark bill paid rows affected: %w", err)
	}
	return n, nil
}

// CreateBill inserts a new unpaid bill. A clash with the unpaid dedup index
// surfaces as core.ErrDuplicateBill.
func (r *Repository) CreateBill(ctx context.Context, b core.Bill) (int64, error) {
	return insertBill(ctx, r.db, b)
}

// GetBill returns core.ErrNotFound for unknown ids.
func (r *Repository) GetBill(ctx context.Context, id int64) (core.Bill, error) {
	return getBill(ctx, r.db, id)
}

// ListBills returns all bills joined with usernames, ordered by due day then
// newest first.
func (r *Repository) ListBills(ctx context.Context) ([]BillWithUsers, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT b.id, b.bill_name, b.amount_cents, b.due_day, b.category, b.is_recurring,
		       b.recurrence_pattern, b.is_paid, b.paid_date, b.paid_by, b.added_by, b.created_at,
		       COALESCE(au.username, ''), COALESCE(pu.username, '')
		FROM bills b
		LEFT JOIN users au ON b.added_by = au.id
		LEFT JOIN users pu ON b.paid_by = pu.id
		ORDER BY b.due_day ASC, b.created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list bills: %w", err)
	}
	defer rows.Close()

	var bills []BillWithUsers
	for rows.Next() {
		var (
			b         BillWithUsers
			recurring int64
			paid      int64
			paidDate  sql.NullString
			paidBy    sql.NullInt64
			createdAt string
		)
		err := rows.Scan(&b.ID, &b.Name, &b.Amount.Cents, &b.DueDay, &b.Category, &recurring,
			&b.Pattern, &paid, &paidDate, &paidBy, &b.AddedBy, &createdAt,
			&b.AddedByName, &b.PaidByName)
		if err != nil {
			return nil, fmt.Errorf("scan bill: %w", err)
		}
		b.Recurring = recurring != 0
		b.Paid = paid != 0
		if paidDate.Valid {
			b.PaidDate = parseStoredTime(paidDate.String)
		}
		if paidBy.Valid {
			b.PaidBy = paidBy.Int64
		}
		b.CreatedAt = parseStoredTime(createdAt)
		bills = append(bills, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bills: %w", err)
	}
	return bills, nil
}

// DeleteBill reports whether a row was actually deleted.
func (r *Repository) DeleteBill(ctx context.Context, id int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM bills WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete bill: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete bill rows affected: %w", err)
	}
	return n > 0, nil
}

// Tx mirrors used by the recurrence processor.

func (t *Tx) GetBill(ctx context.Context, id int64) (core.Bill, error) {
	return getBill(ctx, t.tx, id)
}

func (t *Tx) InsertBill(ctx context.Context, b core.Bill) (int64, error) {
	return insertBill(ctx, t.tx, b)
}

func (t *Tx) HasUnpaidBill(ctx context.Context, name string, addedBy int64, category string) (bool, error) {
	return hasUnpaidBill(ctx, t.tx, name, addedBy, category)
}

func (t *Tx) ListPaidRecurring(ctx context.Context) ([]core.Bill, error) {
	return listPaidRecurring(ctx, t.tx)
}

func (t *Tx) MarkBillPaid(ctx context.Context, id, userID int64, when time.Time) (int64, error) {
	return markBillPaid(ctx, t.tx, id, userID, when)
}
