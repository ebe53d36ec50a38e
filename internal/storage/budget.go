package storage

import (
	"context"
	"fmt"

	"homie/internal/core"
)

// SumPaidByCategory totals the bills paid within one calendar month,
// grouped by category. Months compare on the stored date text, so the
// parameters are zero-padded to match the YYYY-MM-DD layout.
func (r *Repository) SumPaidByCategory(ctx context.Context, year, month int) (map[string]core.Money, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT category, SUM(amount_cents)
		FROM bills
		WHERE is_paid = 1
		  AND paid_date IS NOT NULL
		  AND strftime('%Y', paid_date) = ?
		  AND strftime('%m', paid_date) = ?
		GROUP BY category`,
		fmt.Sprintf("%04d", year), fmt.Sprintf("%02d", month))
	if err != nil {
		return nil, fmt.Errorf("sum paid by category: %w", err)
	}
	defer rows.Close()

	totals := make(map[string]core.Money)
	for rows.Next() {
		var (
			category string
			cents    int64
		)
		if err := rows.Scan(&category, &cents); err != nil {
			return nil, fmt.Errorf("scan category total: %w", err)
		}
		totals[category] = core.Money{Cents: cents}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate category totals: %w", err)
	}
	return totals, nil
}

// ListUnpaidRecurring returns the open recurring bills. Their amounts feed
// the budget report as monthly equivalents of committed spending.
func (r *Repository) ListUnpaidRecurring(ctx context.Context) ([]core.Bill, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+billColumns+`
		FROM bills
		WHERE is_recurring = 1 AND is_paid = 0
		ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list unpaid recurring bills: %w", err)
	}
	defer rows.Close()

	var bills []core.Bill
	for rows.Next() {
		b, err := scanBill(rows)
		if err != nil {
			return nil, fmt.Errorf("scan unpaid recurring bill: %w", err)
		}
		bills = append(bills, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate unpaid recurring bills: %w", err)
	}
	return bills, nil
}

// MonthPaidTotal sums everything paid in one calendar month across all
// categories.
func (r *Repository) MonthPaidTotal(ctx context.Context, year, month int) (core.Money, error) {
	var cents int64
	err := r.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount_cents), 0)
		FROM bills
		WHERE is_paid = 1
		  AND paid_date IS NOT NULL
		  AND strftime('%Y', paid_date) = ?
		  AND strftime('%m', paid_date) = ?`,
		fmt.Sprintf("%04d", year), fmt.Sprintf("%02d", month)).Scan(&cents)
	if err != nil {
		return core.Money{}, fmt.Errorf("month paid total: %w", err)
	}
	return core.Money{Cents: cents}, nil
}
