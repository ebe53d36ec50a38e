package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"homie/internal/core"
	"homie/internal/log"
	"homie/internal/storage"
)

// DefaultLeadDays is how far ahead of the next due date a successor bill
// is created.
const DefaultLeadDays = 5

// RecurrenceProcessor creates the next instance of recurring bills once
// the previous instance has been paid and the due date is close enough.
type RecurrenceProcessor struct {
	repo     *storage.Repository
	logger   *log.Logger
	leadDays int
}

func NewRecurrenceProcessor(repo *storage.Repository, logger *log.Logger, leadDays int) *RecurrenceProcessor {
	if leadDays <= 0 {
		leadDays = DefaultLeadDays
	}
	return &RecurrenceProcessor{
		repo:     repo,
		logger:   logger.WithComponent("recurrence"),
		leadDays: leadDays,
	}
}

// ProcessRecurringBills walks every paid recurring bill and creates the
// successor for those due within the lead window. The whole batch runs in
// one transaction: either all successors land or none do. The count of
// created bills is returned.
func (p *RecurrenceProcessor) ProcessRecurringBills(ctx context.Context, today time.Time) (int, error) {
	today = truncateToDay(today)
	created := 0

	err := p.repo.WithTx(ctx, func(tx *storage.Tx) error {
		templates, err := tx.ListPaidRecurring(ctx)
		if err != nil {
			return fmt.Errorf("load recurring templates: %w", err)
		}

		for _, b := range templates {
			due, err := core.NextDue(b.PaidDate, b.Pattern)
			if err != nil {
				p.logger.WarnContext(ctx, "skipping bill with unknown recurrence pattern",
					"bill_id", b.ID,
					"pattern", string(b.Pattern))
				continue
			}
			if today.Before(due.AddDate(0, 0, -p.leadDays)) {
				continue
			}

			exists, err := tx.HasUnpaidBill(ctx, b.Name, b.AddedBy, b.Category)
			if err != nil {
				return fmt.Errorf("check open successor for bill %d: %w", b.ID, err)
			}
			if exists {
				continue
			}

			successor := core.Bill{
				Name:      b.Name,
				Amount:    b.Amount,
				DueDay:    b.DueDay,
				Category:  b.Category,
				Recurring: true,
				Pattern:   b.Pattern,
				AddedBy:   b.AddedBy,
			}
			id, err := tx.InsertBill(ctx, successor)
			if err != nil {
				// A concurrent request may have created the successor
				// between the check and the insert; the dedup index
				// turns that into a benign skip.
				if errors.Is(err, core.ErrDuplicateBill) {
					continue
				}
				return fmt.Errorf("create successor for bill %d: %w", b.ID, err)
			}
			created++
			p.logger.InfoContext(ctx, "created recurring bill",
				"template_id", b.ID,
				"bill_id", id,
				"name", b.Name,
				"due", due.Format("2006-01-02"))
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return created, nil
}

// MarkBillPaid marks one bill paid and records the payment, atomically.
// It returns false with a nil error when the bill does not exist. After
// the commit, a paid recurring bill gets its successor check immediately
// so the next instance can show up on the same page load; failures there
// are logged and never surfaced.
func (p *RecurrenceProcessor) MarkBillPaid(ctx context.Context, billID, userID int64, when time.Time, notes string) (bool, error) {
	when = truncateToDay(when)

	var paid core.Bill
	err := p.repo.WithTx(ctx, func(tx *storage.Tx) error {
		b, err := tx.GetBill(ctx, billID)
		if err != nil {
			return err
		}
		if b.Paid {
			return core.ErrAlreadyPaid
		}

		n, err := tx.MarkBillPaid(ctx, billID, userID, when)
		if err != nil {
			return err
		}
		if n == 0 {
			return core.ErrNotFound
		}

		_, err = tx.InsertPayment(ctx, core.BillPayment{
			BillID:      billID,
			Amount:      b.Amount,
			PaymentDate: when,
			PaidBy:      userID,
			Notes:       notes,
		})
		if err != nil {
			return fmt.Errorf("record payment: %w", err)
		}

		paid = b
		return nil
	})
	if errors.Is(err, core.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if paid.Recurring {
		if _, err := p.ProcessRecurringBills(ctx, when); err != nil {
			p.logger.ErrorContext(ctx, "successor check after payment failed",
				"bill_id", billID,
				"error", err)
		}
	}
	return true, nil
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
