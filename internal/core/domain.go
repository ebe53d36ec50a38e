package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Weekly  RecurrencePattern = "weekly"
	Monthly RecurrencePattern = "monthly"
	Yearly  RecurrencePattern = "yearly"
	None    RecurrencePattern = "none"
)

// DefaultCategory is assigned to bills created without an explicit category.
const DefaultCategory = "Other"

type (
	RecurrencePattern string

	Money struct {
		Cents int64
	}

	// Bill is a single payable obligation. A recurring bill that has been
	// paid acts as the template for its successor; the paid row itself is
	// kept as history.
	Bill struct {
		ID        int64
		Name      string
		Amount    Money
		DueDay    int // day of month, 1-31
		Category  string
		Recurring bool
		Pattern   RecurrencePattern
		Paid      bool
		PaidDate  time.Time // zero when unpaid
		PaidBy    int64     // user id, 0 when unpaid
		AddedBy   int64
		CreatedAt time.Time
	}

	// BillPayment records one "mark paid" action. Rows are append-only.
	BillPayment struct {
		ID          int64
		BillID      int64
		Amount      Money
		PaymentDate time.Time
		PaidBy      int64
		Notes       string
		CreatedAt   time.Time
	}

	// BudgetCategory is a named spending bucket with an optional monthly
	// cap. A zero MonthlyLimit means unlimited.
	BudgetCategory struct {
		ID           int64
		Name         string
		MonthlyLimit Money
		Color        string
	}

	User struct {
		ID        int64
		Username  string
		Email     string
		FullName  string
		Admin     bool
		CreatedAt time.Time
		LastLogin time.Time
	}
)

var (
	ErrInvalidAmount  = errors.New("invalid amount")
	ErrInvalidDueDay  = errors.New("due day must be between 1 and 31")
	ErrInvalidPattern = errors.New("invalid recurrence pattern")
	ErrEmptyName      = errors.New("empty name")
	ErrNotFound       = errors.New("not found")
	ErrAlreadyPaid    = errors.New("bill is already paid")
	ErrDuplicateBill  = errors.New("an unpaid bill with the same name, owner and category already exists")
)

// Validate checks a bill before insertion.
func (b Bill) Validate() error {
	if len(strings.TrimSpace(b.Name)) == 0 {
		return ErrEmptyName
	}
	if len(b.Name) > 200 {
		return errors.New("name too long (max 200 characters)")
	}
	if b.Amount.Cents < 0 {
		return ErrInvalidAmount
	}
	if b.DueDay < 1 || b.DueDay > 31 {
		return ErrInvalidDueDay
	}
	if b.Recurring {
		switch b.Pattern {
		case Weekly, Monthly, Yearly:
		default:
			return ErrInvalidPattern
		}
	}
	return nil
}

// NextDue computes the next due date of a recurring bill from the date its
// previous instance was paid. Unknown patterns return ErrInvalidPattern and
// callers treat the bill as not due.
func NextDue(paidDate time.Time, pattern RecurrencePattern) (time.Time, error) {
	switch pattern {
	case Weekly:
		return paidDate.AddDate(0, 0, 7), nil
	case Monthly:
		return paidDate.AddDate(0, 1, 0), nil
	case Yearly:
		return paidDate.AddDate(1, 0, 0), nil
	default:
		return time.Time{}, ErrInvalidPattern
	}
}

// MonthlyEquivalent normalizes a recurring amount to a comparable monthly
// figure: weekly x4, yearly /12, monthly unchanged. Non-recurring patterns
// contribute nothing.
func MonthlyEquivalent(amount Money, pattern RecurrencePattern) Money {
	switch pattern {
	case Weekly:
		return Money{Cents: amount.Cents * 4}
	case Yearly:
		return Money{Cents: amount.Cents / 12}
	case Monthly:
		return Money{Cents: amount.Cents}
	default:
		return Money{}
	}
}

// Validate checks a budget category before insertion or rename.
func (c BudgetCategory) Validate() error {
	if len(strings.TrimSpace(c.Name)) == 0 {
		return ErrEmptyName
	}
	if len(c.Name) > 100 {
		return errors.New("name too long (max 100 characters)")
	}
	if c.MonthlyLimit.Cents < 0 {
		return ErrInvalidAmount
	}
	return nil
}
