package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"homie/internal/core"
	"homie/internal/storage"
)

// DefaultHistoryMonths is the span of the spending history when no other
// length is configured.
const DefaultHistoryMonths = 6

// BudgetService builds the per-category budget report and the month-by-month
// spending history.
type BudgetService struct {
	repo          *storage.Repository
	historyMonths int
}

func NewBudgetService(repo *storage.Repository, historyMonths int) *BudgetService {
	if historyMonths <= 0 {
		historyMonths = DefaultHistoryMonths
	}
	return &BudgetService{repo: repo, historyMonths: historyMonths}
}

// BudgetAnalytics reports, for one calendar month, what each category has
// spent against its limit. Spending is the sum of bills paid in that month
// plus the monthly equivalent of every open recurring bill, which counts
// committed money before it leaves the account. Categories with activity
// but no configured limit are included with a zero limit and a zero
// percentage.
func (s *BudgetService) BudgetAnalytics(ctx context.Context, year, month int) (core.BudgetReport, error) {
	paid, err := s.repo.SumPaidByCategory(ctx, year, month)
	if err != nil {
		return core.BudgetReport{}, fmt.Errorf("budget analytics: %w", err)
	}

	openRecurring, err := s.repo.ListUnpaidRecurring(ctx)
	if err != nil {
		return core.BudgetReport{}, fmt.Errorf("budget analytics: %w", err)
	}

	spent := make(map[string]int64, len(paid))
	for category, total := range paid {
		spent[category] = total.Cents
	}
	for _, b := range openRecurring {
		spent[b.Category] += core.MonthlyEquivalent(b.Amount, b.Pattern).Cents
	}

	categories, err := s.repo.ListCategories(ctx)
	if err != nil {
		return core.BudgetReport{}, fmt.Errorf("budget analytics: %w", err)
	}

	limits := make(map[string]core.BudgetCategory, len(categories))
	for _, c := range categories {
		limits[c.Name] = c
	}

	names := make([]string, 0, len(spent))
	for name := range spent {
		names = append(names, name)
	}
	for name := range limits {
		if _, ok := spent[name]; !ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	report := core.BudgetReport{Year: year, Month: month}
	for _, name := range names {
		cat := limits[name]
		cb := core.CategoryBudget{
			Name:         name,
			MonthlyLimit: cat.MonthlyLimit,
			Spent:        core.Money{Cents: spent[name]},
			Color:        cat.Color,
		}
		cb.Remaining = core.Money{Cents: cb.MonthlyLimit.Cents - cb.Spent.Cents}
		if cb.MonthlyLimit.Cents > 0 {
			cb.PercentUsed = float64(cb.Spent.Cents) / float64(cb.MonthlyLimit.Cents) * 100
			cb.OverBudget = cb.Spent.Cents > cb.MonthlyLimit.Cents
		}
		report.Categories = append(report.Categories, cb)
		report.TotalSpent.Cents += cb.Spent.Cents
		report.TotalLimit.Cents += cb.MonthlyLimit.Cents
	}
	return report, nil
}

// SpendingHistory returns paid totals for the last months calendar months
// ending with the given one, oldest first; months <= 0 falls back to the
// configured span. Only money actually paid counts here; open recurring
// bills are excluded because adding the same projection to every past month
// distorts the trend.
func (s *BudgetService) SpendingHistory(ctx context.Context, year, month, months int) ([]core.MonthTotal, error) {
	if months <= 0 || months > 120 {
		months = s.historyMonths
	}
	history := make([]core.MonthTotal, 0, months)
	cursor := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -(months - 1), 0)
	for i := 0; i < months; i++ {
		total, err := s.repo.MonthPaidTotal(ctx, cursor.Year(), int(cursor.Month()))
		if err != nil {
			return nil, fmt.Errorf("spending history: %w", err)
		}
		history = append(history, core.MonthTotal{
			Year:  cursor.Year(),
			Month: int(cursor.Month()),
			Total: total,
		})
		cursor = cursor.AddDate(0, 1, 0)
	}
	return history, nil
}
