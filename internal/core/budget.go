package core

// CategoryBudget is one row of the budget report for a month.
// Spent includes the monthly-equivalent of unpaid recurring bills in the
// category; Remaining may be negative. PercentUsed is 0 when no limit is set.
type CategoryBudget struct {
	Name         string
	MonthlyLimit Money
	Spent        Money
	Remaining    Money
	PercentUsed  float64
	OverBudget   bool
	Color        string
}

// BudgetReport aggregates per-category budgets for one month.
type BudgetReport struct {
	Year       int
	Month      int
	Categories []CategoryBudget
	TotalSpent Money
	TotalLimit Money
}

// MonthTotal is one entry of the spending history, oldest first.
type MonthTotal struct {
	Year  int
	Month int
	Total Money
}
