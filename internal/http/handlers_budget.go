package http

import (
	"net/http"
	"strconv"
)

type categoryBudgetResponse struct {
	Name             string  `json:"name"`
	MonthlyLimit     string  `json:"monthly_limit"`
	MonthlyLimitCents int64  `json:"monthly_limit_cents"`
	Spent            string  `json:"spent"`
	SpentCents       int64   `json:"spent_cents"`
	Remaining        string  `json:"remaining"`
	RemainingCents   int64   `json:"remaining_cents"`
	PercentUsed      float64 `json:"percent_used"`
	OverBudget       bool    `json:"over_budget"`
	Color            string  `json:"color,omitempty"`
}

type budgetResponse struct {
	Year       int                      `json:"year"`
	Month      int                      `json:"month"`
	Categories []categoryBudgetResponse `json:"categories"`
	TotalSpent string                   `json:"total_spent"`
	TotalLimit string                   `json:"total_limit"`
}

func (s *Server) handleBudget(w http.ResponseWriter, r *http.Request) {
	year, month := parseYearMonth(r)

	report, err := s.budget.BudgetAnalytics(r.Context(), year, month)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "budget analytics failed",
			"year", year, "month", month, "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	sym := s.cfg.CurrencySymbol
	resp := budgetResponse{
		Year:       report.Year,
		Month:      report.Month,
		Categories: make([]categoryBudgetResponse, 0, len(report.Categories)),
		TotalSpent: report.TotalSpent.Format(sym),
		TotalLimit: report.TotalLimit.Format(sym),
	}
	for _, c := range report.Categories {
		resp.Categories = append(resp.Categories, categoryBudgetResponse{
			Name:              c.Name,
			MonthlyLimit:      c.MonthlyLimit.Format(sym),
			MonthlyLimitCents: c.MonthlyLimit.Cents,
			Spent:             c.Spent.Format(sym),
			SpentCents:        c.Spent.Cents,
			Remaining:         c.Remaining.Format(sym),
			RemainingCents:    c.Remaining.Cents,
			PercentUsed:       c.PercentUsed,
			OverBudget:        c.OverBudget,
			Color:             c.Color,
		})
	}
	respondJSON(w, http.StatusOK, resp)
}

type monthTotalResponse struct {
	Year       int    `json:"year"`
	Month      int    `json:"month"`
	Total      string `json:"total"`
	TotalCents int64  `json:"total_cents"`
}

func (s *Server) handleBudgetHistory(w http.ResponseWriter, r *http.Request) {
	year, month := parseYearMonth(r)

	months := 0
	if v := r.URL.Query().Get("months"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			months = n
		}
	}

	history, err := s.budget.SpendingHistory(r.Context(), year, month, months)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "spending history failed",
			"year", year, "month", month, "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	out := make([]monthTotalResponse, 0, len(history))
	for _, m := range history {
		out = append(out, monthTotalResponse{
			Year:       m.Year,
			Month:      m.Month,
			Total:      m.Total.Format(s.cfg.CurrencySymbol),
			TotalCents: m.Total.Cents,
		})
	}
	respondJSON(w, http.StatusOK, out)
}
