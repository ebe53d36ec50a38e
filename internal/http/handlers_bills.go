package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"homie/internal/core"
	"homie/internal/storage"
)

type billResponse struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	AmountCents int64  `json:"amount_cents"`
	Amount      string `json:"amount"`
	DueDay      int    `json:"due_day"`
	Category    string `json:"category"`
	Recurring   bool   `json:"recurring"`
	Pattern     string `json:"pattern,omitempty"`
	Paid        bool   `json:"paid"`
	PaidDate    string `json:"paid_date,omitempty"`
	PaidBy      string `json:"paid_by,omitempty"`
	AddedBy     string `json:"added_by"`
	CreatedAt   string `json:"created_at"`
}

func (s *Server) billResponse(b storage.BillWithUsers) billResponse {
	resp := billResponse{
		ID:          b.ID,
		Name:        b.Name,
		AmountCents: b.Amount.Cents,
		Amount:      b.Amount.Format(s.cfg.CurrencySymbol),
		DueDay:      b.DueDay,
		Category:    b.Category,
		Recurring:   b.Recurring,
		Paid:        b.Paid,
		PaidBy:      b.PaidByName,
		AddedBy:     b.AddedByName,
		CreatedAt:   b.CreatedAt.Format(time.RFC3339),
	}
	if b.Recurring {
		resp.Pattern = string(b.Pattern)
	}
	if b.Paid && !b.PaidDate.IsZero() {
		resp.PaidDate = b.PaidDate.Format("2006-01-02")
	}
	return resp
}

// handleListBills runs the recurrence sweep, then returns every bill.
// A sweep failure is logged and the stale list served; the page staying
// up matters more than a missed successor, which the next request
// creates anyway.
func (s *Server) handleListBills(w http.ResponseWriter, r *http.Request) {
	if _, err := s.recurrence.ProcessRecurringBills(r.Context(), time.Now()); err != nil {
		s.logger.ErrorContext(r.Context(), "recurrence sweep failed", "error", err)
	}

	bills, err := s.repo.ListBills(r.Context())
	if err != nil {
		s.logger.ErrorContext(r.Context(), "list bills failed", "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	out := make([]billResponse, 0, len(bills))
	for _, b := range bills {
		out = append(out, s.billResponse(b))
	}
	respondJSON(w, http.StatusOK, out)
}

type createBillRequest struct {
	Name      string `json:"name"`
	Amount    string `json:"amount"`
	DueDay    int    `json:"due_day"`
	Category  string `json:"category"`
	Recurring bool   `json:"recurring"`
	Pattern   string `json:"pattern"`
}

func (s *Server) handleCreateBill(w http.ResponseWriter, r *http.Request) {
	u, _ := userFromContext(r.Context())

	var req createBillRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	cents, err := core.ParseDecimalToCents(req.Amount)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid amount: "+err.Error())
		return
	}

	bill := core.Bill{
		Name:      sanitizeInput(req.Name),
		Amount:    core.Money{Cents: cents},
		DueDay:    req.DueDay,
		Category:  sanitizeInput(req.Category),
		Recurring: req.Recurring,
		Pattern:   core.RecurrencePattern(req.Pattern),
		AddedBy:   u.ID,
	}
	if bill.Recurring && bill.Pattern == "" {
		bill.Pattern = core.Monthly
	}
	if !bill.Recurring {
		bill.Pattern = core.None
	}
	if err := bill.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	id, err := s.repo.CreateBill(r.Context(), bill)
	if errors.Is(err, core.ErrDuplicateBill) {
		respondError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		s.logger.ErrorContext(r.Context(), "create bill failed", "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	s.logger.InfoContext(r.Context(), "bill created",
		"bill_id", id, "name", bill.Name, "user_id", u.ID)
	respondJSON(w, http.StatusCreated, map[string]int64{"id": id})
}

type payBillRequest struct {
	Notes string `json:"notes"`
}

func (s *Server) handlePayBill(w http.ResponseWriter, r *http.Request) {
	u, _ := userFromContext(r.Context())

	id, ok := pathID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid bill id")
		return
	}

	var req payBillRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
	}

	paid, err := s.recurrence.MarkBillPaid(r.Context(), id, u.ID, time.Now(), sanitizeInput(req.Notes))
	if errors.Is(err, core.ErrAlreadyPaid) {
		respondError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		s.logger.ErrorContext(r.Context(), "pay bill failed", "bill_id", id, "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !paid {
		respondError(w, http.StatusNotFound, "bill not found")
		return
	}

	s.logger.InfoContext(r.Context(), "bill paid", "bill_id", id, "user_id", u.ID)
	respondJSON(w, http.StatusOK, map[string]bool{"paid": true})
}

// handleDeleteBill removes a bill. Only the user who added it, or an
// admin, may delete it.
func (s *Server) handleDeleteBill(w http.ResponseWriter, r *http.Request) {
	u, _ := userFromContext(r.Context())

	id, ok := pathID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid bill id")
		return
	}

	bill, err := s.repo.GetBill(r.Context(), id)
	if errors.Is(err, core.ErrNotFound) {
		respondError(w, http.StatusNotFound, "bill not found")
		return
	}
	if err != nil {
		s.logger.ErrorContext(r.Context(), "get bill failed", "bill_id", id, "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if bill.AddedBy != u.ID && !s.isAdmin(u) {
		respondError(w, http.StatusForbidden, "only the bill's owner may delete it")
		return
	}

	deleted, err := s.repo.DeleteBill(r.Context(), id)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "delete bill failed", "bill_id", id, "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !deleted {
		respondError(w, http.StatusNotFound, "bill not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type paymentResponse struct {
	ID          int64  `json:"id"`
	BillID      int64  `json:"bill_id"`
	AmountCents int64  `json:"amount_cents"`
	Amount      string `json:"amount"`
	PaymentDate string `json:"payment_date"`
	PaidBy      int64  `json:"paid_by"`
	Notes       string `json:"notes,omitempty"`
}

func (s *Server) handleListPayments(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid bill id")
		return
	}

	if _, err := s.repo.GetBill(r.Context(), id); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			respondError(w, http.StatusNotFound, "bill not found")
			return
		}
		s.logger.ErrorContext(r.Context(), "get bill failed", "bill_id", id, "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	payments, err := s.repo.ListPayments(r.Context(), id)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "list payments failed", "bill_id", id, "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	out := make([]paymentResponse, 0, len(payments))
	for _, p := range payments {
		out = append(out, paymentResponse{
			ID:          p.ID,
			BillID:      p.BillID,
			AmountCents: p.Amount.Cents,
			Amount:      p.Amount.Format(s.cfg.CurrencySymbol),
			PaymentDate: p.PaymentDate.Format("2006-01-02"),
			PaidBy:      p.PaidBy,
			Notes:       p.Notes,
		})
	}
	respondJSON(w, http.StatusOK, out)
}
