package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"homie/internal/config"
	"homie/internal/core"
	"homie/internal/log"
	"homie/internal/services"
	"homie/internal/storage"
)

type testEnv struct {
	server *Server
	repo   *storage.Repository
	alice  int64
	admin  int64
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	repo, err := storage.NewRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	ctx := context.Background()
	alice, err := repo.UpsertUser(ctx, core.User{Username: "alice", Email: "alice@example.com"})
	if err != nil {
		t.Fatalf("seed alice: %v", err)
	}
	admin, err := repo.UpsertUser(ctx, core.User{Username: "admin", Email: "admin@example.com", Admin: true})
	if err != nil {
		t.Fatalf("seed admin: %v", err)
	}

	cfg := &config.Config{
		Port:               "8080",
		CurrencySymbol:     "$",
		RecurrenceLeadDays: 5,
		HistoryMonths:      6,
		AdminEmails:        []string{"admin@example.com"},
	}
	logger := log.New(log.Config{Handler: slog.NewTextHandler(io.Discard, nil)})
	recurrence := services.NewRecurrenceProcessor(repo, logger, cfg.RecurrenceLeadDays)
	budget := services.NewBudgetService(repo, cfg.HistoryMonths)
	server := NewServer(cfg, repo, recurrence, budget, logger)
	t.Cleanup(func() { server.rateLimiter.stop() })

	return &testEnv{server: server, repo: repo, alice: alice, admin: admin}
}

func (e *testEnv) do(t *testing.T, method, path string, userID int64, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(buf)
	}
	req := httptest.NewRequest(method, path, reader)
	if userID != 0 {
		req.Header.Set("X-User-ID", fmt.Sprintf("%d", userID))
	}
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestHealthEndpointsNeedNoAuth(t *testing.T) {
	env := newTestEnv(t)

	if rec := env.do(t, http.MethodGet, "/healthz", 0, nil); rec.Code != http.StatusOK {
		t.Errorf("healthz = %d", rec.Code)
	}
	if rec := env.do(t, http.MethodGet, "/readyz", 0, nil); rec.Code != http.StatusOK {
		t.Errorf("readyz = %d", rec.Code)
	}
}

func TestAuthRequired(t *testing.T) {
	env := newTestEnv(t)

	if rec := env.do(t, http.MethodGet, "/api/bills/", 0, nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("no header = %d, want 401", rec.Code)
	}
	if rec := env.do(t, http.MethodGet, "/api/bills/", 9999, nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("unknown user = %d, want 401", rec.Code)
	}
	if rec := env.do(t, http.MethodGet, "/api/bills/", env.alice, nil); rec.Code != http.StatusOK {
		t.Errorf("valid user = %d, want 200", rec.Code)
	}
}

func TestCreateAndListBills(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/bills/", env.alice, createBillRequest{
		Name:      "Electric",
		Amount:    "125.50",
		DueDay:    15,
		Category:  "Utilities",
		Recurring: true,
		Pattern:   "monthly",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create = %d: %s", rec.Code, rec.Body.String())
	}

	rec = env.do(t, http.MethodGet, "/api/bills/", env.alice, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list = %d", rec.Code)
	}
	bills := decodeBody[[]billResponse](t, rec)
	if len(bills) != 1 {
		t.Fatalf("got %d bills", len(bills))
	}
	b := bills[0]
	if b.Name != "Electric" || b.AmountCents != 12550 || b.Amount != "$125.50" {
		t.Errorf("bill = %+v", b)
	}
	if b.AddedBy != "alice" || b.Paid || b.Pattern != "monthly" {
		t.Errorf("bill = %+v", b)
	}
}

func TestCreateBillValidation(t *testing.T) {
	env := newTestEnv(t)

	cases := []struct {
		name string
		req  createBillRequest
	}{
		{"bad amount", createBillRequest{Name: "X", Amount: "abc", DueDay: 1}},
		{"negative amount", createBillRequest{Name: "X", Amount: "-5", DueDay: 1}},
		{"bad due day", createBillRequest{Name: "X", Amount: "10", DueDay: 32}},
		{"empty name", createBillRequest{Name: "  ", Amount: "10", DueDay: 1}},
		{"bad pattern", createBillRequest{Name: "X", Amount: "10", DueDay: 1, Recurring: true, Pattern: "fortnightly"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/api/bills/", env.alice, tc.req)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400: %s", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestDuplicateUnpaidBillConflict(t *testing.T) {
	env := newTestEnv(t)

	req := createBillRequest{Name: "Netflix", Amount: "15.99", DueDay: 28, Category: "Entertainment"}
	if rec := env.do(t, http.MethodPost, "/api/bills/", env.alice, req); rec.Code != http.StatusCreated {
		t.Fatalf("first create = %d", rec.Code)
	}
	if rec := env.do(t, http.MethodPost, "/api/bills/", env.alice, req); rec.Code != http.StatusConflict {
		t.Errorf("duplicate = %d, want 409", rec.Code)
	}
}

func TestPayBillLifecycle(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/bills/", env.alice, createBillRequest{
		Name: "Water", Amount: "30", DueDay: 10,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create = %d", rec.Code)
	}
	id := decodeBody[map[string]int64](t, rec)["id"]

	path := fmt.Sprintf("/api/bills/%d/pay", id)
	if rec := env.do(t, http.MethodPost, path, env.alice, payBillRequest{Notes: "done"}); rec.Code != http.StatusOK {
		t.Fatalf("pay = %d: %s", rec.Code, rec.Body.String())
	}
	if rec := env.do(t, http.MethodPost, path, env.alice, nil); rec.Code != http.StatusConflict {
		t.Errorf("second pay = %d, want 409", rec.Code)
	}
	if rec := env.do(t, http.MethodPost, "/api/bills/9999/pay", env.alice, nil); rec.Code != http.StatusNotFound {
		t.Errorf("unknown bill pay = %d, want 404", rec.Code)
	}

	rec = env.do(t, http.MethodGet, fmt.Sprintf("/api/bills/%d/payments", id), env.alice, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("payments = %d", rec.Code)
	}
	payments := decodeBody[[]paymentResponse](t, rec)
	if len(payments) != 1 || payments[0].Notes != "done" || payments[0].AmountCents != 3000 {
		t.Errorf("payments = %+v", payments)
	}
}

func TestDeleteBill(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/bills/", env.alice, createBillRequest{
		Name: "Gym", Amount: "25", DueDay: 5,
	})
	id := decodeBody[map[string]int64](t, rec)["id"]

	path := fmt.Sprintf("/api/bills/%d", id)
	if rec := env.do(t, http.MethodDelete, path, env.alice, nil); rec.Code != http.StatusNoContent {
		t.Errorf("delete = %d", rec.Code)
	}
	if rec := env.do(t, http.MethodDelete, path, env.alice, nil); rec.Code != http.StatusNotFound {
		t.Errorf("second delete = %d, want 404", rec.Code)
	}
}

func TestDeleteBillOwnership(t *testing.T) {
	env := newTestEnv(t)

	bob, err := env.repo.UpsertUser(context.Background(), core.User{Username: "bob", Email: "bob@example.com"})
	if err != nil {
		t.Fatalf("seed bob: %v", err)
	}

	rec := env.do(t, http.MethodPost, "/api/bills/", env.alice, createBillRequest{
		Name: "Rent", Amount: "900", DueDay: 1,
	})
	id := decodeBody[map[string]int64](t, rec)["id"]
	path := fmt.Sprintf("/api/bills/%d", id)

	if rec := env.do(t, http.MethodDelete, path, bob, nil); rec.Code != http.StatusForbidden {
		t.Errorf("other user delete = %d, want 403", rec.Code)
	}
	if rec := env.do(t, http.MethodDelete, path, env.admin, nil); rec.Code != http.StatusNoContent {
		t.Errorf("admin delete = %d, want 204", rec.Code)
	}
}

func TestBudgetEndpoint(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.repo.CreateCategory(ctx, core.BudgetCategory{
		Name: "Utilities", MonthlyLimit: core.Money{Cents: 20000},
	}); err != nil {
		t.Fatalf("CreateCategory: %v", err)
	}

	rec := env.do(t, http.MethodPost, "/api/bills/", env.alice, createBillRequest{
		Name: "Electric", Amount: "150", DueDay: 15, Category: "Utilities",
	})
	id := decodeBody[map[string]int64](t, rec)["id"]
	if rec := env.do(t, http.MethodPost, fmt.Sprintf("/api/bills/%d/pay", id), env.alice, nil); rec.Code != http.StatusOK {
		t.Fatalf("pay = %d", rec.Code)
	}

	rec = env.do(t, http.MethodGet, "/api/budget/", env.alice, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("budget = %d", rec.Code)
	}
	report := decodeBody[budgetResponse](t, rec)
	var utilities *categoryBudgetResponse
	for i := range report.Categories {
		if report.Categories[i].Name == "Utilities" {
			utilities = &report.Categories[i]
		}
	}
	if utilities == nil {
		t.Fatalf("Utilities missing: %+v", report)
	}
	if utilities.SpentCents != 15000 || utilities.PercentUsed != 75 || utilities.OverBudget {
		t.Errorf("Utilities = %+v", utilities)
	}

	rec = env.do(t, http.MethodGet, "/api/budget/history", env.alice, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("history = %d", rec.Code)
	}
	history := decodeBody[[]monthTotalResponse](t, rec)
	if len(history) != 6 {
		t.Errorf("history length = %d, want 6", len(history))
	}
	if history[len(history)-1].TotalCents != 15000 {
		t.Errorf("current month total = %d, want 15000", history[len(history)-1].TotalCents)
	}

	rec = env.do(t, http.MethodGet, "/api/budget/history?months=3", env.alice, nil)
	if got := len(decodeBody[[]monthTotalResponse](t, rec)); got != 3 {
		t.Errorf("months=3 length = %d", got)
	}
}

func TestCategoryCRUD(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/categories/", env.alice, categoryRequest{
		Name: "Travel", MonthlyLimit: "500", Color: "#00aaff",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create = %d: %s", rec.Code, rec.Body.String())
	}
	id := decodeBody[map[string]int64](t, rec)["id"]

	rec = env.do(t, http.MethodPut, fmt.Sprintf("/api/categories/%d", id), env.alice, categoryRequest{
		Name: "Trips", MonthlyLimit: "600",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("update = %d: %s", rec.Code, rec.Body.String())
	}

	rec = env.do(t, http.MethodGet, "/api/categories/", env.alice, nil)
	cats := decodeBody[[]categoryResponse](t, rec)
	if len(cats) != 1 || cats[0].Name != "Trips" || cats[0].MonthlyLimitCents != 60000 {
		t.Errorf("categories = %+v", cats)
	}

	if rec := env.do(t, http.MethodDelete, fmt.Sprintf("/api/categories/%d", id), env.alice, nil); rec.Code != http.StatusNoContent {
		t.Errorf("delete = %d", rec.Code)
	}
	if rec := env.do(t, http.MethodPut, "/api/categories/9999", env.alice, categoryRequest{Name: "Ghost"}); rec.Code != http.StatusNotFound {
		t.Errorf("update missing = %d, want 404", rec.Code)
	}
}

func TestAdminGate(t *testing.T) {
	env := newTestEnv(t)

	if rec := env.do(t, http.MethodGet, "/api/admin/features", env.alice, nil); rec.Code != http.StatusForbidden {
		t.Errorf("non-admin = %d, want 403", rec.Code)
	}
	if rec := env.do(t, http.MethodGet, "/api/admin/features", env.admin, nil); rec.Code != http.StatusOK {
		t.Errorf("admin = %d, want 200", rec.Code)
	}
}

func TestFeatureVisibilityGate(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/admin/features", env.admin, setFeatureRequest{
		UserID: env.alice, Feature: "bills", Visible: false,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("set feature = %d: %s", rec.Code, rec.Body.String())
	}

	if rec := env.do(t, http.MethodGet, "/api/bills/", env.alice, nil); rec.Code != http.StatusForbidden {
		t.Errorf("hidden feature = %d, want 403", rec.Code)
	}
	// The admin's own bills stay visible.
	if rec := env.do(t, http.MethodGet, "/api/bills/", env.admin, nil); rec.Code != http.StatusOK {
		t.Errorf("admin bills = %d, want 200", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/api/admin/features", env.admin, setFeatureRequest{
		UserID: env.alice, Feature: "bills", Visible: true,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("restore feature = %d", rec.Code)
	}
	if rec := env.do(t, http.MethodGet, "/api/bills/", env.alice, nil); rec.Code != http.StatusOK {
		t.Errorf("restored feature = %d, want 200", rec.Code)
	}
}

func TestSetFeatureValidation(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/admin/features", env.admin, setFeatureRequest{
		UserID: env.alice, Feature: "laundry", Visible: false,
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown feature = %d, want 400", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/api/admin/features", env.admin, setFeatureRequest{
		UserID: 9999, Feature: "bills", Visible: false,
	})
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown user = %d, want 404", rec.Code)
	}
}

func TestListUsers(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/users", env.alice, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("users = %d", rec.Code)
	}
	users := decodeBody[[]userResponse](t, rec)
	if len(users) != 2 {
		t.Fatalf("got %d users", len(users))
	}
	byName := map[string]userResponse{}
	for _, u := range users {
		byName[u.Username] = u
	}
	if !byName["admin"].Admin || byName["alice"].Admin {
		t.Errorf("admin flags wrong: %+v", users)
	}
}

func TestSecurityHeaders(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/healthz", 0, nil)
	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q", got)
	}
	if got := rec.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Errorf("X-Frame-Options = %q", got)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID")
	}
}

func TestRecurrenceSweepOnListBills(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// Seed a paid recurring bill whose successor is overdue, then hit
	// the list endpoint: the sweep should materialize the next instance.
	id, err := env.repo.CreateBill(ctx, core.Bill{
		Name: "Netflix", Amount: core.Money{Cents: 1599}, DueDay: 28,
		Category: "Entertainment", Recurring: true, Pattern: core.Monthly,
		AddedBy: env.alice,
	})
	if err != nil {
		t.Fatalf("CreateBill: %v", err)
	}
	err = env.repo.WithTx(ctx, func(tx *storage.Tx) error {
		_, err := tx.MarkBillPaid(ctx, id, env.alice, time.Now().AddDate(0, -2, 0))
		return err
	})
	if err != nil {
		t.Fatalf("mark paid: %v", err)
	}

	rec := env.do(t, http.MethodGet, "/api/bills/", env.alice, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list = %d", rec.Code)
	}
	bills := decodeBody[[]billResponse](t, rec)
	unpaid := 0
	for _, b := range bills {
		if !b.Paid && b.Name == "Netflix" {
			unpaid++
		}
	}
	if unpaid != 1 {
		t.Errorf("unpaid successors = %d, want 1", unpaid)
	}
}
