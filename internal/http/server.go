package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"homie/internal/config"
	"homie/internal/log"
	"homie/internal/services"
	"homie/internal/storage"
)

// mutating requests per client per minute
const rateLimitPerMinute = 60

// Server is the HTTP surface of the household API.
type Server struct {
	cfg         *config.Config
	repo        *storage.Repository
	recurrence  *services.RecurrenceProcessor
	budget      *services.BudgetService
	logger      *log.Logger
	rateLimiter *rateLimiter
	httpServer  *http.Server
}

func NewServer(cfg *config.Config, repo *storage.Repository, recurrence *services.RecurrenceProcessor, budget *services.BudgetService, logger *log.Logger) *Server {
	s := &Server{
		cfg:         cfg,
		repo:        repo,
		recurrence:  recurrence,
		budget:      budget,
		logger:      logger.WithComponent("http"),
		rateLimiter: newRateLimiter(rateLimitPerMinute),
	}

	r := chi.NewRouter()
	r.Use(s.withRequestID)
	r.Use(s.withSecurityHeaders)
	r.Use(s.withRequestLogging)

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)

	r.Route("/api", func(r chi.Router) {
		r.Use(s.withAuth)
		r.Use(s.withRateLimit)

		r.Route("/bills", func(r chi.Router) {
			r.Use(s.withFeature("bills"))
			r.Get("/", s.handleListBills)
			r.Post("/", s.handleCreateBill)
			r.Post("/{id}/pay", s.handlePayBill)
			r.Delete("/{id}", s.handleDeleteBill)
			r.Get("/{id}/payments", s.handleListPayments)
		})

		r.Route("/budget", func(r chi.Router) {
			r.Use(s.withFeature("budget"))
			r.Get("/", s.handleBudget)
			r.Get("/history", s.handleBudgetHistory)
		})

		r.Route("/categories", func(r chi.Router) {
			r.Use(s.withFeature("budget"))
			r.Get("/", s.handleListCategories)
			r.Post("/", s.handleCreateCategory)
			r.Put("/{id}", s.handleUpdateCategory)
			r.Delete("/{id}", s.handleDeleteCategory)
		})

		r.Get("/users", s.handleListUsers)

		r.Route("/admin", func(r chi.Router) {
			r.Use(s.withAdmin)
			r.Get("/features", s.handleListFeatures)
			r.Post("/features", s.handleSetFeature)
		})
	})

	s.httpServer = &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return s
}

// Start blocks serving requests until the listener fails or Shutdown is
// called.
func (s *Server) Start() error {
	s.logger.InfoContext(context.Background(), "server listening", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.rateLimiter.stop()
	return s.httpServer.Shutdown(ctx)
}

// Handler exposes the router, used by the tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.repo.Ping(r.Context()); err != nil {
		respondError(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
