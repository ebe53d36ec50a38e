package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"homie/internal/config"
	"homie/internal/core"
	apphttp "homie/internal/http"
	"homie/internal/log"
	"homie/internal/services"
	"homie/internal/storage"
)

func main() {
	// Optional .env for local development; the environment wins.
	_ = godotenv.Load()

	logger := log.New(log.DefaultConfig())
	log.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.ErrorContext(context.Background(), "invalid configuration", "error", err)
		os.Exit(1)
	}

	if err := run(cfg, logger); err != nil {
		logger.ErrorContext(context.Background(), "server error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *log.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, err := storage.NewRepository(cfg.SQLiteDBPath)
	if err != nil {
		return err
	}
	defer repo.Close()

	if err := seedUsers(ctx, cfg, repo, logger); err != nil {
		return err
	}

	recurrence := services.NewRecurrenceProcessor(repo, logger, cfg.RecurrenceLeadDays)
	budget := services.NewBudgetService(repo, cfg.HistoryMonths)
	server := apphttp.NewServer(cfg, repo, recurrence, budget, logger)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.InfoContext(context.Background(), "shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.InfoContext(context.Background(), "server stopped")
	return nil
}

// seedUsers syncs the configured local user directory into the database.
func seedUsers(ctx context.Context, cfg *config.Config, repo *storage.Repository, logger *log.Logger) error {
	for _, lu := range cfg.LocalUsers {
		id, err := repo.UpsertUser(ctx, core.User{
			Username: lu.Username,
			Email:    lu.Email,
			FullName: lu.FullName,
			Admin:    cfg.IsAdminEmail(lu.Email),
		})
		if err != nil {
			return err
		}
		logger.InfoContext(ctx, "seeded user", "user_id", id, "username", lu.Username)
	}
	return nil
}
