package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/mfigueroa/hucha/internal/config"
	"github.com/mfigueroa/hucha/internal/httpapi"
	"github.com/mfigueroa/hucha/internal/savings"
	"github.com/mfigueroa/hucha/internal/storage/memory"
	pgstore "github.com/mfigueroa/hucha/internal/storage/postgres"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	logger := buildLogger(cfg)
	slog.SetDefault(logger)

	opts := httpapi.Options{
		Currency:           cfg.Currency,
		DefaultEnvironment: cfg.DefaultEnvironment,
		AllowedOrigins:     cfg.AllowedOrigins,
	}

	var handler http.Handler
	var closeFn func()

	if cfg.DatabaseURL != "" {
		if cfg.Migrate {
			if err := pgstore.Migrate(cfg.MigrationsURL, cfg.DatabaseURL); err != nil {
				logger.Error("migrations failed", "err", err)
				os.Exit(1)
			}
			logger.Info("migrations applied")
		}
		pg, err := pgstore.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to connect to postgres", "err", err)
			os.Exit(1)
		}
		closeFn = pg.Close
		handler = httpapi.New(pg, pg, logger, opts).Handler()
		logger.Info("storage backend: postgres")
	} else {
		store := memory.New()
		if devSeed() {
			g := seedDev(store, cfg)
			logger.Info("DEV seed (memory)", "goal_id", g.ID.String(), "environment", g.Environment)
			printDevSeedBanner(g)
		}
		handler = httpapi.New(store, store, logger, opts).Handler()
		logger.Info("storage backend: memory")
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadTimeout:       5 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("savings service listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctxShutdown); err != nil {
			logger.Error("server shutdown error", "err", err)
		}
	case err := <-errCh:
		logger.Error("server error", "err", err)
	}
	if closeFn != nil {
		closeFn()
	}
}

func devSeed() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("DEV_SEED"))) {
	case "1", "true", "yes":
		return true
	}
	return false
}

// seedDev loads a small goal with a contribution history for local poking.
func seedDev(store *memory.Store, cfg config.Config) savings.Goal {
	now := time.Now().UTC()
	g := savings.Goal{
		ID:          uuid.New(),
		Name:        "Emergency fund",
		Currency:    cfg.Currency,
		TargetMinor: 100000,
		Environment: cfg.DefaultEnvironment,
		CreatedAt:   now,
	}
	e1 := savings.Entry{ID: uuid.New(), GoalID: g.ID, AmountMinor: 25000, Date: savings.Day(now.AddDate(0, 0, -14)), Bank: "bbva"}
	e2 := savings.Entry{ID: uuid.New(), GoalID: g.ID, AmountMinor: 15000, Date: savings.Day(now.AddDate(0, 0, -7)), Bank: "revolut"}
	g.CurrentMinor = e1.AmountMinor + e2.AmountMinor
	store.SeedGoal(g)
	store.SeedEntry(e1)
	store.SeedEntry(e2)
	return g
}

// printDevSeedBanner prints the seeded goal id to stdout for easy copy/paste.
func printDevSeedBanner(g savings.Goal) {
	fmt.Println("==================== DEV SEED ====================")
	fmt.Printf("goal_id: %s\n", g.ID.String())
	fmt.Printf("environment: %s\n", g.Environment)
	fmt.Println("==================================================")
}

// parseLogLevel maps config values to slog.Leveler
func parseLogLevel(s string) slog.Leveler {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR", "ERR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func buildLogger(cfg config.Config) *slog.Logger {
	level := parseLogLevel(cfg.LogLevel)
	if strings.ToLower(cfg.LogFormat) == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}
