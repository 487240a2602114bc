package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AdamBeresnev/tourney/internal/config"
	"github.com/AdamBeresnev/tourney/internal/db"
	"github.com/AdamBeresnev/tourney/internal/middleware"
	"github.com/AdamBeresnev/tourney/internal/service"
	"github.com/AdamBeresnev/tourney/internal/store"
	"github.com/alexedwards/scs/sqlite3store"
	"github.com/alexedwards/scs/v2"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	database, err := db.InitDB(cfg.DatabasePath)
	if err != nil {
		slog.Error("Failed to open database", "error", err)
		os.Exit(1)
	}
	defer database.Close()

	if err := db.RunMigrations(database.DB); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	middleware.InitAuth(cfg)

	sessionManager := scs.New()
	sessionManager.Lifetime = cfg.SessionLifetime
	sessionManager.Store = sqlite3store.New(database.DB)

	rules, err := loadRules(cfg.RulesPath)
	if err != nil {
		slog.Error("Failed to load rules", "error", err)
		os.Exit(1)
	}

	userStore := store.NewUserStore(database)
	tournaments := service.NewTournamentService(database, store.NewTournamentStore(database), service.Options{
		CheckInWindow: cfg.CheckInWindow,
		LockTimeout:   cfg.LockTimeout,
		StreamParent:  cfg.PublicHost,
	})

	a := &app{
		cfg:            cfg,
		sessionManager: sessionManager,
		tournaments:    tournaments,
		users:          service.NewUserService(userStore, cfg.AdminEmails),
		userStore:      userStore,
		community:      store.NewCommunityStore(database),
		rules:          rules,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go runScheduler(ctx, tournaments, cfg.SchedulerInterval)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      newRouter(a),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		slog.Info("Server starting", "address", server.Addr)
		serverErrors <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		slog.Info("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Graceful shutdown failed", "error", err)
		server.Close()
	}
	slog.Info("Server stopped")
}

// runScheduler closes registration for tournaments whose check-in window has
// begun, so the phase moves even when nobody writes to the tournament.
func runScheduler(ctx context.Context, tournaments *service.TournamentService, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	slog.Info("Phase scheduler started", "interval", interval)

	for {
		if n, err := tournaments.AdvanceDuePhases(ctx); err != nil {
			slog.Error("Scheduler run failed", "error", err)
		} else if n > 0 {
			slog.Info("Scheduler opened check-in", "tournaments", n)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

const defaultRules = `1. Teams are two players: a captain and a duo partner.
2. Approved teams must check in with their code during the hour before the start.
3. Teams that do not check in are removed from the bracket.
4. Matches are single elimination. Report the score of every game you play.
5. Be respectful in chat. Abuse can be reported and will be reviewed.
`

func loadRules(path string) (string, error) {
	if path == "" {
		return defaultRules, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read rules from %s: %w", path, err)
	}
	return string(data), nil
}
