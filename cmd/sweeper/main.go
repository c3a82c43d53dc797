// Sweeper purges expired sessions once and exits, for cron-style scheduling
// where the authd daemon is not running.
package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"user-auth-service/internal/clock"
	"user-auth-service/internal/config"
	"user-auth-service/internal/db"
	sessionrepo "user-auth-service/internal/session/repository"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("config", "err", err)
		os.Exit(1)
	}

	pg, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		logger.Error("postgres", "err", err)
		os.Exit(1)
	}
	defer pg.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	sessions := sessionrepo.NewPostgresRepository(pg)
	n, err := sessions.DeleteExpired(ctx, clock.NewSystem().Now())
	if err != nil {
		logger.Error("sweep", "err", err)
		os.Exit(1)
	}
	logger.Info("sweep complete", "removed", n)
}
