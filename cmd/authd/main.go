// Authd runs the assembled engine as a daemon: it keeps the store connections
// warm, sweeps expired sessions on an interval, and exports metrics when an
// OTLP endpoint is configured.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"user-auth-service/internal/app"
	"user-auth-service/internal/config"
	"user-auth-service/internal/telemetry"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("config", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var metrics *telemetry.Metrics
	if cfg.OTLPEndpoint != "" {
		shutdown, err := telemetry.Setup(ctx, "user-auth-service", cfg.OTLPEndpoint)
		if err != nil {
			logger.Error("telemetry setup", "err", err)
			os.Exit(1)
		}
		defer func() {
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(flushCtx); err != nil {
				logger.Warn("telemetry shutdown", "err", err)
			}
		}()
		if metrics, err = telemetry.NewMetrics(); err != nil {
			logger.Error("telemetry metrics", "err", err)
			os.Exit(1)
		}
	}

	engine, err := app.New(ctx, cfg, logger, metrics)
	if err != nil {
		logger.Error("startup", "err", err)
		os.Exit(1)
	}
	defer engine.Close()

	go func() {
		ticker := time.NewTicker(cfg.SweepEvery())
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := engine.Tokens.SweepExpired(ctx)
				if err != nil {
					logger.Warn("session sweep", "err", err)
					continue
				}
				if n > 0 {
					logger.Info("session sweep", "removed", n)
				}
			}
		}
	}()

	logger.Info("authd up", "env", cfg.Env, "sweep_interval", cfg.SweepEvery().String())
	<-ctx.Done()
	logger.Info("shutting down")
}
