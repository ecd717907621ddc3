// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/adiadia/coverage-tracker/internal/config"
	"github.com/adiadia/coverage-tracker/internal/logging"
	"github.com/adiadia/coverage-tracker/internal/metrics"
	"github.com/adiadia/coverage-tracker/internal/notify"
	"github.com/adiadia/coverage-tracker/internal/persistence/postgres"
	"github.com/adiadia/coverage-tracker/internal/worker"
)

func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer stop()

	logger := logging.NewLogger(cfg.Env, "worker")
	metrics.Init()

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL, postgres.DefaultPoolOptions())
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer pool.Close()

	if cfg.AutoMigrate {
		if err := postgres.EnsureSchema(ctx, pool, logger); err != nil {
			log.Fatalf("db migrate failed: %v", err)
		}
	}

	if cfg.RecontactWebhookURL == "" {
		logger.Warn("RECONTACT_WEBHOOK_URL not set; deliveries will fail until configured")
	}

	w := worker.New(worker.Deps{
		Pool:   pool,
		Logger: logger,
		Deliverer: notify.NewWebhookSender(notify.WebhookConfig{
			URL:    cfg.RecontactWebhookURL,
			Secret: cfg.RecontactWebhookSecret,
			Logger: logger,
		}),
		MaxAttempts: cfg.WorkerMaxAttempts,
	})

	logger.Info("worker started", "poll_interval", cfg.WorkerPollInterval.String())

	ticker := time.NewTicker(cfg.WorkerPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("worker stopping")
			return
		case <-ticker.C:
			if err := w.ProcessOnce(ctx); err != nil && ctx.Err() == nil {
				logger.Error("worker process failed", "error", err)
			}
		}
	}
}
