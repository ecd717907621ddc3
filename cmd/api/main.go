// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/adiadia/coverage-tracker/internal/config"
	"github.com/adiadia/coverage-tracker/internal/logging"
	"github.com/adiadia/coverage-tracker/internal/notify"
	"github.com/adiadia/coverage-tracker/internal/persistence/postgres"
	"github.com/adiadia/coverage-tracker/internal/repository"
	"github.com/adiadia/coverage-tracker/internal/roster"
	"github.com/adiadia/coverage-tracker/internal/tracker"
	httptransport "github.com/adiadia/coverage-tracker/internal/transport/http"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

type patientStore interface {
	tracker.PatientStore
	repository.PatientInserter
}

func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer stop()

	logger := logging.NewLogger(cfg.Env, "api")

	var (
		store  patientStore
		health httptransport.HealthChecker
		sender notify.Sender
	)

	switch cfg.Store {
	case config.StorePostgres:
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

		store = repository.NewPatientRepository(pool, logger)
		health = postgres.NewSchemaHealthChecker(pool)
		sender = repository.NewRecontactRepository(pool, logger)
	default:
		mem := repository.NewMemoryPatientStore(logger)
		store = mem
		health = mem
		sender = directSender(cfg, logger)
	}

	patients, err := roster.Load(cfg.RosterPath)
	if err != nil {
		log.Fatalf("roster load failed: %v", err)
	}
	seeded, err := repository.Seed(ctx, store, patients)
	if err != nil {
		log.Fatalf("roster seed failed: %v", err)
	}
	logger.Info("roster seeded", "store", cfg.Store, "patients", len(patients), "inserted", seeded)

	rec := notify.New(notify.Deps{
		Patients: store,
		Sender:   sender,
		Cooldown: cfg.RecontactCooldown,
		Logger:   logger,
	})
	defer rec.Close()

	handler := httptransport.NewRouter(httptransport.Deps{
		Tracker:   tracker.NewService(store, rec, logger),
		Health:    health,
		Logger:    logger,
		Version:   Version,
		Commit:    Commit,
		BuildDate: BuildDate,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("api listening",
			"addr", cfg.HTTPAddr,
			"version", Version,
			"commit", Commit,
			"build_date", BuildDate,
		)

		if err := srv.ListenAndServe(); err != nil &&
			err != http.ErrServerClosed {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(),
		5*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}
}

// directSender is used without a database: the webhook when one is
// configured, otherwise a log line.
func directSender(cfg config.Config, logger *slog.Logger) notify.Sender {
	if cfg.RecontactWebhookURL == "" {
		return notify.NewLogSender(logger)
	}
	return notify.NewWebhookSender(notify.WebhookConfig{
		URL:    cfg.RecontactWebhookURL,
		Secret: cfg.RecontactWebhookSecret,
		Logger: logger,
	})
}
