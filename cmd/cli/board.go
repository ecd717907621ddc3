// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/adiadia/coverage-tracker/internal/domain"
	"github.com/adiadia/coverage-tracker/internal/notify"
	"github.com/adiadia/coverage-tracker/internal/render"
	"github.com/adiadia/coverage-tracker/internal/repository"
	"github.com/adiadia/coverage-tracker/internal/roster"
	"github.com/adiadia/coverage-tracker/internal/tracker"
)

func runRosterCheck(path string, logger *slog.Logger) error {
	patients, err := roster.Load(path)
	if err != nil {
		return err
	}

	inconsistent := 0
	for _, p := range patients {
		if !p.CoverageConsistent() {
			inconsistent++
			logger.Warn("coverage status ahead of eligibility",
				"patient_id", p.ID,
				"eligibility_status", p.EligibilityStatus,
				"coverage_status", p.CoverageStatus,
			)
		}
	}

	logger.Info("roster ok", "path", path, "patients", len(patients), "inconsistent", inconsistent)
	return nil
}

// runBoard loads a roster into a throwaway in-memory store and prints the
// board. Re-contact is not offered from the CLI, so every action reads idle.
func runBoard(ctx context.Context, w io.Writer, path string, logger *slog.Logger) error {
	patients, err := roster.Load(path)
	if err != nil {
		return err
	}

	store := repository.NewMemoryPatientStore(logger)
	if _, err := repository.Seed(ctx, store, patients); err != nil {
		return fmt.Errorf("seed board: %w", err)
	}

	svc := tracker.NewService(store, idleRecontacter{}, logger)
	board, err := svc.Board(ctx)
	if err != nil {
		return err
	}
	return render.Board(w, board)
}

type idleRecontacter struct{}

func (idleRecontacter) Request(ctx context.Context, id domain.PatientID) (notify.Outcome, error) {
	return "", notify.ErrRecontactorClosed
}

func (idleRecontacter) State(id domain.PatientID) notify.ActionState {
	return notify.ActionState{State: notify.StateIdle}
}
