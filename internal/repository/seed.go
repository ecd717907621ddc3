// SPDX-License-Identifier: Apache-2.0

package repository

import (
	"context"
	"errors"

	"github.com/adiadia/coverage-tracker/internal/domain"
)

type PatientInserter interface {
	InsertPatient(ctx context.Context, p domain.Patient) error
}

// Seed inserts the roster in order. Patients that already exist are skipped
// so a restart against a persistent store is a no-op.
func Seed(ctx context.Context, store PatientInserter, patients []domain.Patient) (int, error) {
	inserted := 0
	for _, p := range patients {
		if err := store.InsertPatient(ctx, p); err != nil {
			if errors.Is(err, domain.ErrDuplicatePatientID) {
				continue
			}
			return inserted, err
		}
		inserted++
	}
	return inserted, nil
}
