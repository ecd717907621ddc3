// SPDX-License-Identifier: Apache-2.0

package httptransport

import (
	"context"

	"github.com/adiadia/coverage-tracker/internal/domain"
	"github.com/adiadia/coverage-tracker/internal/notify"
	"github.com/adiadia/coverage-tracker/internal/tracker"
)

type TrackerService interface {
	Board(ctx context.Context) ([]tracker.Track, error)
	Track(ctx context.Context, id domain.PatientID) (tracker.Track, error)
	CreatePatient(ctx context.Context, name string) (tracker.Track, error)
	UpdateStatus(ctx context.Context, id domain.PatientID, update domain.StatusUpdate) (tracker.Track, error)
	RequestRecontact(ctx context.Context, id domain.PatientID) (notify.Outcome, tracker.Track, error)
}

type HealthChecker interface {
	Check(ctx context.Context) error
}
