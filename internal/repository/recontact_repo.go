// SPDX-License-Identifier: Apache-2.0

package repository

import (
	"context"
	"log/slog"

	"github.com/adiadia/coverage-tracker/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type RecontactStatus string

const (
	RecontactPending RecontactStatus = "PENDING"
	RecontactSent    RecontactStatus = "SENT"
	RecontactFailed  RecontactStatus = "FAILED"
)

// RecontactRepository records re-contact intents in an outbox table that the
// worker drains.
type RecontactRepository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewRecontactRepository(pool *pgxpool.Pool, logger *slog.Logger) *RecontactRepository {
	if logger == nil {
		logger = slog.Default()
	}

	return &RecontactRepository{
		pool:   pool,
		logger: logger,
	}
}

func (r *RecontactRepository) SendRecontact(ctx context.Context, patient domain.Patient) error {
	requestID := uuid.New()

	_, err := r.pool.Exec(ctx, `
		INSERT INTO recontact_requests (id, patient_id, status)
		VALUES ($1, $2, $3)
	`,
		requestID,
		patient.ID,
		RecontactPending,
	)
	if err != nil {
		r.logger.Error("enqueue recontact failed", "patient_id", patient.ID, "error", err)
		return err
	}

	r.logger.Info("recontact enqueued", "patient_id", patient.ID, "request_id", requestID)
	return nil
}

// CountByPatient returns how many outbox rows exist for a patient.
func (r *RecontactRepository) CountByPatient(ctx context.Context, id domain.PatientID) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM recontact_requests WHERE patient_id=$1`,
		id,
	).Scan(&n); err != nil {
		r.logger.Error("count recontact requests failed", "patient_id", id, "error", err)
		return 0, err
	}
	return n, nil
}
