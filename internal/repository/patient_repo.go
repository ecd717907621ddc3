// SPDX-License-Identifier: Apache-2.0

package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/adiadia/coverage-tracker/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const pgUniqueViolation = "23505"

type PatientRepository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewPatientRepository(pool *pgxpool.Pool, logger *slog.Logger) *PatientRepository {
	if logger == nil {
		logger = slog.Default()
	}

	return &PatientRepository{
		pool:   pool,
		logger: logger,
	}
}

const patientColumns = `id, name, text_response_status, eligibility_status, coverage_status, created_at, updated_at`

func scanPatient(row pgx.Row) (domain.Patient, error) {
	var p domain.Patient
	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.TextResponseStatus,
		&p.EligibilityStatus,
		&p.CoverageStatus,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	return p, err
}

// ListPatients returns every patient in insertion (display) order.
func (r *PatientRepository) ListPatients(ctx context.Context) ([]domain.Patient, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+patientColumns+` FROM patients ORDER BY position ASC`)
	if err != nil {
		r.logger.Error("list patients query failed", "error", err)
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Patient, 0, 16)
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			r.logger.Error("scan patient row failed", "error", err)
			return nil, err
		}
		out = append(out, p)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error("rows iteration failed", "error", err)
		return nil, err
	}

	return out, nil
}

func (r *PatientRepository) GetPatient(ctx context.Context, id domain.PatientID) (domain.Patient, error) {
	p, err := scanPatient(r.pool.QueryRow(ctx,
		`SELECT `+patientColumns+` FROM patients WHERE id=$1`,
		id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Patient{}, fmt.Errorf("%w: %s", domain.ErrPatientNotFound, id)
		}
		r.logger.Error("get patient failed", "patient_id", id, "error", err)
		return domain.Patient{}, err
	}
	return p, nil
}

// CreatePatient registers a new patient in the pipeline entry state.
func (r *PatientRepository) CreatePatient(ctx context.Context, name string) (domain.Patient, error) {
	p, err := domain.NewPatient(domain.PatientID(uuid.NewString()), name, time.Now().UTC())
	if err != nil {
		return domain.Patient{}, err
	}
	if err := r.InsertPatient(ctx, p); err != nil {
		return domain.Patient{}, err
	}
	return p, nil
}

// InsertPatient stores a fully formed record, used for roster seeding.
func (r *PatientRepository) InsertPatient(ctx context.Context, p domain.Patient) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO patients (id, name, text_response_status, eligibility_status, coverage_status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		p.ID,
		p.Name,
		p.TextResponseStatus,
		p.EligibilityStatus,
		p.CoverageStatus,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return fmt.Errorf("%w: %s", domain.ErrDuplicatePatientID, p.ID)
		}
		r.logger.Error("insert patient failed", "patient_id", p.ID, "error", err)
		return err
	}

	r.logger.Info("patient created", "patient_id", p.ID)
	return nil
}

// UpdateStatus applies an external status event under a row lock.
func (r *PatientRepository) UpdateStatus(ctx context.Context, id domain.PatientID, update domain.StatusUpdate) (domain.Patient, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		r.logger.Error("begin tx failed", "error", err)
		return domain.Patient{}, err
	}
	defer tx.Rollback(ctx)

	current, err := scanPatient(tx.QueryRow(ctx,
		`SELECT `+patientColumns+` FROM patients WHERE id=$1 FOR UPDATE`,
		id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Patient{}, fmt.Errorf("%w: %s", domain.ErrPatientNotFound, id)
		}
		r.logger.Error("read patient for update failed", "patient_id", id, "error", err)
		return domain.Patient{}, err
	}

	next, err := current.Apply(update, time.Now().UTC())
	if err != nil {
		return domain.Patient{}, err
	}

	if _, err := tx.Exec(ctx, `
		UPDATE patients
		SET text_response_status=$2,
		    eligibility_status=$3,
		    coverage_status=$4,
		    updated_at=$5
		WHERE id=$1
	`,
		id,
		next.TextResponseStatus,
		next.EligibilityStatus,
		next.CoverageStatus,
		next.UpdatedAt,
	); err != nil {
		r.logger.Error("update patient status failed", "patient_id", id, "error", err)
		return domain.Patient{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		r.logger.Error("commit status update failed", "patient_id", id, "error", err)
		return domain.Patient{}, err
	}

	recordStatusChange(r.logger, current, next)
	return next, nil
}
