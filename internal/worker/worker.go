// SPDX-License-Identifier: Apache-2.0

package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/adiadia/coverage-tracker/internal/domain"
	"github.com/adiadia/coverage-tracker/internal/metrics"
	"github.com/adiadia/coverage-tracker/internal/notify"
	"github.com/adiadia/coverage-tracker/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Deliverer hands one re-contact request to the messaging backend.
type Deliverer interface {
	Deliver(ctx context.Context, payload notify.RecontactPayload) error
}

type Deps struct {
	Pool           *pgxpool.Pool
	Logger         *slog.Logger
	Deliverer      Deliverer
	LeaseFor       time.Duration
	MaxAttempts    int
	RetryBaseDelay time.Duration
}

// Worker drains the recontact_requests outbox.
type Worker struct {
	pool           *pgxpool.Pool
	logger         *slog.Logger
	deliverer      Deliverer
	leaseFor       time.Duration
	maxAttempts    int
	retryBaseDelay time.Duration
	now            func() time.Time
}

func New(deps Deps) *Worker {
	l := deps.Logger
	if l == nil {
		l = slog.Default()
	}

	lease := deps.LeaseFor
	if lease <= 0 {
		lease = 5 * time.Minute
	}

	maxAtt := deps.MaxAttempts
	if maxAtt <= 0 {
		maxAtt = 5
	}

	base := deps.RetryBaseDelay
	if base <= 0 {
		base = 2 * time.Second
	}

	return &Worker{
		pool:           deps.Pool,
		logger:         l,
		deliverer:      deps.Deliverer,
		leaseFor:       lease,
		maxAttempts:    maxAtt,
		retryBaseDelay: base,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

type claimedRequest struct {
	ID        uuid.UUID
	PatientID domain.PatientID
	Attempts  int
	CreatedAt time.Time
}

// ProcessOnce claims at most one due request and delivers it. An empty
// outbox is not an error.
func (w *Worker) ProcessOnce(ctx context.Context) error {
	if w.deliverer == nil {
		return errors.New("worker has no deliverer")
	}

	req, err := w.claimOne(ctx)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		w.logger.Error("claim recontact request failed", "error", err)
		return err
	}

	w.logger.Info("recontact request claimed",
		"request_id", req.ID,
		"patient_id", req.PatientID,
		"attempt", req.Attempts,
	)

	deliverErr := w.deliverer.Deliver(ctx, notify.RecontactPayload{
		RequestID:   req.ID,
		PatientID:   req.PatientID,
		RequestedAt: req.CreatedAt,
	})

	return w.settle(ctx, req, deliverErr)
}

// claimOne leases the oldest due PENDING row. The lease pushes
// next_attempt_at forward so a crashed worker's row becomes due again.
func (w *Worker) claimOne(ctx context.Context) (claimedRequest, error) {
	started := time.Now()
	defer func() { metrics.ObserveOutboxClaimLatency(time.Since(started)) }()

	tx, err := w.pool.Begin(ctx)
	if err != nil {
		return claimedRequest{}, err
	}
	defer tx.Rollback(ctx)

	now := w.now()

	var r claimedRequest
	err = tx.QueryRow(ctx, `
		SELECT id, patient_id, attempts, created_at
		FROM recontact_requests
		WHERE status = $1
		  AND next_attempt_at <= $2
		ORDER BY next_attempt_at ASC, created_at ASC
		FOR UPDATE SKIP LOCKED
		LIMIT 1
	`,
		repository.RecontactPending,
		now,
	).Scan(&r.ID, &r.PatientID, &r.Attempts, &r.CreatedAt)
	if err != nil {
		return claimedRequest{}, err
	}

	// every claim counts as an attempt
	r.Attempts++
	if _, err := tx.Exec(ctx, `
		UPDATE recontact_requests
		SET attempts = $2,
		    next_attempt_at = $3
		WHERE id = $1
	`,
		r.ID,
		r.Attempts,
		now.Add(w.leaseFor),
	); err != nil {
		return claimedRequest{}, err
	}

	return r, tx.Commit(ctx)
}

type settlement struct {
	status      repository.RecontactStatus
	nextAttempt time.Time
	label       string
}

// decide maps a delivery result onto the row's next state.
func (w *Worker) decide(attempts int, deliverErr error) settlement {
	now := w.now()
	switch {
	case deliverErr == nil:
		return settlement{status: repository.RecontactSent, nextAttempt: now, label: "SENT"}
	case attempts < w.maxAttempts:
		return settlement{
			status:      repository.RecontactPending,
			nextAttempt: now.Add(w.retryDelay(attempts)),
			label:       "RETRY",
		}
	default:
		return settlement{status: repository.RecontactFailed, nextAttempt: now, label: "FAILED"}
	}
}

// retryDelay doubles per attempt: base, 2*base, 4*base...
func (w *Worker) retryDelay(attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	shift := attempts - 1
	if shift > 16 {
		shift = 16
	}
	return w.retryBaseDelay * time.Duration(1<<shift)
}

func (w *Worker) settle(ctx context.Context, req claimedRequest, deliverErr error) error {
	s := w.decide(req.Attempts, deliverErr)

	var lastErr *string
	if deliverErr != nil {
		msg := deliverErr.Error()
		lastErr = &msg
	}

	var sentAt *time.Time
	if s.status == repository.RecontactSent {
		t := w.now()
		sentAt = &t
	}

	if _, err := w.pool.Exec(ctx, `
		UPDATE recontact_requests
		SET status = $2,
		    next_attempt_at = $3,
		    last_error = $4,
		    sent_at = $5
		WHERE id = $1
	`,
		req.ID,
		s.status,
		s.nextAttempt,
		lastErr,
		sentAt,
	); err != nil {
		w.logger.Error("settle recontact request failed",
			"request_id", req.ID,
			"patient_id", req.PatientID,
			"error", err,
		)
		return err
	}

	metrics.IncRecontactDelivery(s.label)

	switch s.label {
	case "SENT":
		w.logger.Info("recontact request sent",
			"request_id", req.ID,
			"patient_id", req.PatientID,
		)
	case "RETRY":
		w.logger.Warn("recontact delivery failed - retrying",
			"request_id", req.ID,
			"patient_id", req.PatientID,
			"attempt", req.Attempts,
			"max_attempts", w.maxAttempts,
			"next_attempt_at", s.nextAttempt,
			"error", deliverErr,
		)
	default:
		w.logger.Error("recontact request permanently failed",
			"request_id", req.ID,
			"patient_id", req.PatientID,
			"attempts", req.Attempts,
			"error", deliverErr,
		)
	}

	return nil
}
