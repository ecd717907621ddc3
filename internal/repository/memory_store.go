// SPDX-License-Identifier: Apache-2.0

package repository

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/adiadia/coverage-tracker/internal/domain"
	"github.com/google/uuid"
)

// MemoryPatientStore keeps patients in process, in insertion order. It backs
// local runs and tests; nothing survives a restart.
type MemoryPatientStore struct {
	mu     sync.RWMutex
	order  []domain.PatientID
	byID   map[domain.PatientID]domain.Patient
	logger *slog.Logger
	now    func() time.Time
}

func NewMemoryPatientStore(logger *slog.Logger) *MemoryPatientStore {
	if logger == nil {
		logger = slog.Default()
	}

	return &MemoryPatientStore{
		byID:   make(map[domain.PatientID]domain.Patient, 16),
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryPatientStore) ListPatients(ctx context.Context) ([]domain.Patient, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Patient, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id])
	}
	return out, nil
}

func (s *MemoryPatientStore) GetPatient(ctx context.Context, id domain.PatientID) (domain.Patient, error) {
	if err := ctx.Err(); err != nil {
		return domain.Patient{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.byID[id]
	if !ok {
		return domain.Patient{}, fmt.Errorf("%w: %s", domain.ErrPatientNotFound, id)
	}
	return p, nil
}

func (s *MemoryPatientStore) CreatePatient(ctx context.Context, name string) (domain.Patient, error) {
	p, err := domain.NewPatient(domain.PatientID(uuid.NewString()), name, s.now())
	if err != nil {
		return domain.Patient{}, err
	}
	if err := s.InsertPatient(ctx, p); err != nil {
		return domain.Patient{}, err
	}
	return p, nil
}

func (s *MemoryPatientStore) InsertPatient(ctx context.Context, p domain.Patient) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byID[p.ID]; exists {
		return fmt.Errorf("%w: %s", domain.ErrDuplicatePatientID, p.ID)
	}
	s.byID[p.ID] = p
	s.order = append(s.order, p.ID)

	s.logger.Info("patient created", "patient_id", p.ID)
	return nil
}

func (s *MemoryPatientStore) UpdateStatus(ctx context.Context, id domain.PatientID, update domain.StatusUpdate) (domain.Patient, error) {
	if err := ctx.Err(); err != nil {
		return domain.Patient{}, err
	}

	s.mu.Lock()
	current, ok := s.byID[id]
	if !ok {
		s.mu.Unlock()
		return domain.Patient{}, fmt.Errorf("%w: %s", domain.ErrPatientNotFound, id)
	}

	next, err := current.Apply(update, s.now())
	if err != nil {
		s.mu.Unlock()
		return domain.Patient{}, err
	}
	s.byID[id] = next
	s.mu.Unlock()

	recordStatusChange(s.logger, current, next)
	return next, nil
}

// Check satisfies the readiness check; the in-memory store is always ready.
func (s *MemoryPatientStore) Check(ctx context.Context) error {
	return ctx.Err()
}
