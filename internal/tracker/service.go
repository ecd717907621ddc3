// SPDX-License-Identifier: Apache-2.0

// Package tracker assembles the per-patient view the board renders: the
// patient record, its three derived steps and connectors, and the state of
// the re-contact command.
package tracker

import (
	"context"
	"log/slog"

	"github.com/adiadia/coverage-tracker/internal/domain"
	"github.com/adiadia/coverage-tracker/internal/notify"
	"github.com/adiadia/coverage-tracker/internal/progress"
)

type PatientStore interface {
	ListPatients(ctx context.Context) ([]domain.Patient, error)
	GetPatient(ctx context.Context, id domain.PatientID) (domain.Patient, error)
	CreatePatient(ctx context.Context, name string) (domain.Patient, error)
	UpdateStatus(ctx context.Context, id domain.PatientID, update domain.StatusUpdate) (domain.Patient, error)
}

type Recontacter interface {
	Request(ctx context.Context, id domain.PatientID) (notify.Outcome, error)
	State(id domain.PatientID) notify.ActionState
}

// RecontactView is the action control. Enabled is false once the patient
// has responded.
type RecontactView struct {
	Enabled   bool         `json:"enabled"`
	State     notify.State `json:"state"`
	Failed    bool         `json:"failed"`
	LastError string       `json:"last_error,omitempty"`
}

type Track struct {
	Patient    domain.Patient                          `json:"patient"`
	Steps      [progress.StageCount]progress.StepState `json:"steps"`
	Connectors []bool                                  `json:"connectors"`
	Recontact  RecontactView                           `json:"recontact"`
}

func BuildTrack(p domain.Patient, action notify.ActionState) Track {
	steps := progress.Derive(p)

	state := action.State
	if state == "" {
		state = notify.StateIdle
	}

	return Track{
		Patient:    p,
		Steps:      steps,
		Connectors: progress.Connectors(steps[:]),
		Recontact: RecontactView{
			Enabled:   p.AwaitingContact(),
			State:     state,
			Failed:    action.Failed,
			LastError: action.LastError,
		},
	}
}

type Service struct {
	store     PatientStore
	recontact Recontacter
	logger    *slog.Logger
}

func NewService(store PatientStore, recontact Recontacter, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:     store,
		recontact: recontact,
		logger:    logger,
	}
}

func (s *Service) actionState(id domain.PatientID) notify.ActionState {
	if s.recontact == nil {
		return notify.ActionState{State: notify.StateIdle}
	}
	return s.recontact.State(id)
}

// Board returns one track per patient in store order.
func (s *Service) Board(ctx context.Context) ([]Track, error) {
	patients, err := s.store.ListPatients(ctx)
	if err != nil {
		s.logger.Error("list patients failed", "error", err)
		return nil, err
	}

	out := make([]Track, 0, len(patients))
	for _, p := range patients {
		out = append(out, BuildTrack(p, s.actionState(p.ID)))
	}
	return out, nil
}

func (s *Service) Track(ctx context.Context, id domain.PatientID) (Track, error) {
	p, err := s.store.GetPatient(ctx, id)
	if err != nil {
		return Track{}, err
	}
	return BuildTrack(p, s.actionState(id)), nil
}

// RequestRecontact fires the re-contact command and returns the outcome
// together with the refreshed track.
func (s *Service) RequestRecontact(ctx context.Context, id domain.PatientID) (notify.Outcome, Track, error) {
	if s.recontact == nil {
		return "", Track{}, notify.ErrRecontactorClosed
	}

	outcome, err := s.recontact.Request(ctx, id)
	if err != nil {
		return "", Track{}, err
	}

	track, err := s.Track(ctx, id)
	if err != nil {
		return "", Track{}, err
	}
	return outcome, track, nil
}

func (s *Service) CreatePatient(ctx context.Context, name string) (Track, error) {
	p, err := s.store.CreatePatient(ctx, name)
	if err != nil {
		return Track{}, err
	}
	return BuildTrack(p, s.actionState(p.ID)), nil
}

// UpdateStatus records a status event from the verification backend.
func (s *Service) UpdateStatus(ctx context.Context, id domain.PatientID, update domain.StatusUpdate) (Track, error) {
	p, err := s.store.UpdateStatus(ctx, id, update)
	if err != nil {
		return Track{}, err
	}
	return BuildTrack(p, s.actionState(id)), nil
}
