// SPDX-License-Identifier: Apache-2.0

package tracker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/adiadia/coverage-tracker/internal/domain"
	"github.com/adiadia/coverage-tracker/internal/notify"
	"github.com/adiadia/coverage-tracker/internal/progress"
	"github.com/adiadia/coverage-tracker/internal/repository"
	"github.com/adiadia/coverage-tracker/internal/roster"
)

type countingSender struct {
	mu    sync.Mutex
	calls map[domain.PatientID]int
	err   error
}

func (c *countingSender) SendRecontact(ctx context.Context, patient domain.Patient) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.calls == nil {
		c.calls = make(map[domain.PatientID]int, 2)
	}
	c.calls[patient.ID]++
	return c.err
}

func (c *countingSender) count(id domain.PatientID) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[id]
}

func newTestService(t *testing.T, sender notify.Sender) *Service {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := repository.NewMemoryPatientStore(logger)

	patients, err := roster.Sample()
	if err != nil {
		t.Fatalf("load sample roster: %v", err)
	}
	if _, err := repository.Seed(context.Background(), store, patients); err != nil {
		t.Fatalf("seed: %v", err)
	}

	rec := notify.New(notify.Deps{
		Patients: store,
		Sender:   sender,
		Cooldown: time.Hour,
		Logger:   logger,
	})
	t.Cleanup(rec.Close)

	return NewService(store, rec, logger)
}

func TestBuildTrackScenarioB(t *testing.T) {
	p := domain.Patient{
		ID:                 "p2",
		TextResponseStatus: domain.TextPending,
		EligibilityStatus:  domain.EligibilityNotStarted,
		CoverageStatus:     domain.CoverageNotApplicable,
	}

	track := BuildTrack(p, notify.ActionState{})

	for i, s := range track.Steps {
		if s.Phase() != progress.PhaseIdle {
			t.Fatalf("expected step %d idle got %s", i, s.Phase())
		}
	}
	if len(track.Connectors) != 2 || track.Connectors[0] || track.Connectors[1] {
		t.Fatalf("expected two unfilled connectors got %v", track.Connectors)
	}
	if !track.Recontact.Enabled {
		t.Fatal("expected re-contact to be enabled for pending patient")
	}
	if track.Recontact.State != notify.StateIdle {
		t.Fatalf("expected idle action state got %s", track.Recontact.State)
	}
}

func TestBuildTrackDisablesRecontactOnceResponded(t *testing.T) {
	p := domain.Patient{
		ID:                 "p1",
		TextResponseStatus: domain.TextResponded,
		EligibilityStatus:  domain.EligibilityCompleted,
		CoverageStatus:     domain.CoverageCovered,
	}

	track := BuildTrack(p, notify.ActionState{State: notify.StateIdle})
	if track.Recontact.Enabled {
		t.Fatal("expected re-contact disabled")
	}
	if !track.Connectors[0] || !track.Connectors[1] {
		t.Fatalf("expected filled connectors got %v", track.Connectors)
	}
}

func TestBoardKeepsRosterOrder(t *testing.T) {
	svc := newTestService(t, &countingSender{})

	board, err := svc.Board(context.Background())
	if err != nil {
		t.Fatalf("board: %v", err)
	}

	want := []domain.PatientID{"p1", "p2", "p3", "p4", "p5", "p6"}
	if len(board) != len(want) {
		t.Fatalf("expected %d tracks got %d", len(want), len(board))
	}
	for i, tr := range board {
		if tr.Patient.ID != want[i] {
			t.Fatalf("expected %s at %d got %s", want[i], i, tr.Patient.ID)
		}
	}

	if board[3].Steps[progress.StageCount-1].Phase() != progress.PhaseFailed {
		t.Fatalf("expected p4 coverage failed got %s", board[3].Steps[2].Phase())
	}
}

func TestRequestRecontactTwiceSendsOnce(t *testing.T) {
	sender := &countingSender{}
	svc := newTestService(t, sender)
	ctx := context.Background()

	first, track, err := svc.RequestRecontact(ctx, "p2")
	if err != nil {
		t.Fatalf("first request: %v", err)
	}
	if first != notify.OutcomeIssued {
		t.Fatalf("expected issued got %s", first)
	}
	if track.Recontact.State != notify.StateInFlight {
		t.Fatalf("expected in flight got %s", track.Recontact.State)
	}

	second, _, err := svc.RequestRecontact(ctx, "p2")
	if err != nil {
		t.Fatalf("second request: %v", err)
	}
	if second != notify.OutcomeSuppressed {
		t.Fatalf("expected suppressed got %s", second)
	}

	if got := sender.count("p2"); got != 1 {
		t.Fatalf("expected exactly one send got %d", got)
	}

	stored, err := svc.Track(ctx, "p2")
	if err != nil {
		t.Fatalf("track: %v", err)
	}
	if stored.Patient.TextResponseStatus != domain.TextPending {
		t.Fatal("expected re-contact to leave text response status untouched")
	}
}

func TestRequestRecontactFailureIsRetryable(t *testing.T) {
	sender := &countingSender{err: errors.New("sms gateway down")}
	svc := newTestService(t, sender)

	outcome, track, err := svc.RequestRecontact(context.Background(), "p2")
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if outcome != notify.OutcomeFailed {
		t.Fatalf("expected failed got %s", outcome)
	}
	if track.Recontact.State != notify.StateIdle || !track.Recontact.Failed {
		t.Fatalf("expected idle and failed got %+v", track.Recontact)
	}
	if track.Recontact.LastError != "sms gateway down" {
		t.Fatalf("unexpected last error %q", track.Recontact.LastError)
	}
}

func TestRequestRecontactUnknownPatient(t *testing.T) {
	svc := newTestService(t, &countingSender{})

	if _, _, err := svc.RequestRecontact(context.Background(), "nope"); !errors.Is(err, domain.ErrPatientNotFound) {
		t.Fatalf("expected ErrPatientNotFound got %v", err)
	}
}

func TestUpdateStatusRederivesSteps(t *testing.T) {
	svc := newTestService(t, &countingSender{})
	ctx := context.Background()

	completed := domain.EligibilityCompleted
	track, err := svc.UpdateStatus(ctx, "p3", domain.StatusUpdate{EligibilityStatus: &completed})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if track.Steps[1].Phase() != progress.PhaseCompleted {
		t.Fatalf("expected eligibility completed got %s", track.Steps[1].Phase())
	}
	if track.Steps[2].Phase() != progress.PhaseIdle {
		t.Fatalf("expected coverage still awaiting a decision got %s", track.Steps[2].Phase())
	}
	if !track.Connectors[1] {
		t.Fatal("expected second connector filled")
	}
}

func TestCreatePatientStartsAtEntryState(t *testing.T) {
	svc := newTestService(t, &countingSender{})

	track, err := svc.CreatePatient(context.Background(), "New Patient")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !track.Recontact.Enabled {
		t.Fatal("expected new patient to be awaiting contact")
	}

	if _, err := svc.CreatePatient(context.Background(), "   "); !errors.Is(err, domain.ErrInvalidPatientName) {
		t.Fatalf("expected ErrInvalidPatientName got %v", err)
	}
}

func TestServiceWithoutRecontacter(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := repository.NewMemoryPatientStore(logger)
	svc := NewService(store, nil, logger)

	if _, _, err := svc.RequestRecontact(context.Background(), "p2"); !errors.Is(err, notify.ErrRecontactorClosed) {
		t.Fatalf("expected ErrRecontactorClosed got %v", err)
	}
}
