// SPDX-License-Identifier: Apache-2.0

// Package notify implements the re-contact command: a per-patient debounced
// request that asks the patient store to reach out to a patient again.
package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/adiadia/coverage-tracker/internal/domain"
	"github.com/adiadia/coverage-tracker/internal/metrics"
)

const (
	DefaultCooldown    = 2000 * time.Millisecond
	DefaultSendTimeout = 30 * time.Second
)

var ErrRecontactorClosed = errors.New("recontactor closed")

type State string

const (
	StateIdle     State = "idle"
	StateInFlight State = "in_flight"
)

type Outcome string

const (
	OutcomeIssued     Outcome = "issued"
	OutcomeSuppressed Outcome = "suppressed"
	OutcomeIneligible Outcome = "ineligible"
	OutcomeFailed     Outcome = "failed"
)

// ActionState is the per-patient view of the command. Failed stays set until
// the next request is issued.
type ActionState struct {
	State     State  `json:"state"`
	Failed    bool   `json:"failed"`
	LastError string `json:"last_error,omitempty"`
}

type PatientReader interface {
	GetPatient(ctx context.Context, id domain.PatientID) (domain.Patient, error)
}

// Sender hands a re-contact intent to whatever reaches the patient.
type Sender interface {
	SendRecontact(ctx context.Context, patient domain.Patient) error
}

type Deps struct {
	Patients    PatientReader
	Sender      Sender
	Cooldown    time.Duration
	SendTimeout time.Duration
	Logger      *slog.Logger
}

type scheduleFunc func(d time.Duration, f func()) (stop func() bool)

// entry tracks one patient. inFlight is the visible debounce window and
// sending covers the backend call itself, which may outlive the window.
type entry struct {
	inFlight bool
	sending  bool
	gen      uint64
	stop     func() bool
	failed   bool
	lastErr  string
}

type Recontactor struct {
	patients    PatientReader
	sender      Sender
	cooldown    time.Duration
	sendTimeout time.Duration
	logger      *slog.Logger
	schedule    scheduleFunc

	mu      sync.Mutex
	entries map[domain.PatientID]*entry
	closed  bool
}

func New(deps Deps) *Recontactor {
	if deps.Patients == nil {
		panic("notify.New requires a patient reader")
	}
	if deps.Sender == nil {
		panic("notify.New requires a sender")
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	cooldown := deps.Cooldown
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}

	sendTimeout := deps.SendTimeout
	if sendTimeout <= 0 {
		sendTimeout = DefaultSendTimeout
	}

	return &Recontactor{
		patients:    deps.Patients,
		sender:      deps.Sender,
		cooldown:    cooldown,
		sendTimeout: sendTimeout,
		logger:      logger,
		schedule:    afterFunc,
		entries:     make(map[domain.PatientID]*entry, 16),
	}
}

func afterFunc(d time.Duration, f func()) func() bool {
	t := time.AfterFunc(d, f)
	return t.Stop
}

// Request issues one re-contact for the patient unless one is already in
// flight or still being sent. The returned error is reserved for lookup
// failures and a closed recontactor; send failures surface as OutcomeFailed.
//
// The send is detached from ctx cancellation and bounded by the send
// timeout, so a caller that goes away does not abort a started send.
func (r *Recontactor) Request(ctx context.Context, id domain.PatientID) (Outcome, error) {
	if r.isClosed() {
		return "", ErrRecontactorClosed
	}

	patient, err := r.patients.GetPatient(ctx, id)
	if err != nil {
		return "", err
	}

	if !patient.AwaitingContact() {
		r.logger.Info("recontact skipped (already responded)", "patient_id", id)
		metrics.IncRecontactOutcome(string(OutcomeIneligible))
		return OutcomeIneligible, nil
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return "", ErrRecontactorClosed
	}

	e, ok := r.entries[id]
	if !ok {
		e = &entry{}
		r.entries[id] = e
	}

	if e.inFlight || e.sending {
		sending := e.sending
		r.mu.Unlock()
		r.logger.Debug("recontact suppressed (in flight)", "patient_id", id, "sending", sending)
		metrics.IncRecontactOutcome(string(OutcomeSuppressed))
		return OutcomeSuppressed, nil
	}

	e.inFlight = true
	e.sending = true
	e.failed = false
	e.lastErr = ""
	e.gen++
	gen := e.gen
	e.stop = r.schedule(r.cooldown, func() { r.release(id, gen) })
	r.mu.Unlock()

	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.sendTimeout)
	err = r.sender.SendRecontact(sendCtx, patient)
	cancel()

	if err != nil {
		r.fail(id, gen, err)
		r.logger.Warn("recontact send failed", "patient_id", id, "error", err)
		metrics.IncRecontactOutcome(string(OutcomeFailed))
		return OutcomeFailed, nil
	}
	r.sent(id, gen)

	r.logger.Info("recontact issued", "patient_id", id, "cooldown_ms", r.cooldown.Milliseconds())
	metrics.IncRecontactOutcome(string(OutcomeIssued))
	return OutcomeIssued, nil
}

func (r *Recontactor) release(id domain.PatientID, gen uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok || e.gen != gen || !e.inFlight {
		return
	}
	e.inFlight = false
	e.stop = nil
}

func (r *Recontactor) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

func (r *Recontactor) sent(id domain.PatientID, gen uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.entries[id]; ok && e.gen == gen {
		e.sending = false
	}
}

func (r *Recontactor) fail(id domain.PatientID, gen uint64, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok || e.gen != gen {
		return
	}
	if e.stop != nil {
		e.stop()
		e.stop = nil
	}
	e.inFlight = false
	e.sending = false
	e.failed = true
	e.lastErr = err.Error()
}

// State reports the command state for one patient; unknown ids are idle.
func (r *Recontactor) State(id domain.PatientID) ActionState {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		return ActionState{State: StateIdle}
	}

	out := ActionState{
		State:     StateIdle,
		Failed:    e.failed,
		LastError: e.lastErr,
	}
	if e.inFlight {
		out.State = StateInFlight
	}
	return out
}

// Close cancels every pending cooldown so no callback fires after teardown.
func (r *Recontactor) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	r.closed = true

	for id, e := range r.entries {
		if e.stop != nil {
			e.stop()
		}
		delete(r.entries, id)
	}
}
