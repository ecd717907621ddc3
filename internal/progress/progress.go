// SPDX-License-Identifier: Apache-2.0

// Package progress derives the per-stage rendering state of a patient's
// verification pipeline and the connectors drawn between stages.
package progress

import "github.com/adiadia/coverage-tracker/internal/domain"

type Stage string

const (
	StageContact     Stage = "contact"
	StageEligibility Stage = "eligibility"
	StageCoverage    Stage = "coverage"
)

const StageCount = 3

// Phase is the resolved rendering state of a step.
type Phase string

const (
	PhaseCompleted  Phase = "completed"
	PhaseFailed     Phase = "failed"
	PhaseInProgress Phase = "in_progress"
	PhaseIdle       Phase = "idle"
)

type StepState struct {
	Stage       Stage  `json:"stage"`
	Label       string `json:"label"`
	Description string `json:"description"`
	Completed   bool   `json:"completed"`
	InProgress  bool   `json:"in_progress"`
	Failed      bool   `json:"failed"`
}

// Phase resolves the flags with precedence completed > failed > in_progress.
func (s StepState) Phase() Phase {
	switch {
	case s.Completed:
		return PhaseCompleted
	case s.Failed:
		return PhaseFailed
	case s.InProgress:
		return PhaseInProgress
	default:
		return PhaseIdle
	}
}

// Derive maps a record to its three steps in pipeline order. Unknown enum
// values fall back to the not-started state of their stage.
func Derive(p domain.Patient) [StageCount]StepState {
	return [StageCount]StepState{
		contactStep(p.TextResponseStatus.Normalize()),
		eligibilityStep(p.EligibilityStatus.Normalize()),
		coverageStep(p.CoverageStatus.Normalize()),
	}
}

func contactStep(s domain.TextResponseStatus) StepState {
	step := StepState{Stage: StageContact, Label: "Contacted"}
	switch s {
	case domain.TextResponded:
		step.Completed = true
		step.Description = "Patient has responded"
	case domain.TextPending:
		step.Description = "Awaiting patient response"
	}
	return step
}

func eligibilityStep(s domain.EligibilityStatus) StepState {
	step := StepState{Stage: StageEligibility, Label: "Eligibility"}
	switch s {
	case domain.EligibilityCompleted:
		step.Completed = true
		step.Description = "Check complete"
	case domain.EligibilityInProgress:
		step.InProgress = true
		step.Description = "Check in progress"
	case domain.EligibilityNotStarted:
		step.Description = "Not started"
	}
	return step
}

func coverageStep(s domain.CoverageStatus) StepState {
	step := StepState{Stage: StageCoverage, Label: "Coverage"}
	switch s {
	case domain.CoverageCovered:
		step.Completed = true
		step.Description = "Visit is covered"
	case domain.CoverageNotCovered:
		step.Failed = true
		step.Description = "Visit not covered"
	case domain.CoveragePendingDecision:
		step.InProgress = true
		step.Description = "Decision pending"
	case domain.CoverageNotApplicable:
		step.Description = "Awaiting eligibility"
	}
	return step
}

// Connectors returns one entry per gap between consecutive steps. Entry i is
// filled once step i is completed, regardless of later outcomes.
func Connectors(steps []StepState) []bool {
	if len(steps) < 2 {
		return []bool{}
	}

	out := make([]bool, len(steps)-1)
	for i := range out {
		out[i] = steps[i].Completed
	}
	return out
}
