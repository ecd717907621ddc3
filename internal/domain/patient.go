// SPDX-License-Identifier: Apache-2.0

package domain

import (
	"fmt"
	"strings"
	"time"
)

type PatientID string

type Patient struct {
	ID                 PatientID          `json:"id"`
	Name               string             `json:"name"`
	TextResponseStatus TextResponseStatus `json:"text_response_status"`
	EligibilityStatus  EligibilityStatus  `json:"eligibility_status"`
	CoverageStatus     CoverageStatus     `json:"coverage_status"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
}

// StatusUpdate carries the fields an external event changed. Nil fields are
// left untouched.
type StatusUpdate struct {
	TextResponseStatus *TextResponseStatus
	EligibilityStatus  *EligibilityStatus
	CoverageStatus     *CoverageStatus
}

func (u StatusUpdate) Empty() bool {
	return u.TextResponseStatus == nil && u.EligibilityStatus == nil && u.CoverageStatus == nil
}

// NewPatient returns a record in the pipeline entry state.
func NewPatient(id PatientID, name string, now time.Time) (Patient, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Patient{}, ErrInvalidPatientName
	}

	return Patient{
		ID:                 id,
		Name:               name,
		TextResponseStatus: TextPending,
		EligibilityStatus:  EligibilityNotStarted,
		CoverageStatus:     CoverageNotApplicable,
		CreatedAt:          now,
		UpdatedAt:          now,
	}, nil
}

// Apply returns a copy of p with the update applied. Statuses only move
// forward through their enums.
func (p Patient) Apply(u StatusUpdate, now time.Time) (Patient, error) {
	next := p

	if u.TextResponseStatus != nil {
		if u.TextResponseStatus.rank() < p.TextResponseStatus.rank() {
			return p, fmt.Errorf("%w: text_response_status %s -> %s", ErrStatusRegression, p.TextResponseStatus, *u.TextResponseStatus)
		}
		next.TextResponseStatus = *u.TextResponseStatus
	}

	if u.EligibilityStatus != nil {
		if u.EligibilityStatus.rank() < p.EligibilityStatus.rank() {
			return p, fmt.Errorf("%w: eligibility_status %s -> %s", ErrStatusRegression, p.EligibilityStatus, *u.EligibilityStatus)
		}
		next.EligibilityStatus = *u.EligibilityStatus
	}

	if u.CoverageStatus != nil {
		if u.CoverageStatus.rank() < p.CoverageStatus.rank() {
			return p, fmt.Errorf("%w: coverage_status %s -> %s", ErrStatusRegression, p.CoverageStatus, *u.CoverageStatus)
		}
		next.CoverageStatus = *u.CoverageStatus
	}

	next.UpdatedAt = now
	return next, nil
}

// CoverageConsistent reports whether the coverage stage is only past n/a once
// eligibility has completed. Records violating this are still rendered as
// given; callers may log them as an upstream data-quality signal.
func (p Patient) CoverageConsistent() bool {
	if p.CoverageStatus.Normalize() == CoverageNotApplicable {
		return true
	}
	return p.EligibilityStatus.Normalize() == EligibilityCompleted
}

// AwaitingContact reports whether the contact stage is still open, which is
// the only time a re-contact may be requested.
func (p Patient) AwaitingContact() bool {
	return p.TextResponseStatus.Normalize() != TextResponded
}
