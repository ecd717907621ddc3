// SPDX-License-Identifier: Apache-2.0

package domain

import (
	"fmt"
	"strings"
)

type TextResponseStatus string
type EligibilityStatus string
type CoverageStatus string

const (
	TextPending   TextResponseStatus = "pending"
	TextResponded TextResponseStatus = "responded"
)

const (
	EligibilityNotStarted EligibilityStatus = "not_started"
	EligibilityInProgress EligibilityStatus = "in_progress"
	EligibilityCompleted  EligibilityStatus = "completed"
)

const (
	CoverageNotApplicable   CoverageStatus = "n/a"
	CoveragePendingDecision CoverageStatus = "pending_decision"
	CoverageCovered         CoverageStatus = "covered"
	CoverageNotCovered      CoverageStatus = "not_covered"
)

// Normalize maps unknown values to TextPending so partially loaded or
// newer-versioned records still render.
func (s TextResponseStatus) Normalize() TextResponseStatus {
	switch s {
	case TextPending, TextResponded:
		return s
	default:
		return TextPending
	}
}

func (s EligibilityStatus) Normalize() EligibilityStatus {
	switch s {
	case EligibilityNotStarted, EligibilityInProgress, EligibilityCompleted:
		return s
	default:
		return EligibilityNotStarted
	}
}

func (s CoverageStatus) Normalize() CoverageStatus {
	switch s {
	case CoverageNotApplicable, CoveragePendingDecision, CoverageCovered, CoverageNotCovered:
		return s
	default:
		return CoverageNotApplicable
	}
}

func (s TextResponseStatus) rank() int {
	if s.Normalize() == TextResponded {
		return 1
	}
	return 0
}

func (s EligibilityStatus) rank() int {
	switch s.Normalize() {
	case EligibilityInProgress:
		return 1
	case EligibilityCompleted:
		return 2
	default:
		return 0
	}
}

// covered and not_covered share a rank: a payer may reverse a decision.
func (s CoverageStatus) rank() int {
	switch s.Normalize() {
	case CoveragePendingDecision:
		return 1
	case CoverageCovered, CoverageNotCovered:
		return 2
	default:
		return 0
	}
}

// ParseTextResponseStatus is the strict counterpart of Normalize, used where
// values are written rather than rendered.
func ParseTextResponseStatus(raw string) (TextResponseStatus, error) {
	s := TextResponseStatus(strings.TrimSpace(raw))
	if s.Normalize() != s {
		return "", fmt.Errorf("%w: text_response_status %q", ErrInvalidStatus, raw)
	}
	return s, nil
}

func ParseEligibilityStatus(raw string) (EligibilityStatus, error) {
	s := EligibilityStatus(strings.TrimSpace(raw))
	if s.Normalize() != s {
		return "", fmt.Errorf("%w: eligibility_status %q", ErrInvalidStatus, raw)
	}
	return s, nil
}

func ParseCoverageStatus(raw string) (CoverageStatus, error) {
	s := CoverageStatus(strings.TrimSpace(raw))
	if s.Normalize() != s {
		return "", fmt.Errorf("%w: coverage_status %q", ErrInvalidStatus, raw)
	}
	return s, nil
}
