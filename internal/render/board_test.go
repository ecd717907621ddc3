// SPDX-License-Identifier: Apache-2.0

package render

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/adiadia/coverage-tracker/internal/domain"
	"github.com/adiadia/coverage-tracker/internal/notify"
	"github.com/adiadia/coverage-tracker/internal/progress"
	"github.com/adiadia/coverage-tracker/internal/tracker"
)

func track(id domain.PatientID, text domain.TextResponseStatus, elig domain.EligibilityStatus, cov domain.CoverageStatus, action notify.ActionState) tracker.Track {
	return tracker.BuildTrack(domain.Patient{
		ID:                 id,
		Name:               "Patient " + string(id),
		TextResponseStatus: text,
		EligibilityStatus:  elig,
		CoverageStatus:     cov,
	}, action)
}

func TestMarkerForEveryPhase(t *testing.T) {
	seen := map[string]bool{}
	for _, phase := range []progress.Phase{progress.PhaseCompleted, progress.PhaseFailed, progress.PhaseInProgress, progress.PhaseIdle} {
		m := markerFor(phase)
		if m == "" {
			t.Fatalf("expected marker for %s", phase)
		}
		if seen[m] {
			t.Fatalf("marker %q reused for %s", m, phase)
		}
		seen[m] = true
	}
}

func TestTrackShowsLabelsAndDescriptions(t *testing.T) {
	out := Track(track("p4", domain.TextResponded, domain.EligibilityCompleted, domain.CoverageNotCovered, notify.ActionState{}))

	for _, want := range []string{"Patient p4", "(p4)", "Contacted", "Eligibility", "Coverage", "Visit not covered", "✕"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected output to contain %q:\n%s", want, out)
		}
	}
	if strings.Count(out, "━━━") != 2 {
		t.Fatalf("expected two filled connectors:\n%s", out)
	}
	if strings.Contains(out, "re-contact") {
		t.Fatalf("expected no re-contact hint for responded patient:\n%s", out)
	}
}

func TestTrackRecontactHints(t *testing.T) {
	cases := []struct {
		action notify.ActionState
		want   string
	}{
		{action: notify.ActionState{State: notify.StateIdle}, want: "[re-contact available]"},
		{action: notify.ActionState{State: notify.StateInFlight}, want: "[re-contact sent]"},
		{action: notify.ActionState{State: notify.StateIdle, Failed: true}, want: "[re-contact failed, retry]"},
	}

	for _, tc := range cases {
		out := Track(track("p2", domain.TextPending, domain.EligibilityNotStarted, domain.CoverageNotApplicable, tc.action))
		if !strings.Contains(out, tc.want) {
			t.Fatalf("expected %q in:\n%s", tc.want, out)
		}
		if strings.Contains(out, "━━━") {
			t.Fatalf("expected unfilled connectors:\n%s", out)
		}
	}
}

func TestBoardKeepsOrder(t *testing.T) {
	var buf bytes.Buffer
	tracks := []tracker.Track{
		track("p1", domain.TextResponded, domain.EligibilityCompleted, domain.CoverageCovered, notify.ActionState{}),
		track("p2", domain.TextPending, domain.EligibilityNotStarted, domain.CoverageNotApplicable, notify.ActionState{}),
	}

	if err := Board(&buf, tracks); err != nil {
		t.Fatalf("board: %v", err)
	}

	out := buf.String()
	first := strings.Index(out, "(p1)")
	second := strings.Index(out, "(p2)")
	if first < 0 || second < 0 || first > second {
		t.Fatalf("expected p1 before p2:\n%s", out)
	}
}

type failingWriter struct{}

func (failingWriter) Write(p []byte) (int, error) {
	return 0, errors.New("closed pipe")
}

func TestBoardPropagatesWriteErrors(t *testing.T) {
	tracks := []tracker.Track{
		track("p1", domain.TextResponded, domain.EligibilityCompleted, domain.CoverageCovered, notify.ActionState{}),
	}
	if err := Board(failingWriter{}, tracks); err == nil {
		t.Fatal("expected write error")
	}
}
