// SPDX-License-Identifier: Apache-2.0

// Package render draws the verification board for terminals.
package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/adiadia/coverage-tracker/internal/notify"
	"github.com/adiadia/coverage-tracker/internal/progress"
	"github.com/adiadia/coverage-tracker/internal/tracker"
)

var (
	stepStyleCompleted  = lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50")).Bold(true)
	stepStyleFailed     = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true)
	stepStyleInProgress = lipgloss.NewStyle().Foreground(lipgloss.Color("#5B8DEF")).Bold(true)
	stepStyleIdle       = lipgloss.NewStyle().Foreground(lipgloss.Color("#999999"))
	connectorFilled     = lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50"))
	connectorEmpty      = lipgloss.NewStyle().Foreground(lipgloss.Color("#555555"))
	nameStyle           = lipgloss.NewStyle().Bold(true)
	detailTextStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#A0AEC0"))
	actionStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("#F7B801"))
	cellStyle           = lipgloss.NewStyle().Width(28)
)

func markerFor(phase progress.Phase) string {
	switch phase {
	case progress.PhaseCompleted:
		return "●"
	case progress.PhaseFailed:
		return "✕"
	case progress.PhaseInProgress:
		return "◐"
	default:
		return "○"
	}
}

func styleFor(phase progress.Phase) lipgloss.Style {
	switch phase {
	case progress.PhaseCompleted:
		return stepStyleCompleted
	case progress.PhaseFailed:
		return stepStyleFailed
	case progress.PhaseInProgress:
		return stepStyleInProgress
	default:
		return stepStyleIdle
	}
}

// Track renders one patient: a header, the step bar and the step
// descriptions underneath.
func Track(t tracker.Track) string {
	var b strings.Builder

	header := nameStyle.Render(t.Patient.Name) + " " + detailTextStyle.Render("("+string(t.Patient.ID)+")")
	if action := recontactHint(t.Recontact); action != "" {
		header += "  " + actionStyle.Render(action)
	}
	b.WriteString(header)
	b.WriteString("\n")

	labels := make([]string, 0, len(t.Steps))
	details := make([]string, 0, len(t.Steps))
	for i, step := range t.Steps {
		style := styleFor(step.Phase())
		label := style.Render(markerFor(step.Phase()) + " " + step.Label)
		if i < len(t.Connectors) {
			bar := "───"
			cs := connectorEmpty
			if t.Connectors[i] {
				bar = "━━━"
				cs = connectorFilled
			}
			label += " " + cs.Render(bar)
		}
		labels = append(labels, cellStyle.Render(label))
		details = append(details, cellStyle.Render(detailTextStyle.Render(step.Description)))
	}

	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, labels...))
	b.WriteString("\n")
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, details...))
	b.WriteString("\n")
	return b.String()
}

func recontactHint(v tracker.RecontactView) string {
	switch {
	case !v.Enabled:
		return ""
	case v.State == notify.StateInFlight:
		return "[re-contact sent]"
	case v.Failed:
		return "[re-contact failed, retry]"
	default:
		return "[re-contact available]"
	}
}

// Board writes every track in order, separated by a blank line.
func Board(w io.Writer, tracks []tracker.Track) error {
	for i, t := range tracks {
		if i > 0 {
			if _, err := io.WriteString(w, "\n"); err != nil {
				return err
			}
		}
		if _, err := io.WriteString(w, Track(t)); err != nil {
			return fmt.Errorf("render %s: %w", t.Patient.ID, err)
		}
	}
	return nil
}
