// SPDX-License-Identifier: Apache-2.0

// Package roster loads the ordered patient list used to seed the in-memory
// store and the offline board.
package roster

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/adiadia/coverage-tracker/internal/domain"
	"gopkg.in/yaml.v3"
)

//go:embed sample.yaml
var sampleYAML []byte

type entry struct {
	ID                 string `yaml:"id"`
	Name               string `yaml:"name"`
	TextResponseStatus string `yaml:"text_response_status,omitempty"`
	EligibilityStatus  string `yaml:"eligibility_status,omitempty"`
	CoverageStatus     string `yaml:"coverage_status,omitempty"`
}

type file struct {
	Patients []entry `yaml:"patients"`
}

// Sample returns the built-in six-patient roster.
func Sample() ([]domain.Patient, error) {
	return Parse(sampleYAML, time.Now().UTC())
}

// Load reads a roster file; an empty path yields the sample roster.
func Load(path string) ([]domain.Patient, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return Sample()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("roster: read %s: %w", path, err)
	}
	return Parse(data, time.Now().UTC())
}

// Parse decodes a roster document. Omitted statuses default to the pipeline
// entry state; unknown statuses are rejected.
func Parse(data []byte, now time.Time) ([]domain.Patient, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("roster: decode: %w", err)
	}

	seen := make(map[domain.PatientID]struct{}, len(f.Patients))
	out := make([]domain.Patient, 0, len(f.Patients))

	for i, e := range f.Patients {
		id := domain.PatientID(strings.TrimSpace(e.ID))
		if id == "" {
			return nil, fmt.Errorf("roster: entry %d: missing id", i)
		}
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("roster: entry %d: %w: %s", i, domain.ErrDuplicatePatientID, id)
		}
		seen[id] = struct{}{}

		p, err := domain.NewPatient(id, e.Name, now)
		if err != nil {
			return nil, fmt.Errorf("roster: entry %d (%s): %w", i, id, err)
		}

		if err := applyStatuses(&p, e); err != nil {
			return nil, fmt.Errorf("roster: entry %d (%s): %w", i, id, err)
		}

		out = append(out, p)
	}

	return out, nil
}

func applyStatuses(p *domain.Patient, e entry) error {
	var errs []error

	if strings.TrimSpace(e.TextResponseStatus) != "" {
		s, err := domain.ParseTextResponseStatus(e.TextResponseStatus)
		errs = append(errs, err)
		p.TextResponseStatus = s
	}
	if strings.TrimSpace(e.EligibilityStatus) != "" {
		s, err := domain.ParseEligibilityStatus(e.EligibilityStatus)
		errs = append(errs, err)
		p.EligibilityStatus = s
	}
	if strings.TrimSpace(e.CoverageStatus) != "" {
		s, err := domain.ParseCoverageStatus(e.CoverageStatus)
		errs = append(errs, err)
		p.CoverageStatus = s
	}

	return errors.Join(errs...)
}
