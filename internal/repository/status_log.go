// SPDX-License-Identifier: Apache-2.0

package repository

import (
	"log/slog"

	"github.com/adiadia/coverage-tracker/internal/domain"
	"github.com/adiadia/coverage-tracker/internal/metrics"
)

// recordStatusChange logs and counts the fields an update moved. A record
// whose coverage ran ahead of eligibility is kept as written and flagged.
func recordStatusChange(logger *slog.Logger, before, after domain.Patient) {
	if before.TextResponseStatus != after.TextResponseStatus {
		metrics.IncStatusUpdate("contact")
	}
	if before.EligibilityStatus != after.EligibilityStatus {
		metrics.IncStatusUpdate("eligibility")
	}
	if before.CoverageStatus != after.CoverageStatus {
		metrics.IncStatusUpdate("coverage")
	}

	logger.Info("patient status updated",
		"patient_id", after.ID,
		"text_response_status", after.TextResponseStatus,
		"eligibility_status", after.EligibilityStatus,
		"coverage_status", after.CoverageStatus,
	)

	if !after.CoverageConsistent() {
		logger.Warn("coverage status ahead of eligibility",
			"patient_id", after.ID,
			"eligibility_status", after.EligibilityStatus,
			"coverage_status", after.CoverageStatus,
		)
	}
}
