// SPDX-License-Identifier: Apache-2.0

package notify

import (
	"context"
	"log/slog"

	"github.com/adiadia/coverage-tracker/internal/domain"
)

// LogSender records the intent and reports success. It stands in for a
// messaging backend in local runs.
type LogSender struct {
	logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{logger: logger}
}

func (s *LogSender) SendRecontact(ctx context.Context, patient domain.Patient) error {
	s.logger.Info("pinging patient", "patient_id", patient.ID)
	return nil
}
