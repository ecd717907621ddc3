// SPDX-License-Identifier: Apache-2.0

package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/adiadia/coverage-tracker/internal/domain"
	"github.com/adiadia/coverage-tracker/internal/metrics"
	"github.com/google/uuid"
)

const (
	webhookRetryAttempts = 3
	webhookRetryBase     = 300 * time.Millisecond
	webhookHeaderSig     = "X-Signature"
)

var ErrWebhookNotConfigured = errors.New("recontact webhook url not configured")

// RecontactPayload is the JSON body posted to the messaging backend.
type RecontactPayload struct {
	RequestID   uuid.UUID        `json:"request_id"`
	PatientID   domain.PatientID `json:"patient_id"`
	RequestedAt time.Time        `json:"requested_at"`
}

type WebhookConfig struct {
	URL       string
	Secret    string
	Client    *http.Client
	Logger    *slog.Logger
	Attempts  int
	RetryBase time.Duration
}

type WebhookSender struct {
	url        string
	secret     string
	httpClient *http.Client
	logger     *slog.Logger
	attempts   int
	retryBase  time.Duration
}

func NewWebhookSender(cfg WebhookConfig) *WebhookSender {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}

	attempts := cfg.Attempts
	if attempts <= 0 {
		attempts = webhookRetryAttempts
	}

	base := cfg.RetryBase
	if base <= 0 {
		base = webhookRetryBase
	}

	return &WebhookSender{
		url:        strings.TrimSpace(cfg.URL),
		secret:     cfg.Secret,
		httpClient: client,
		logger:     logger,
		attempts:   attempts,
		retryBase:  base,
	}
}

func (s *WebhookSender) SendRecontact(ctx context.Context, patient domain.Patient) error {
	return s.Deliver(ctx, RecontactPayload{
		RequestID:   uuid.New(),
		PatientID:   patient.ID,
		RequestedAt: time.Now().UTC(),
	})
}

// Deliver posts the payload, retrying non-2xx responses and transport errors
// with exponential backoff.
func (s *WebhookSender) Deliver(ctx context.Context, payload RecontactPayload) error {
	if s.url == "" {
		return ErrWebhookNotConfigured
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal recontact payload: %w", err)
	}

	signature := signWebhookPayload(s.secret, body)
	started := time.Now()

	var lastErr error
	for attempt := 1; attempt <= s.attempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("build recontact request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		if signature != "" {
			req.Header.Set(webhookHeaderSig, signature)
		}

		resp, err := s.httpClient.Do(req)
		if err != nil {
			lastErr = err
			s.logger.Warn("recontact webhook failure",
				"request_id", payload.RequestID,
				"patient_id", payload.PatientID,
				"attempt", attempt,
				"error", err,
			)
		} else {
			_, _ = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()

			if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
				s.logger.Info("recontact webhook delivered",
					"request_id", payload.RequestID,
					"patient_id", payload.PatientID,
					"attempt", attempt,
					"response_status", resp.StatusCode,
				)
				metrics.ObserveRecontactDeliveryDuration(time.Since(started))
				return nil
			}

			lastErr = fmt.Errorf("non-2xx response: %d", resp.StatusCode)
			s.logger.Warn("recontact webhook failure",
				"request_id", payload.RequestID,
				"patient_id", payload.PatientID,
				"attempt", attempt,
				"response_status", resp.StatusCode,
			)
		}

		if attempt < s.attempts {
			wait := s.retryBase * time.Duration(1<<(attempt-1))
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
	}

	s.logger.Error("recontact webhook retries exhausted",
		"request_id", payload.RequestID,
		"patient_id", payload.PatientID,
		"error", lastErr,
	)
	return fmt.Errorf("deliver recontact webhook: %w", lastErr)
}

func signWebhookPayload(secret string, payload []byte) string {
	if strings.TrimSpace(secret) == "" {
		return ""
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}
