// SPDX-License-Identifier: Apache-2.0

package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/adiadia/coverage-tracker/internal/domain"
)

func TestWebhookSenderRetriesAndSigns(t *testing.T) {
	var attempts int32
	secret := "super-secret"

	client := &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		current := atomic.AddInt32(&attempts, 1)

		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Fatalf("read body: %v", err)
		}

		gotSig := r.Header.Get(webhookHeaderSig)
		wantSig := signWebhookPayload(secret, body)
		if gotSig != wantSig {
			t.Fatalf("expected signature %q got %q", wantSig, gotSig)
		}

		var payload RecontactPayload
		if err := json.Unmarshal(body, &payload); err != nil {
			t.Fatalf("unmarshal payload: %v", err)
		}
		if payload.PatientID != "p2" {
			t.Fatalf("expected patient id p2 got %s", payload.PatientID)
		}
		if payload.RequestedAt.IsZero() {
			t.Fatal("expected requested_at to be set")
		}

		if current < 3 {
			return &http.Response{
				StatusCode: http.StatusInternalServerError,
				Body:       io.NopCloser(strings.NewReader("fail")),
				Header:     make(http.Header),
			}, nil
		}
		return &http.Response{
			StatusCode: http.StatusAccepted,
			Body:       io.NopCloser(strings.NewReader("ok")),
			Header:     make(http.Header),
		}, nil
	})}

	s := NewWebhookSender(WebhookConfig{
		URL:       "http://sms.local/recontact",
		Secret:    secret,
		Client:    client,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		RetryBase: time.Millisecond,
	})

	err := s.SendRecontact(context.Background(), domain.Patient{ID: "p2", Name: "Marcus Thorne"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := atomic.LoadInt32(&attempts); got != 3 {
		t.Fatalf("expected 3 webhook attempts got %d", got)
	}
}

func TestWebhookSenderStopsAfterRetryLimit(t *testing.T) {
	var attempts int32

	client := &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		atomic.AddInt32(&attempts, 1)
		return &http.Response{
			StatusCode: http.StatusBadGateway,
			Body:       io.NopCloser(strings.NewReader("fail")),
			Header:     make(http.Header),
		}, nil
	})}

	s := NewWebhookSender(WebhookConfig{
		URL:       "http://sms.local/recontact",
		Client:    client,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		RetryBase: time.Millisecond,
	})

	err := s.SendRecontact(context.Background(), domain.Patient{ID: "p2"})
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if got := atomic.LoadInt32(&attempts); got != webhookRetryAttempts {
		t.Fatalf("expected %d attempts got %d", webhookRetryAttempts, got)
	}
}

func TestWebhookSenderRequiresURL(t *testing.T) {
	s := NewWebhookSender(WebhookConfig{})

	if err := s.SendRecontact(context.Background(), domain.Patient{ID: "p2"}); !errors.Is(err, ErrWebhookNotConfigured) {
		t.Fatalf("expected ErrWebhookNotConfigured got %v", err)
	}
}

func TestSignWebhookPayloadWithoutSecret(t *testing.T) {
	if got := signWebhookPayload("  ", []byte(`{}`)); got != "" {
		t.Fatalf("expected no signature without secret, got %q", got)
	}
	if got := signWebhookPayload("k", []byte(`{}`)); len(got) != 64 {
		t.Fatalf("expected hex sha256 signature, got %q", got)
	}
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}
