// SPDX-License-Identifier: Apache-2.0

package httptransport

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/adiadia/coverage-tracker/internal/domain"
	"github.com/adiadia/coverage-tracker/internal/metrics"
	"github.com/adiadia/coverage-tracker/internal/notify"
	"github.com/adiadia/coverage-tracker/internal/tracker"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const maxBodyBytes = 64 << 10

type createPatientRequest struct {
	Name string `json:"name"`
}

// updateStatusRequest mirrors the backend's status event. Absent fields are
// left unchanged.
type updateStatusRequest struct {
	TextResponseStatus *string `json:"text_response_status"`
	EligibilityStatus  *string `json:"eligibility_status"`
	CoverageStatus     *string `json:"coverage_status"`
}

type recontactResponse struct {
	Outcome notify.Outcome `json:"outcome"`
	Track   tracker.Track  `json:"track"`
}

type Deps struct {
	Tracker   TrackerService
	Health    HealthChecker
	Logger    *slog.Logger
	Version   string
	Commit    string
	BuildDate string
}

func NewRouter(deps Deps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	metrics.Init()
	version := valueOrDefault(deps.Version, "dev")
	commit := valueOrDefault(deps.Commit, "none")
	buildDate := valueOrDefault(deps.BuildDate, "unknown")

	r := chi.NewRouter()
	r.Use(requestIDMiddleware())
	r.Use(requestLoggingMiddleware(logger))

	// ---------------- HEALTH ----------------

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		logger.Debug("health check hit")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if deps.Health != nil {
			if err := deps.Health.Check(r.Context()); err != nil {
				logger.Warn("readiness check failed", "error", err)
				http.Error(w, "not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	// ---------------- METRICS ----------------

	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	// ---------------- VERSION ----------------

	r.Get("/version", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"version":    version,
			"commit":     commit,
			"build_date": buildDate,
		})
	})

	if deps.Tracker == nil {
		return r
	}
	svc := deps.Tracker

	// ---------------- BOARD ----------------

	r.Get("/patients", func(w http.ResponseWriter, r *http.Request) {
		board, err := svc.Board(r.Context())
		if err != nil {
			logger.Error("load board failed", "error", err)
			http.Error(w, "failed to load patients", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"patients": board,
		})
	})

	r.Post("/patients", func(w http.ResponseWriter, r *http.Request) {
		var body createPatientRequest
		if err := decodeJSONBody(w, r, &body); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		track, err := svc.CreatePatient(r.Context(), body.Name)
		if err != nil {
			writeServiceError(w, logger, "create patient", "", err)
			return
		}
		writeJSON(w, http.StatusCreated, track)
	})

	// ---------------- SINGLE PATIENT ----------------

	r.Get("/patients/{id}", func(w http.ResponseWriter, r *http.Request) {
		id, ok := patientIDParam(w, r)
		if !ok {
			return
		}

		track, err := svc.Track(r.Context(), id)
		if err != nil {
			writeServiceError(w, logger, "get patient", id, err)
			return
		}
		writeJSON(w, http.StatusOK, track)
	})

	r.Patch("/patients/{id}/status", func(w http.ResponseWriter, r *http.Request) {
		id, ok := patientIDParam(w, r)
		if !ok {
			return
		}

		var body updateStatusRequest
		if err := decodeJSONBody(w, r, &body); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		update, err := body.toUpdate()
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if update.Empty() {
			http.Error(w, "no status fields provided", http.StatusBadRequest)
			return
		}

		track, err := svc.UpdateStatus(r.Context(), id, update)
		if err != nil {
			writeServiceError(w, logger, "update status", id, err)
			return
		}
		writeJSON(w, http.StatusOK, track)
	})

	// ---------------- RECONTACT ----------------

	r.Post("/patients/{id}/recontact", func(w http.ResponseWriter, r *http.Request) {
		id, ok := patientIDParam(w, r)
		if !ok {
			return
		}

		outcome, track, err := svc.RequestRecontact(r.Context(), id)
		if err != nil {
			writeServiceError(w, logger, "request recontact", id, err)
			return
		}

		writeJSON(w, recontactStatusCode(outcome), recontactResponse{
			Outcome: outcome,
			Track:   track,
		})
	})

	return r
}

func recontactStatusCode(outcome notify.Outcome) int {
	switch outcome {
	case notify.OutcomeIssued:
		return http.StatusAccepted
	case notify.OutcomeIneligible:
		return http.StatusConflict
	case notify.OutcomeFailed:
		return http.StatusBadGateway
	default:
		return http.StatusOK
	}
}

func (req updateStatusRequest) toUpdate() (domain.StatusUpdate, error) {
	var (
		update domain.StatusUpdate
		errs   []error
	)

	if req.TextResponseStatus != nil {
		v, err := domain.ParseTextResponseStatus(*req.TextResponseStatus)
		if err != nil {
			errs = append(errs, err)
		} else {
			update.TextResponseStatus = &v
		}
	}
	if req.EligibilityStatus != nil {
		v, err := domain.ParseEligibilityStatus(*req.EligibilityStatus)
		if err != nil {
			errs = append(errs, err)
		} else {
			update.EligibilityStatus = &v
		}
	}
	if req.CoverageStatus != nil {
		v, err := domain.ParseCoverageStatus(*req.CoverageStatus)
		if err != nil {
			errs = append(errs, err)
		} else {
			update.CoverageStatus = &v
		}
	}

	return update, errors.Join(errs...)
}

func patientIDParam(w http.ResponseWriter, r *http.Request) (domain.PatientID, bool) {
	raw := strings.TrimSpace(chi.URLParam(r, "id"))
	if raw == "" {
		http.Error(w, "invalid patient ID", http.StatusBadRequest)
		return "", false
	}
	return domain.PatientID(raw), true
}

func writeServiceError(w http.ResponseWriter, logger *slog.Logger, op string, id domain.PatientID, err error) {
	switch {
	case errors.Is(err, domain.ErrPatientNotFound):
		http.Error(w, "patient not found", http.StatusNotFound)
	case errors.Is(err, domain.ErrInvalidPatientName):
		http.Error(w, "invalid patient name", http.StatusBadRequest)
	case errors.Is(err, domain.ErrInvalidStatus):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, domain.ErrStatusRegression):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, domain.ErrDuplicatePatientID):
		http.Error(w, "patient already exists", http.StatusConflict)
	case errors.Is(err, notify.ErrRecontactorClosed):
		http.Error(w, "recontact unavailable", http.StatusServiceUnavailable)
	default:
		logger.Error(op+" failed", "patient_id", id, "error", err)
		http.Error(w, "failed to "+op, http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst any) error {
	if r == nil || r.Body == nil || r.Body == http.NoBody {
		return io.EOF
	}

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}

	// Ensure there is only one JSON object.
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("request body must contain exactly one JSON object")
	}
	return nil
}

func valueOrDefault(value, defaultValue string) string {
	if strings.TrimSpace(value) == "" {
		return defaultValue
	}
	return value
}
