package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-otp-auth/internal/domain"
	"github.com/go-otp-auth/internal/observability"
)

const maxBodyBytes = 1 << 20

// MessageEnvelope is the generic response wrapper.
type MessageEnvelope struct {
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// SessionEnvelope describes the caller's current session.
type SessionEnvelope struct {
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expires_at"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, MessageEnvelope{Error: msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(dst)
}

// statusFor maps a service error to an HTTP status code.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrBadRequest),
		errors.Is(err, domain.ErrConflict),
		errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrMismatch),
		errors.Is(err, domain.ErrExpired),
		errors.Is(err, domain.ErrNotVerified):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func outcomeFor(err error) string {
	switch {
	case err == nil:
		return observability.OutcomeSuccess
	case errors.Is(err, domain.ErrConflict):
		return observability.OutcomeConflict
	case errors.Is(err, domain.ErrNotFound):
		return observability.OutcomeNotFound
	case errors.Is(err, domain.ErrMismatch):
		return observability.OutcomeMismatch
	case errors.Is(err, domain.ErrExpired):
		return observability.OutcomeExpired
	case errors.Is(err, domain.ErrNotVerified):
		return observability.OutcomeNotVerified
	default:
		return observability.OutcomeError
	}
}

// writeServiceError responds with the error's client message when it carries
// one. Unclassified errors are logged and reported without detail.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var de *domain.Error
	if errors.As(err, &de) {
		if statusFor(err) == http.StatusInternalServerError {
			slog.Error("request failed", "path", r.URL.Path, "err", err)
		}
		writeError(w, statusFor(err), de.Message)
		return
	}
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "path", r.URL.Path, "err", err)
		writeError(w, status, "internal server error")
		return
	}
	writeError(w, status, err.Error())
}
