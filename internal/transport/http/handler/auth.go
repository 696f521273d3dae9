package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-otp-auth/internal/application/auth"
	"github.com/go-otp-auth/internal/application/session"
	"github.com/go-otp-auth/internal/domain"
	"github.com/go-otp-auth/internal/observability"
	"github.com/go-otp-auth/internal/pkg/validate"
	"github.com/go-otp-auth/internal/transport/http/middleware"
)

// CookieOptions controls the session cookie.
type CookieOptions struct {
	Name   string
	Secure bool
}

// AuthHandler handles the signup, OTP verification and sign-in endpoints.
type AuthHandler struct {
	svc      auth.Service
	sessions session.Service
	cookie   CookieOptions
}

func NewAuthHandler(svc auth.Service, sessions session.Service, cookie CookieOptions) *AuthHandler {
	return &AuthHandler{svc: svc, sessions: sessions, cookie: cookie}
}

func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req domain.SignupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err, "Email and password required"))
		return
	}
	err := h.svc.Signup(r.Context(), req)
	observability.RecordAuthAttempt("signup", outcomeFor(err))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "Sign up successful! OTP sent to your email"})
}

func (h *AuthHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req domain.VerifyOTPRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err, "Email and OTP required"))
		return
	}
	err := h.svc.VerifyOTP(r.Context(), req)
	observability.RecordAuthAttempt("verify_otp", outcomeFor(err))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "OTP verified successfully"})
}

func (h *AuthHandler) Signin(w http.ResponseWriter, r *http.Request) {
	var req domain.SigninRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err, "Email and password required"))
		return
	}
	issued, err := h.svc.Signin(r.Context(), req)
	observability.RecordAuthAttempt("signin", outcomeFor(err))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	http.SetCookie(w, h.sessionCookie(issued.Token, issued.Session.ExpiresAt))
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "Signed in successfully"})
}

// Signout revokes the caller's session and clears the cookie. Requires the
// session middleware.
func (h *AuthHandler) Signout(w http.ResponseWriter, r *http.Request) {
	sess, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := h.sessions.Revoke(r.Context(), sess.SessionID); err != nil {
		writeServiceError(w, r, err)
		return
	}
	http.SetCookie(w, h.sessionCookie("", time.Unix(0, 0)))
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "Signed out successfully"})
}

// Session reports the caller's current session. Requires the session middleware.
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	sess, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	writeJSON(w, http.StatusOK, SessionEnvelope{Email: sess.Email, ExpiresAt: sess.ExpiresAt})
}

func (h *AuthHandler) sessionCookie(value string, expires time.Time) *http.Cookie {
	c := &http.Cookie{
		Name:     h.cookie.Name,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	}
	if value == "" {
		c.MaxAge = -1
	}
	return c
}

func validationMessage(err error, requiredMsg string) string {
	var ve *validate.Error
	if !errors.As(err, &ve) {
		return err.Error()
	}
	switch {
	case ve.Failed("required"):
		return requiredMsg
	case ve.FailedField("email", "email"):
		return "Invalid email address"
	case ve.FailedField("password", "max"):
		return "Password must be at most 72 bytes"
	default:
		return ve.Error()
	}
}
