package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-otp-auth/internal/domain"
)

type contextKey string

const sessionKey contextKey = "session"

// Authenticator resolves a session token to its live session record.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*domain.Session, error)
}

// Session reads the session token from cookieName, or from an
// "Authorization: Bearer" header, and stores the resolved session in the
// request context. Requests without a live session get 401.
func Session(auth Authenticator, cookieName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := tokenFromRequest(r, cookieName)
			if token == "" {
				writeJSONError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			sess, err := auth.Authenticate(r.Context(), token)
			if err != nil {
				if !errors.Is(err, domain.ErrUnauthorized) {
					slog.Error("session lookup failed", "err", err)
					writeJSONError(w, http.StatusInternalServerError, "internal server error")
					return
				}
				writeJSONError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			ctx := context.WithValue(r.Context(), sessionKey, sess)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SessionFromContext returns the session stored by Session.
func SessionFromContext(ctx context.Context) (*domain.Session, bool) {
	s, ok := ctx.Value(sessionKey).(*domain.Session)
	return s, ok
}

// WithSession returns a copy of ctx carrying s.
func WithSession(ctx context.Context, s *domain.Session) context.Context {
	return context.WithValue(ctx, sessionKey, s)
}

func tokenFromRequest(r *http.Request, cookieName string) string {
	if c, err := r.Cookie(cookieName); err == nil && c.Value != "" {
		return c.Value
	}
	h := r.Header.Get("Authorization")
	if after, ok := strings.CutPrefix(h, "Bearer "); ok {
		return strings.TrimSpace(after)
	}
	return ""
}
