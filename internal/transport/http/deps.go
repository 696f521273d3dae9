package http

import (
	"context"
	"time"

	"github.com/go-otp-auth/internal/application/auth"
	"github.com/go-otp-auth/internal/domain"
	jwtinfra "github.com/go-otp-auth/internal/infrastructure/jwt"
	"github.com/go-otp-auth/internal/transport/http/handler"
	appmiddleware "github.com/go-otp-auth/internal/transport/http/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

// AccountRepository is the minimal interface the router requires from an account store.
type AccountRepository interface {
	Create(ctx context.Context, a *domain.Account) error
	GetByEmail(ctx context.Context, email string) (*domain.Account, error)
}

// OTPRepository is the minimal interface the router requires from an OTP store.
type OTPRepository interface {
	Create(ctx context.Context, o *domain.OTPCode) error
	Latest(ctx context.Context, email string) (*domain.OTPCode, error)
	// Consume marks the owning account verified and deletes the code in one unit.
	Consume(ctx context.Context, o *domain.OTPCode) error
}

// SessionRepository is the minimal interface the router requires from a session store.
type SessionRepository interface {
	Put(ctx context.Context, s *domain.Session) error
	Get(ctx context.Context, sessionID string) (*domain.Session, error)
	Revoke(ctx context.Context, sessionID string, at time.Time) error
}

// Deps holds all infrastructure dependencies for the router.
type Deps struct {
	AccountRepo AccountRepository
	OTPRepo     OTPRepository
	SessionRepo SessionRepository
	Notifier    auth.OTPNotifier
	Pinger      handler.Pinger // nil skips the readiness probe
	JWTProvider *jwtinfra.Provider
	RateLimiter *appmiddleware.RateLimiter // nil disables limiting
	Gatherer    prometheus.Gatherer        // nil serves the default registry
}
