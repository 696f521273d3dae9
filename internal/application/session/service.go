package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-otp-auth/internal/domain"
	jwtinfra "github.com/go-otp-auth/internal/infrastructure/jwt"
	"github.com/go-otp-auth/internal/pkg/id"
)

type sessionStore interface {
	Put(ctx context.Context, s *domain.Session) error
	Get(ctx context.Context, sessionID string) (*domain.Session, error)
	Revoke(ctx context.Context, sessionID string, at time.Time) error
}

type tokenProvider interface {
	Sign(email, sessionID string, expiresAt time.Time) (string, error)
	Verify(token string) (*jwtinfra.Claims, error)
}

// Issued is a freshly established session and its signed token.
type Issued struct {
	Token   string
	Session *domain.Session
}

type Service interface {
	Issue(ctx context.Context, email string) (*Issued, error)
	Authenticate(ctx context.Context, token string) (*domain.Session, error)
	Revoke(ctx context.Context, sessionID string) error
}

type ServiceDeps struct {
	SessionRepo sessionStore
	Tokens      tokenProvider
	TTL         time.Duration
	Now         func() time.Time
}

type service struct {
	repo   sessionStore
	tokens tokenProvider
	ttl    time.Duration
	now    func() time.Time
}

func NewService(deps ServiceDeps) Service {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &service{repo: deps.SessionRepo, tokens: deps.Tokens, ttl: deps.TTL, now: now}
}

func (s *service) Issue(ctx context.Context, email string) (*Issued, error) {
	now := s.now().UTC()
	sess := &domain.Session{
		SessionID: id.New(),
		Email:     email,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.repo.Put(ctx, sess); err != nil {
		return nil, fmt.Errorf("store session: %w", err)
	}
	token, err := s.tokens.Sign(email, sess.SessionID, sess.ExpiresAt)
	if err != nil {
		return nil, err
	}
	return &Issued{Token: token, Session: sess}, nil
}

// Authenticate resolves a token to its live session. Bad signatures, expired
// tokens, unknown or revoked records and email mismatches all yield
// domain.ErrUnauthorized.
func (s *service) Authenticate(ctx context.Context, token string) (*domain.Session, error) {
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return nil, fmt.Errorf("invalid session token: %w", domain.ErrUnauthorized)
	}
	sess, err := s.repo.Get(ctx, claims.SessionID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("unknown session: %w", domain.ErrUnauthorized)
	}
	if err != nil {
		return nil, err
	}
	if sess.Email != claims.Email {
		return nil, fmt.Errorf("session subject mismatch: %w", domain.ErrUnauthorized)
	}
	if !sess.Active(s.now()) {
		return nil, fmt.Errorf("session expired or revoked: %w", domain.ErrUnauthorized)
	}
	return sess, nil
}

func (s *service) Revoke(ctx context.Context, sessionID string) error {
	return s.repo.Revoke(ctx, sessionID, s.now().UTC())
}
