package jwtinfra

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-otp-auth/internal/config"
	"github.com/golang-jwt/jwt/v5"
)

const issuer = "go-otp-auth"

// Claims holds the session token payload.
type Claims struct {
	Email     string `json:"email"`
	SessionID string `json:"session_id"`
	jwt.RegisteredClaims
}

// Provider signs and verifies HS256 session tokens.
type Provider struct {
	secret []byte
}

func NewProvider(cfg *config.Config) (*Provider, error) {
	if cfg.SessionSecret == "" {
		return nil, errors.New("session secret is empty")
	}
	return &Provider{secret: []byte(cfg.SessionSecret)}, nil
}

func (p *Provider) Sign(email, sessionID string, expiresAt time.Time) (string, error) {
	now := time.Now()
	claims := Claims{
		Email:     email,
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   email,
			ID:        sessionID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(p.secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}

func (p *Provider) Verify(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return p.secret, nil
	}, jwt.WithIssuer(issuer), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	if claims.SessionID == "" || claims.Email == "" {
		return nil, errors.New("incomplete token claims")
	}
	return claims, nil
}
