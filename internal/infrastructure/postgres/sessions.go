package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-otp-auth/internal/domain"
	"github.com/jackc/pgx/v5"
)

// SessionRepo stores server-side session records.
type SessionRepo struct {
	db DB
}

func NewSessionRepo(db DB) *SessionRepo {
	return &SessionRepo{db: db}
}

func (r *SessionRepo) Put(ctx context.Context, s *domain.Session) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO sessions (id, email, created_at, expires_at)
		VALUES ($1, $2, $3, $4)
	`, s.SessionID, s.Email, s.CreatedAt, s.ExpiresAt)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (r *SessionRepo) Get(ctx context.Context, sessionID string) (*domain.Session, error) {
	var s domain.Session
	err := r.db.QueryRow(ctx, `
		SELECT id, email, created_at, expires_at, revoked_at
		FROM sessions
		WHERE id = $1
	`, sessionID).Scan(&s.SessionID, &s.Email, &s.CreatedAt, &s.ExpiresAt, &s.RevokedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("session not found: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return &s, nil
}

// Revoke stamps revoked_at. Revoking an already revoked session is a no-op.
func (r *SessionRepo) Revoke(ctx context.Context, sessionID string, at time.Time) error {
	_, err := r.db.Exec(ctx,
		`UPDATE sessions SET revoked_at = $2 WHERE id = $1 AND revoked_at IS NULL`,
		sessionID, at,
	)
	if err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

// DeleteExpired removes sessions that expired before cutoff or were revoked.
func (r *SessionRepo) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM sessions WHERE expires_at < $1 OR revoked_at IS NOT NULL`,
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}
