package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-otp-auth/internal/domain"
	"github.com/jackc/pgx/v5"
)

// OTPRepo stores pending passcodes in the otp_codes table.
type OTPRepo struct {
	db DB
}

func NewOTPRepo(db DB) *OTPRepo {
	return &OTPRepo{db: db}
}

func (r *OTPRepo) Create(ctx context.Context, o *domain.OTPCode) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO otp_codes (id, email, code, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
	`, o.ID, o.Email, o.Code, o.CreatedAt, o.ExpiresAt)
	if err != nil {
		return fmt.Errorf("insert otp: %w", err)
	}
	return nil
}

// Latest returns the most recently created code for email. Older codes are
// never consulted.
func (r *OTPRepo) Latest(ctx context.Context, email string) (*domain.OTPCode, error) {
	var o domain.OTPCode
	err := r.db.QueryRow(ctx, `
		SELECT id, email, code, created_at, expires_at
		FROM otp_codes
		WHERE email = $1
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`, email).Scan(&o.ID, &o.Email, &o.Code, &o.CreatedAt, &o.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("otp not found: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get latest otp: %w", err)
	}
	return &o, nil
}

// Consume marks the owning account verified and deletes the code in one
// transaction. If the code was already deleted by a concurrent request the
// transaction is rolled back and domain.ErrNotFound is returned.
func (r *OTPRepo) Consume(ctx context.Context, o *domain.OTPCode) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin consume otp: %w", err)
	}
	if err := consume(ctx, tx, o); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit consume otp: %w", err)
	}
	return nil
}

func consume(ctx context.Context, tx pgx.Tx, o *domain.OTPCode) error {
	if _, err := tx.Exec(ctx,
		`UPDATE accounts SET verified = TRUE, updated_at = NOW() WHERE email = $1`,
		o.Email,
	); err != nil {
		return fmt.Errorf("mark account verified: %w", err)
	}
	tag, err := tx.Exec(ctx, `DELETE FROM otp_codes WHERE id = $1`, o.ID)
	if err != nil {
		return fmt.Errorf("delete otp: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("otp %s already consumed: %w", o.ID, domain.ErrNotFound)
	}
	return nil
}

// DeleteExpired removes codes whose expiry is before cutoff.
func (r *OTPRepo) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM otp_codes WHERE expires_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete expired otps: %w", err)
	}
	return tag.RowsAffected(), nil
}
