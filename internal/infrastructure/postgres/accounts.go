package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-otp-auth/internal/domain"
	"github.com/jackc/pgx/v5"
)

// AccountRepo stores credential records in the accounts table.
type AccountRepo struct {
	db DB
}

func NewAccountRepo(db DB) *AccountRepo {
	return &AccountRepo{db: db}
}

// Create inserts a new account. A duplicate email yields domain.ErrConflict.
func (r *AccountRepo) Create(ctx context.Context, a *domain.Account) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO accounts (email, password_hash, verified, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`, a.Email, a.PasswordHash, a.Verified, a.CreatedAt, a.UpdatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("account %s exists: %w", a.Email, domain.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

func (r *AccountRepo) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	var a domain.Account
	err := r.db.QueryRow(ctx, `
		SELECT email, password_hash, verified, created_at, updated_at
		FROM accounts
		WHERE email = $1
	`, email).Scan(&a.Email, &a.PasswordHash, &a.Verified, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("account not found: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	return &a, nil
}
