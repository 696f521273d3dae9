package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-otp-auth/internal/domain"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var accountCols = []string{"email", "password_hash", "verified", "created_at", "updated_at"}

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err, "failed to create mock")
	t.Cleanup(mock.Close)
	return mock
}

func TestAccountRepo_Create(t *testing.T) {
	now := time.Now().UTC()
	acct := &domain.Account{Email: "a@b.com", PasswordHash: "hash", CreatedAt: now, UpdatedAt: now}

	tests := []struct {
		name      string
		setupMock func(mock pgxmock.PgxPoolIface)
		wantErr   error
		errMsg    string
	}{
		{
			name: "inserts unverified account",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(`INSERT INTO accounts`).
					WithArgs("a@b.com", "hash", false, now, now).
					WillReturnResult(pgxmock.NewResult("INSERT", 1))
			},
		},
		{
			name: "duplicate email is a conflict",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(`INSERT INTO accounts`).
					WithArgs("a@b.com", "hash", false, now, now).
					WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation})
			},
			wantErr: domain.ErrConflict,
		},
		{
			name: "other failures are wrapped",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(`INSERT INTO accounts`).
					WithArgs("a@b.com", "hash", false, now, now).
					WillReturnError(errors.New("connection refused"))
			},
			errMsg: "insert account: connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := newMock(t)
			tt.setupMock(mock)

			err := NewAccountRepo(mock).Create(context.Background(), acct)
			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.errMsg != "":
				assert.EqualError(t, err, tt.errMsg)
				assert.NotErrorIs(t, err, domain.ErrConflict)
			default:
				assert.NoError(t, err)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestAccountRepo_GetByEmail(t *testing.T) {
	mock := newMock(t)
	now := time.Now().UTC()
	mock.ExpectQuery(`SELECT email, password_hash, verified`).
		WithArgs("a@b.com").
		WillReturnRows(pgxmock.NewRows(accountCols).AddRow("a@b.com", "hash", true, now, now))

	a, err := NewAccountRepo(mock).GetByEmail(context.Background(), "a@b.com")
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", a.Email)
	assert.Equal(t, "hash", a.PasswordHash)
	assert.True(t, a.Verified)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepo_GetByEmail_NotFound(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery(`SELECT email, password_hash, verified`).
		WithArgs("x@x.com").
		WillReturnError(pgx.ErrNoRows)

	_, err := NewAccountRepo(mock).GetByEmail(context.Background(), "x@x.com")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
