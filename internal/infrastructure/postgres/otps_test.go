package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-otp-auth/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var otpCols = []string{"id", "email", "code", "created_at", "expires_at"}

func TestOTPRepo_Create(t *testing.T) {
	mock := newMock(t)
	now := time.Now().UTC()
	o := &domain.OTPCode{ID: "01J", Email: "a@b.com", Code: "123456", CreatedAt: now, ExpiresAt: now.Add(5 * time.Minute)}
	mock.ExpectExec(`INSERT INTO otp_codes`).
		WithArgs("01J", "a@b.com", "123456", now, o.ExpiresAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, NewOTPRepo(mock).Create(context.Background(), o))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOTPRepo_Latest_OrdersByRecency(t *testing.T) {
	mock := newMock(t)
	now := time.Now().UTC()
	mock.ExpectQuery(`FROM otp_codes WHERE email = \$1 ORDER BY created_at DESC, id DESC LIMIT 1`).
		WithArgs("a@b.com").
		WillReturnRows(pgxmock.NewRows(otpCols).AddRow("01J2", "a@b.com", "654321", now, now.Add(5*time.Minute)))

	o, err := NewOTPRepo(mock).Latest(context.Background(), "a@b.com")
	require.NoError(t, err)
	assert.Equal(t, "01J2", o.ID)
	assert.Equal(t, "654321", o.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOTPRepo_Latest_NotFound(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery(`FROM otp_codes`).
		WithArgs("a@b.com").
		WillReturnError(pgx.ErrNoRows)

	_, err := NewOTPRepo(mock).Latest(context.Background(), "a@b.com")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestOTPRepo_Consume_Commits(t *testing.T) {
	mock := newMock(t)
	o := &domain.OTPCode{ID: "01J", Email: "a@b.com"}
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE accounts SET verified = TRUE`).
		WithArgs("a@b.com").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`DELETE FROM otp_codes WHERE id = \$1`).
		WithArgs("01J").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectCommit()

	require.NoError(t, NewOTPRepo(mock).Consume(context.Background(), o))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOTPRepo_Consume_AlreadyConsumedRollsBack(t *testing.T) {
	mock := newMock(t)
	o := &domain.OTPCode{ID: "01J", Email: "a@b.com"}
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE accounts SET verified = TRUE`).
		WithArgs("a@b.com").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`DELETE FROM otp_codes`).
		WithArgs("01J").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectRollback()

	err := NewOTPRepo(mock).Consume(context.Background(), o)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOTPRepo_Consume_UpdateFailureRollsBack(t *testing.T) {
	mock := newMock(t)
	o := &domain.OTPCode{ID: "01J", Email: "a@b.com"}
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE accounts`).
		WithArgs("a@b.com").
		WillReturnError(errors.New("deadlock detected"))
	mock.ExpectRollback()

	err := NewOTPRepo(mock).Consume(context.Background(), o)
	assert.ErrorContains(t, err, "mark account verified: deadlock detected")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOTPRepo_DeleteExpired(t *testing.T) {
	mock := newMock(t)
	cutoff := time.Now().UTC()
	mock.ExpectExec(`DELETE FROM otp_codes WHERE expires_at < \$1`).
		WithArgs(cutoff).
		WillReturnResult(pgxmock.NewResult("DELETE", 7))

	n, err := NewOTPRepo(mock).DeleteExpired(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
