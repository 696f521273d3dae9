package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-otp-auth/internal/application/session"
	"github.com/go-otp-auth/internal/domain"
	"github.com/go-otp-auth/internal/pkg/id"
	pkgtoken "github.com/go-otp-auth/internal/pkg/token"
	"golang.org/x/crypto/bcrypt"
)

const otpDigits = 6

// Client-facing messages.
const (
	MsgUserExists     = "User already exists"
	MsgOTPFailed      = "Failed to generate OTP"
	MsgNoOTP          = "No OTP found. Please sign up again."
	MsgInvalidOTP     = "Invalid OTP"
	MsgOTPExpired     = "OTP expired. Please sign up again."
	MsgUserNotFound   = "User not found"
	MsgInvalidPass    = "Invalid password"
	MsgEmailNotVerify = "Email not verified"
)

// OTPNotifier delivers a freshly issued code. Implementations must not block
// the caller on delivery and must not report delivery failures.
type OTPNotifier interface {
	NotifyOTP(ctx context.Context, email, code string)
}

type Service interface {
	Signup(ctx context.Context, req domain.SignupRequest) error
	VerifyOTP(ctx context.Context, req domain.VerifyOTPRequest) error
	Signin(ctx context.Context, req domain.SigninRequest) (*session.Issued, error)
}

type accountStore interface {
	Create(ctx context.Context, a *domain.Account) error
	GetByEmail(ctx context.Context, email string) (*domain.Account, error)
}

type otpStore interface {
	Create(ctx context.Context, o *domain.OTPCode) error
	Latest(ctx context.Context, email string) (*domain.OTPCode, error)
	Consume(ctx context.Context, o *domain.OTPCode) error
}

type sessionIssuer interface {
	Issue(ctx context.Context, email string) (*session.Issued, error)
}

type ServiceDeps struct {
	AccountRepo  accountStore
	OTPRepo      otpStore
	Sessions     sessionIssuer
	Notifier     OTPNotifier
	OTPTTL       time.Duration
	PasswordCost int // 0 means bcrypt.DefaultCost
	Now          func() time.Time
}

type service struct {
	accounts accountStore
	otps     otpStore
	sessions sessionIssuer
	notifier OTPNotifier
	otpTTL   time.Duration
	cost     int
	now      func() time.Time
}

func NewService(deps ServiceDeps) Service {
	cost := deps.PasswordCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		accounts: deps.AccountRepo,
		otps:     deps.OTPRepo,
		sessions: deps.Sessions,
		notifier: deps.Notifier,
		otpTTL:   deps.OTPTTL,
		cost:     cost,
		now:      now,
	}
}

// Signup creates an unverified account and a fresh OTP, then hands the code
// to the notifier. The account row is kept even if the OTP insert fails.
func (s *service) Signup(ctx context.Context, req domain.SignupRequest) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	now := s.now().UTC()
	acct := &domain.Account{
		Email:        req.Email,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.accounts.Create(ctx, acct); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return domain.NewError(domain.ErrConflict, MsgUserExists)
		}
		return fmt.Errorf("create account: %w", err)
	}

	code, err := pkgtoken.NewNumericCode(otpDigits)
	if err != nil {
		slog.Error("otp generation failed", "email", req.Email, "err", err)
		return domain.NewError(domain.ErrInternal, MsgOTPFailed)
	}
	otp := &domain.OTPCode{
		ID:        id.New(),
		Email:     req.Email,
		Code:      code,
		CreatedAt: now,
		ExpiresAt: now.Add(s.otpTTL),
	}
	if err := s.otps.Create(ctx, otp); err != nil {
		slog.Error("otp insert failed", "email", req.Email, "err", err)
		return domain.NewError(domain.ErrInternal, MsgOTPFailed)
	}

	s.notifier.NotifyOTP(ctx, req.Email, code)
	return nil
}

// VerifyOTP checks the most recent code for the email: existence, then
// equality, then expiry. On success the account is marked verified and the
// code is consumed.
func (s *service) VerifyOTP(ctx context.Context, req domain.VerifyOTPRequest) error {
	otp, err := s.otps.Latest(ctx, req.Email)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.NewError(domain.ErrNotFound, MsgNoOTP)
	}
	if err != nil {
		return fmt.Errorf("load otp: %w", err)
	}
	if subtle.ConstantTimeCompare([]byte(otp.Code), []byte(req.OTP)) != 1 {
		return domain.NewError(domain.ErrMismatch, MsgInvalidOTP)
	}
	if otp.Expired(s.now()) {
		return domain.NewError(domain.ErrExpired, MsgOTPExpired)
	}
	err = s.otps.Consume(ctx, otp)
	if errors.Is(err, domain.ErrNotFound) {
		// A concurrent request with the same code won; the account is verified.
		slog.Debug("otp consumed concurrently", "email", req.Email, "otp_id", otp.ID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("consume otp: %w", err)
	}
	return nil
}

// Signin checks credentials and the verified flag, then establishes a session.
func (s *service) Signin(ctx context.Context, req domain.SigninRequest) (*session.Issued, error) {
	acct, err := s.accounts.GetByEmail(ctx, req.Email)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.NewError(domain.ErrNotFound, MsgUserNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load account: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acct.PasswordHash), []byte(req.Password)); err != nil {
		return nil, domain.NewError(domain.ErrMismatch, MsgInvalidPass)
	}
	if !acct.Verified {
		return nil, domain.NewError(domain.ErrNotVerified, MsgEmailNotVerify)
	}
	issued, err := s.sessions.Issue(ctx, acct.Email)
	if err != nil {
		return nil, fmt.Errorf("issue session: %w", err)
	}
	return issued, nil
}
