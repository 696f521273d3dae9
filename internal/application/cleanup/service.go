package cleanup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-otp-auth/internal/observability"
	"github.com/robfig/cron/v3"
)

const jobTimeout = 5 * time.Minute

type expiredStore interface {
	DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error)
}

// Result counts the rows removed by one purge.
type Result struct {
	OTPCodes int64
	Sessions int64
}

type ServiceDeps struct {
	OTPRepo     expiredStore
	SessionRepo expiredStore
	Now         func() time.Time
}

// Service removes expired OTP codes and expired or revoked sessions.
type Service struct {
	otps     expiredStore
	sessions expiredStore
	now      func() time.Time
}

func NewService(deps ServiceDeps) *Service {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Service{otps: deps.OTPRepo, sessions: deps.SessionRepo, now: now}
}

// Purge runs both deletions. A failure in one does not skip the other.
func (s *Service) Purge(ctx context.Context) (Result, error) {
	cutoff := s.now().UTC()
	var res Result
	var errs []error

	n, err := s.otps.DeleteExpired(ctx, cutoff)
	if err != nil {
		errs = append(errs, fmt.Errorf("purge otp codes: %w", err))
	}
	res.OTPCodes = n
	observability.RecordPurge("otp_code", n)

	n, err = s.sessions.DeleteExpired(ctx, cutoff)
	if err != nil {
		errs = append(errs, fmt.Errorf("purge sessions: %w", err))
	}
	res.Sessions = n
	observability.RecordPurge("session", n)

	return res, errors.Join(errs...)
}

type purger interface {
	Purge(ctx context.Context) (Result, error)
}

// Schedule registers svc on a UTC cron with the given spec. The returned
// cron is not started.
func Schedule(spec string, svc purger) (*cron.Cron, error) {
	c := cron.New(cron.WithLocation(time.UTC))
	_, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()
		res, err := svc.Purge(ctx)
		if err != nil {
			slog.Error("scheduled cleanup failed", "err", err)
			return
		}
		slog.Info("scheduled cleanup done", "otp_codes", res.OTPCodes, "sessions", res.Sessions)
	})
	if err != nil {
		return nil, fmt.Errorf("schedule cleanup %q: %w", spec, err)
	}
	return c, nil
}
