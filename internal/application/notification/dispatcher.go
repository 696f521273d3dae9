package notification

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/go-otp-auth/internal/observability"
	"github.com/sethvargo/go-retry"
)

const retryBase = 500 * time.Millisecond

type otpSender interface {
	SendOTP(ctx context.Context, email, code string) error
}

// Dispatcher sends OTP emails on background goroutines so the request that
// triggered them never waits on, or fails because of, delivery.
type Dispatcher struct {
	svc      otpSender
	attempts int
	timeout  time.Duration
	backoff  time.Duration

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewDispatcher returns a Dispatcher making at most attempts tries per email,
// each attempt bounded by timeout.
func NewDispatcher(svc otpSender, attempts int, timeout time.Duration) *Dispatcher {
	if attempts < 1 {
		attempts = 1
	}
	return &Dispatcher{svc: svc, attempts: attempts, timeout: timeout, backoff: retryBase}
}

// NotifyOTP schedules delivery and returns immediately. Failures are logged
// and counted only.
func (d *Dispatcher) NotifyOTP(ctx context.Context, email, code string) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		slog.Warn("dispatcher closed, otp email dropped", "email", email)
		observability.RecordDelivery(observability.OutcomeError)
		return
	}
	d.wg.Add(1)
	d.mu.Unlock()

	sendCtx := context.WithoutCancel(ctx)
	go func() {
		defer d.wg.Done()
		d.deliver(sendCtx, email, code)
	}()
}

func (d *Dispatcher) deliver(ctx context.Context, email, code string) {
	b := retry.WithMaxRetries(uint64(d.attempts-1), retry.NewExponential(d.backoff))
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		attemptCtx, cancel := context.WithTimeout(ctx, d.timeout)
		defer cancel()
		if err := d.svc.SendOTP(attemptCtx, email, code); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		slog.Warn("failed to send otp email", "email", email, "attempts", d.attempts, "err", err)
		observability.RecordDelivery(observability.OutcomeError)
		return
	}
	slog.Info("otp email sent", "email", email)
	observability.RecordDelivery(observability.OutcomeSuccess)
}

// Shutdown stops accepting new deliveries and waits for in-flight ones until
// ctx is done.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
