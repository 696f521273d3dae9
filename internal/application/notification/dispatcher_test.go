package notification

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type funcSender func(ctx context.Context, email, code string) error

func (f funcSender) SendOTP(ctx context.Context, email, code string) error { return f(ctx, email, code) }

func TestDispatcher_DeliversAndDrains(t *testing.T) {
	defer goleak.VerifyNone(t)

	var sent atomic.Int32
	d := NewDispatcher(funcSender(func(context.Context, string, string) error {
		time.Sleep(10 * time.Millisecond)
		sent.Add(1)
		return nil
	}), 1, time.Second)

	for i := 0; i < 5; i++ {
		d.NotifyOTP(context.Background(), "a@b.com", "123456")
	}
	require.NoError(t, d.Shutdown(context.Background()))
	assert.Equal(t, int32(5), sent.Load())
}

func TestDispatcher_RequestCancellationDoesNotAbortDelivery(t *testing.T) {
	defer goleak.VerifyNone(t)

	var gotErr atomic.Value
	d := NewDispatcher(funcSender(func(ctx context.Context, _, _ string) error {
		time.Sleep(5 * time.Millisecond)
		if err := ctx.Err(); err != nil {
			gotErr.Store(err)
		}
		return nil
	}), 1, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	d.NotifyOTP(ctx, "a@b.com", "123456")
	cancel()
	require.NoError(t, d.Shutdown(context.Background()))
	assert.Nil(t, gotErr.Load())
}

func TestDispatcher_RetriesUpToAttempts(t *testing.T) {
	defer goleak.VerifyNone(t)

	var calls atomic.Int32
	d := NewDispatcher(funcSender(func(context.Context, string, string) error {
		calls.Add(1)
		return errors.New("connection reset")
	}), 3, time.Second)
	d.backoff = time.Millisecond

	d.NotifyOTP(context.Background(), "a@b.com", "123456")
	require.NoError(t, d.Shutdown(context.Background()))
	assert.Equal(t, int32(3), calls.Load())
}

func TestDispatcher_SucceedsAfterRetry(t *testing.T) {
	defer goleak.VerifyNone(t)

	var calls atomic.Int32
	d := NewDispatcher(funcSender(func(context.Context, string, string) error {
		if calls.Add(1) == 1 {
			return errors.New("temporary")
		}
		return nil
	}), 2, time.Second)
	d.backoff = time.Millisecond

	d.NotifyOTP(context.Background(), "a@b.com", "123456")
	require.NoError(t, d.Shutdown(context.Background()))
	assert.Equal(t, int32(2), calls.Load())
}

func TestDispatcher_DropsAfterShutdown(t *testing.T) {
	defer goleak.VerifyNone(t)

	var calls atomic.Int32
	d := NewDispatcher(funcSender(func(context.Context, string, string) error {
		calls.Add(1)
		return nil
	}), 1, time.Second)

	require.NoError(t, d.Shutdown(context.Background()))
	d.NotifyOTP(context.Background(), "a@b.com", "123456")
	assert.Zero(t, calls.Load())
}

func TestDispatcher_ShutdownHonoursContext(t *testing.T) {
	release := make(chan struct{})
	d := NewDispatcher(funcSender(func(context.Context, string, string) error {
		<-release
		return nil
	}), 1, time.Minute)

	d.NotifyOTP(context.Background(), "a@b.com", "123456")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, d.Shutdown(ctx), context.DeadlineExceeded)

	close(release)
	require.NoError(t, d.Shutdown(context.Background()))
}

func TestDispatcher_TimeoutAppliesPerAttempt(t *testing.T) {
	defer goleak.VerifyNone(t)

	var calls atomic.Int32
	d := NewDispatcher(funcSender(func(ctx context.Context, _, _ string) error {
		if calls.Add(1) == 1 {
			<-ctx.Done()
			return ctx.Err()
		}
		return ctx.Err()
	}), 2, 20*time.Millisecond)
	d.backoff = time.Millisecond

	d.NotifyOTP(context.Background(), "a@b.com", "123456")
	require.NoError(t, d.Shutdown(context.Background()))
	assert.Equal(t, int32(2), calls.Load(), "a hung first attempt still leaves the retry its own budget")
}
