package cleanup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockExpired struct{ mock.Mock }

func (m *mockExpired) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

var now = time.Date(2026, 7, 1, 3, 0, 0, 0, time.UTC)

func newService(otps, sessions *mockExpired) *Service {
	return NewService(ServiceDeps{OTPRepo: otps, SessionRepo: sessions, Now: func() time.Time { return now }})
}

func TestPurge(t *testing.T) {
	otps, sessions := &mockExpired{}, &mockExpired{}
	otps.On("DeleteExpired", mock.Anything, now).Return(int64(4), nil)
	sessions.On("DeleteExpired", mock.Anything, now).Return(int64(2), nil)

	res, err := newService(otps, sessions).Purge(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Result{OTPCodes: 4, Sessions: 2}, res)
}

func TestPurge_ContinuesAfterFailure(t *testing.T) {
	otps, sessions := &mockExpired{}, &mockExpired{}
	otps.On("DeleteExpired", mock.Anything, now).Return(int64(0), errors.New("lock timeout"))
	sessions.On("DeleteExpired", mock.Anything, now).Return(int64(3), nil)

	res, err := newService(otps, sessions).Purge(context.Background())
	assert.ErrorContains(t, err, "purge otp codes: lock timeout")
	assert.Equal(t, int64(3), res.Sessions)
	sessions.AssertExpectations(t)
}

type stubPurger struct{ calls chan struct{} }

func (s stubPurger) Purge(context.Context) (Result, error) {
	select {
	case s.calls <- struct{}{}:
	default:
	}
	return Result{}, nil
}

func TestSchedule_InvalidSpec(t *testing.T) {
	_, err := Schedule("not a cron spec", stubPurger{})
	assert.ErrorContains(t, err, "schedule cleanup")
}

func TestSchedule_RunsJob(t *testing.T) {
	p := stubPurger{calls: make(chan struct{}, 1)}
	c, err := Schedule("@every 1s", p)
	require.NoError(t, err)
	require.Len(t, c.Entries(), 1)

	c.Start()
	defer c.Stop()
	select {
	case <-p.calls:
	case <-time.After(3 * time.Second):
		t.Fatal("cleanup job did not run")
	}
}
