package cron

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSweeper struct {
	swept int
	err   error
	calls int
}

func (f *fakeSweeper) SweepExpired(_ context.Context, _ int) (int, error) {
	f.calls++
	return f.swept, f.err
}

type fakePurger struct {
	purged int
	err    error
	calls  int
}

func (f *fakePurger) PurgeExpired(_ context.Context, _ int) (int, error) {
	f.calls++
	return f.purged, f.err
}

type fakeRetrier struct {
	retried int
	err     error
	calls   int
}

func (f *fakeRetrier) RetrySweep(_ context.Context) (int, error) {
	f.calls++
	return f.retried, f.err
}

func TestCheckoutSweepJobRunsBothPhases(t *testing.T) {
	t.Parallel()

	sweeper := &fakeSweeper{swept: 3}
	purger := &fakePurger{purged: 2}
	job, err := NewCheckoutSweepJob(CheckoutSweepJobParams{
		Logger:   testLogger(),
		Checkout: sweeper,
		Carts:    purger,
	})
	require.NoError(t, err)

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, 1, sweeper.calls)
	assert.Equal(t, 1, purger.calls)
	assert.Equal(t, "checkout-session-sweep", job.Name())
}

func TestCheckoutSweepJobSessionFailureStillPurgesCarts(t *testing.T) {
	t.Parallel()

	sweeper := &fakeSweeper{err: errors.New("db down")}
	purger := &fakePurger{}
	job, err := NewCheckoutSweepJob(CheckoutSweepJobParams{
		Logger:   testLogger(),
		Checkout: sweeper,
		Carts:    purger,
	})
	require.NoError(t, err)

	runErr := job.Run(context.Background())
	require.Error(t, runErr)
	assert.Equal(t, 1, purger.calls, "cart purge runs even when the session sweep fails")
}

func TestNotificationRetryJob(t *testing.T) {
	t.Parallel()

	retrier := &fakeRetrier{retried: 4}
	job, err := NewNotificationRetryJob(NotificationRetryJobParams{
		Logger:        testLogger(),
		Notifications: retrier,
	})
	require.NoError(t, err)

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, 1, retrier.calls)
	assert.Equal(t, "notification-retry", job.Name())

	retrier.err = errors.New("db down")
	require.Error(t, job.Run(context.Background()))
}
