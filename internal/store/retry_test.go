package store

import (
	"context"
	"database/sql/driver"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetryer() Retryer {
	return Retryer{Attempts: 5, Delay: time.Millisecond}
}

func TestRetryerStopsAtBound(t *testing.T) {
	r := fastRetryer()
	calls := 0
	err := r.Do(context.Background(), func() error {
		calls++
		return driver.ErrBadConn
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, 5, calls, "must retry exactly up to the bound, never indefinitely")
}

func TestRetryerRecoversFromTransientFailure(t *testing.T) {
	r := fastRetryer()
	calls := 0
	err := r.Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return &pgconn.PgError{Code: "08006"} // connection failure
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryerDoesNotRetryNonTransient(t *testing.T) {
	r := fastRetryer()

	t.Run("plain error", func(t *testing.T) {
		calls := 0
		boom := errors.New("boom")
		err := r.Do(context.Background(), func() error {
			calls++
			return boom
		})
		assert.ErrorIs(t, err, boom)
		assert.NotErrorIs(t, err, ErrUnavailable)
		assert.Equal(t, 1, calls)
	})

	t.Run("unique violation", func(t *testing.T) {
		calls := 0
		err := r.Do(context.Background(), func() error {
			calls++
			return &pgconn.PgError{Code: "23505"}
		})
		require.Error(t, err)
		assert.True(t, IsUniqueViolation(err))
		assert.Equal(t, 1, calls, "constraint violations must propagate immediately")
	})
}

func TestRetryerHonorsContext(t *testing.T) {
	r := Retryer{Attempts: 5, Delay: time.Minute}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- r.Do(ctx, func() error { return driver.ErrBadConn })
	}()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("retry loop did not observe cancellation")
	}
}

func TestIsTransient(t *testing.T) {
	assert.True(t, IsTransient(driver.ErrBadConn))
	assert.True(t, IsTransient(&pgconn.PgError{Code: "08000"}))
	assert.True(t, IsTransient(&pgconn.PgError{Code: "57P01"}))
	assert.True(t, IsTransient(&pgconn.PgError{Code: "53300"}))
	assert.False(t, IsTransient(&pgconn.PgError{Code: "23505"}))
	assert.False(t, IsTransient(errors.New("syntax error")))
	assert.False(t, IsTransient(nil))
}
