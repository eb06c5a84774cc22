package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entraeiendom/entraos-metasys-crawler-cli/internal/retry"
)

func fastConfig() retry.Config {
	return retry.Config{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
}

func TestDo_SucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	err := retry.Do(context.Background(), fastConfig(), func() error {
		calls++
		if calls < 3 {
			return errors.New("dial tcp: connection refused")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_StopsOnPermanentError(t *testing.T) {
	calls := 0
	perm := errors.New("status 401")
	err := retry.Do(context.Background(), fastConfig(), func() error {
		calls++
		return perm
	})
	require.ErrorIs(t, err, perm)
	assert.Equal(t, 1, calls)
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	err := retry.Do(context.Background(), fastConfig(), func() error {
		return errors.New("connection reset by peer")
	})
	require.ErrorIs(t, err, retry.ErrMaxAttemptsExceeded)
}

func TestDo_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := retry.Do(ctx, fastConfig(), func() error { return nil })
	require.ErrorIs(t, err, retry.ErrContextCancelled)
}

func TestIsTransient(t *testing.T) {
	assert.False(t, retry.IsTransient(nil))
	assert.False(t, retry.IsTransient(context.Canceled))
	assert.True(t, retry.IsTransient(errors.New("unexpected EOF")))
	assert.False(t, retry.IsTransient(errors.New("bad credentials")))
}
