package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/windowsadmins/cimisweep/pkg/logging"
)

var fast = RetryConfig{MaxRetries: 3, InitialInterval: time.Millisecond, Multiplier: 2}

func TestRetrySucceedsAfterTransientFailures(t *testing.T) {
	log := logging.NewTestLogger()
	calls := 0
	err := Retry(context.Background(), fast, log.Logger, func() error {
		calls++
		if calls < 3 {
			return errors.New("sharing violation")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 2, log.CountContaining(logging.LevelWarn, "Retrying in"))
}

func TestRetryGivesUp(t *testing.T) {
	cause := errors.New("disk full")
	calls := 0
	err := Retry(context.Background(), fast, logging.NewNop(), func() error {
		calls++
		return cause
	})
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, 3, calls)
}

func TestPermanentStopsImmediately(t *testing.T) {
	cause := errors.New("file exists")
	calls := 0
	err := Retry(context.Background(), fast, logging.NewNop(), func() error {
		calls++
		return Permanent(cause)
	})
	assert.Equal(t, cause, err)
	assert.Equal(t, 1, calls)
	assert.Nil(t, Permanent(nil))
}

func TestRetryHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cfg := RetryConfig{MaxRetries: 5, InitialInterval: time.Hour, Multiplier: 1}
	err := Retry(ctx, cfg, logging.NewNop(), func() error { return errors.New("busy") })
	assert.ErrorIs(t, err, context.Canceled)
}
