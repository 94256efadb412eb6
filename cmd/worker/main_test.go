package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/tapcards/tap/pkg/apperror"
	"github.com/tapcards/tap/pkg/logger"
)

var fastRetry = retryPolicy{initial: time.Millisecond, max: 4 * time.Millisecond}

func TestProcessUntilDone_RetriesTransientFailures(t *testing.T) {
	attempts := 0
	process := func(context.Context) error {
		attempts++
		if attempts < 3 {
			return apperror.NewStorage("failed to save profiles", errors.New("redis down"))
		}
		return nil
	}

	ok := processUntilDone(context.Background(), process, fastRetry, logger.NewNopLogger())

	assert.True(t, ok)
	assert.Equal(t, 3, attempts)
}

func TestProcessUntilDone_InvalidEventIsNotRetried(t *testing.T) {
	attempts := 0
	process := func(context.Context) error {
		attempts++
		return apperror.NewInvalidInput("avatar event is missing the asset id", nil)
	}

	ok := processUntilDone(context.Background(), process, fastRetry, logger.NewNopLogger())

	assert.True(t, ok)
	assert.Equal(t, 1, attempts)
}

func TestProcessUntilDone_StopsWithoutCommitOnShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	process := func(context.Context) error {
		attempts++
		if attempts == 2 {
			cancel()
		}
		return errors.New("cloudinary unreachable")
	}

	ok := processUntilDone(ctx, process, fastRetry, logger.NewNopLogger())

	assert.False(t, ok)
	assert.Equal(t, 2, attempts)
}

func TestSleep(t *testing.T) {
	assert.True(t, sleep(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, sleep(ctx, time.Hour))
}
