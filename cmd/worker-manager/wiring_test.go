package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"pathfinder-workers/internal/common/config"
	"pathfinder-workers/internal/common/logger"
)

// ==========================
// retryWithBackoff
// ==========================

func TestRetryWithBackoff_SucceedsAfterFailures(t *testing.T) {
	calls := 0
	err := retryWithBackoff(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("connection refused")
		}
		return nil
	}, 5, time.Millisecond, zaptest.NewLogger(t), "test op")

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryWithBackoff_GivesUpAfterMaxAttempts(t *testing.T) {
	calls := 0
	boom := errors.New("connection refused")
	err := retryWithBackoff(context.Background(), func() error {
		calls++
		return boom
	}, 4, time.Millisecond, zaptest.NewLogger(t), "test op")

	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "test op failed after 4 attempts")
	assert.Equal(t, 4, calls)
}

func TestRetryWithBackoff_StopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	err := retryWithBackoff(ctx, func() error {
		calls++
		return errors.New("still down")
	}, 10, time.Hour, zaptest.NewLogger(t), "test op")

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

// ==========================
// backend selection
// ==========================

func TestNewLoader_FileByDefault(t *testing.T) {
	cfg := &config.Config{}
	cfg.Reference.Source = config.SourceFile
	cfg.Reference.FilePath = "data/reference.yaml"

	loader, err := newLoader(cfg, &backends{})
	require.NoError(t, err)
	assert.NotNil(t, loader)
}

func TestNewLoader_UnknownSource(t *testing.T) {
	cfg := &config.Config{}
	cfg.Reference.Source = "s3"

	_, err := newLoader(cfg, &backends{})
	assert.Error(t, err)
}

func TestNewRefiner_DisabledReturnsNil(t *testing.T) {
	cfg := &config.Config{}
	assert.Nil(t, newRefiner(context.Background(), cfg, logger.NewTestLogger(t)))
}
