package network

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCalculateBackoff(t *testing.T) {
	tests := []struct {
		retryCount int
		want       time.Duration
	}{
		{-1, time.Second},
		{0, time.Second},
		{1, 2 * time.Second},
		{3, 8 * time.Second},
		{6, 60 * time.Second},
		{100, 60 * time.Second},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, CalculateBackoff(tt.retryCount), "retry %d", tt.retryCount)
	}
}

func TestTokenBucketAllow(t *testing.T) {
	b := NewTokenBucket(2, 1)
	now := time.Now()
	require.True(t, b.Allow(now))
	require.True(t, b.Allow(now))
	require.False(t, b.Allow(now))
	require.True(t, b.Allow(now.Add(1100*time.Millisecond)))
}

func TestTokenBucketWaitCancelled(t *testing.T) {
	b := NewTokenBucket(1, 0.001)
	require.NoError(t, b.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, b.Wait(ctx), context.DeadlineExceeded)
}

func TestTokenBucketWaitRefills(t *testing.T) {
	b := NewTokenBucket(1, 100)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, b.Wait(ctx))
	require.NoError(t, b.Wait(ctx))
}

func TestNewHTTPClientTimeout(t *testing.T) {
	require.Equal(t, 5*time.Second, NewHTTPClient(0).Timeout)
	require.Equal(t, 2*time.Second, NewHTTPClient(2*time.Second).Timeout)
}
