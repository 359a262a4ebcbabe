package middleware

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRateLimiterAllowsUpToLimit(t *testing.T) {
	rl := NewRateLimiter(3, time.Minute)
	defer rl.Close()

	require.True(t, rl.Allow(1))
	require.True(t, rl.Allow(1))
	require.True(t, rl.Allow(1))
	require.False(t, rl.Allow(1))

	// другой пользователь считает своё окно отдельно
	require.True(t, rl.Allow(2))
}

func TestRateLimiterRecoversAfterWindow(t *testing.T) {
	rl := NewRateLimiter(1, 30*time.Millisecond)
	defer rl.Close()

	require.True(t, rl.Allow(7))
	require.False(t, rl.Allow(7))

	time.Sleep(40 * time.Millisecond)
	require.True(t, rl.Allow(7))
}

func TestTrimExpiredKeepsOrderedTail(t *testing.T) {
	now := time.Now()
	marks := []time.Time{
		now.Add(-3 * time.Second),
		now.Add(-2 * time.Second),
		now.Add(-time.Second),
	}

	live := trimExpired(marks, now.Add(-1500*time.Millisecond))
	require.Len(t, live, 1)

	require.Nil(t, trimExpired(marks, now))
}
