package wsclient

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFullJitterDelayBounds(t *testing.T) {
	for retry := 0; retry <= 10; retry++ {
		exp := retry
		if exp > maxRetryExponent {
			exp = maxRetryExponent
		}
		window := time.Duration(1<<exp) * time.Second
		for i := 0; i < 50; i++ {
			d := fullJitterDelay(retry)
			require.GreaterOrEqual(t, d, time.Duration(0), "retry %d", retry)
			require.LessOrEqual(t, d, window, "retry %d", retry)
		}
	}
}

func TestFullJitterDelayClampsRetry(t *testing.T) {
	require.GreaterOrEqual(t, fullJitterDelay(-3), time.Duration(0))
	for i := 0; i < 50; i++ {
		require.LessOrEqual(t, fullJitterDelay(1000), 64*time.Second)
	}
}
