package wsclient

import (
	"math/rand"
	"time"
)

// maxRetryExponent caps the backoff window at 2^6 seconds (64s).
const maxRetryExponent = 6

// fullJitterDelay returns a uniformly random delay in
// [0, 2^min(retry, 6) seconds). Randomizing the whole window keeps a
// fleet of clients from reconnecting in lockstep after a shared
// outage.
func fullJitterDelay(retry int) time.Duration {
	if retry < 0 {
		retry = 0
	}
	if retry > maxRetryExponent {
		retry = maxRetryExponent
	}
	maxDelayMS := int64(1) << retry * 1000
	return time.Duration(rand.Int63n(maxDelayMS+1)) * time.Millisecond
}
