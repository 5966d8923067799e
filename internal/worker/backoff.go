package worker

import (
	"math/rand"
	"time"
)

// computeBackoff returns an exponentially increasing delay with ±25% jitter.
// Base = 2s, max = 10m, exponent capped to prevent integer overflow.
func computeBackoff(attempt int) time.Duration {
	base := 2 * time.Second
	maxDelay := 10 * time.Minute
	shift := attempt - 1
	if shift < 0 {
		shift = 0
	}
	if shift > 20 {
		shift = 20
	}
	d := base * time.Duration(1<<shift)
	if d > maxDelay {
		d = maxDelay
	}
	jitter := time.Duration(rand.Int63n(int64(d/2))) - d/4
	return d + jitter
}
