package service

import (
	"math"
	"time"
)

// BackoffFunc returns how long to wait before retrying an entry that has failed
// the given number of times.
type BackoffFunc func(failures int) time.Duration

// RetryPolicy bounds how automatic sync passes retry a failing entry.
// MaxAttempts 0 means unbounded.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     BackoffFunc
}

// NoBackoff retries on every pass.
func NoBackoff(int) time.Duration { return 0 }

// ExponentialBackoff doubles base per failure, capped at max. A zero base disables
// backoff; a non-positive max caps at the largest representable duration.
func ExponentialBackoff(base, max time.Duration) BackoffFunc {
	if max <= 0 {
		max = time.Duration(math.MaxInt64)
	}
	return func(failures int) time.Duration {
		if base <= 0 || failures <= 0 {
			return 0
		}
		delay := base
		for i := 1; i < failures; i++ {
			if delay > max/2 {
				return max
			}
			delay *= 2
		}
		if delay > max {
			return max
		}
		return delay
	}
}

// DefaultRetryPolicy retries every entry on every pass without delay.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Backoff: NoBackoff}
}

func (p RetryPolicy) exhausted(failures int) bool {
	return p.MaxAttempts > 0 && failures >= p.MaxAttempts
}

func (p RetryPolicy) delay(failures int) time.Duration {
	if p.Backoff == nil {
		return 0
	}
	return p.Backoff(failures)
}
