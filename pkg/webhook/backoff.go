package webhook

import (
	"math/rand/v2"
	"time"
)

// BackoffStrategy returns the wait before retry n, counting from 1.
type BackoffStrategy interface {
	NextInterval(attempt int) time.Duration
}

// ExponentialBackoff multiplies the wait by Multiplier (default 2) per retry
// and caps it at MaxInterval. JitterFactor spreads it by up to ±that share.
type ExponentialBackoff struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	JitterFactor    float64
}

func (e ExponentialBackoff) NextInterval(attempt int) time.Duration {
	if attempt < 1 {
		return 0
	}
	limit := float64(cmpOr(e.MaxInterval, 30*time.Second))
	mult := e.Multiplier
	if mult <= 1 {
		mult = 2
	}
	wait := float64(cmpOr(e.InitialInterval, time.Second))
	for i := 1; i < attempt && wait < limit; i++ {
		wait *= mult
	}
	if e.JitterFactor > 0 {
		wait += wait * e.JitterFactor * (2*rand.Float64() - 1)
	}
	return time.Duration(min(wait, limit))
}

// FixedBackoff waits Interval before every retry.
type FixedBackoff struct {
	Interval time.Duration
}

func (f FixedBackoff) NextInterval(attempt int) time.Duration {
	if attempt < 1 {
		return 0
	}
	return f.Interval
}

// DefaultBackoffStrategy waits about 1s, 2s, 4s between webhook attempts.
func DefaultBackoffStrategy() BackoffStrategy {
	return ExponentialBackoff{InitialInterval: time.Second, MaxInterval: 30 * time.Second, JitterFactor: 0.1}
}

func cmpOr(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}
