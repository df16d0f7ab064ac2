package retrypolicy

import (
	"math"
	"math/rand"
	"time"

	"github.com/glensun810-ai/geodiag/pkg/types"
)

// Policy decides whether a failed task attempt is retried and how long to
// wait before the next attempt. Attempt numbers are 1-based and count the
// initial call, so MaxAttempts=3 means one call plus at most two retries.
type Policy interface {
	ShouldRetry(attempt int, err error) bool
	NextDelay(attempt int) time.Duration
	MaxAttempts() int
}

// ExponentialBackoff doubles the delay per attempt, caps it at MaxDelay and
// applies jitter in [0.5, 1.0) of the computed delay to avoid synchronized
// retry bursts against a rate-limited platform.
type ExponentialBackoff struct {
	Attempts  int
	BaseDelay time.Duration
	MaxDelay  time.Duration
	Jitter    bool
}

// NewExponentialBackoff returns the default policy: 3 attempts, 1s base,
// 30s cap, jitter on.
func NewExponentialBackoff() *ExponentialBackoff {
	return &ExponentialBackoff{
		Attempts:  3,
		BaseDelay: time.Second,
		MaxDelay:  30 * time.Second,
		Jitter:    true,
	}
}

func (p *ExponentialBackoff) MaxAttempts() int {
	if p.Attempts <= 0 {
		return 1
	}
	return p.Attempts
}

// ShouldRetry reports whether the attempt's error is worth retrying and the
// attempt budget is not yet spent. Classification comes from the error kind;
// auth, quota and validation failures never retry.
func (p *ExponentialBackoff) ShouldRetry(attempt int, err error) bool {
	if attempt >= p.MaxAttempts() {
		return false
	}
	return types.KindOf(err).Retryable()
}

// NextDelay returns the backoff before attempt+1. attempt is the attempt
// that just failed, so the first retry waits roughly BaseDelay.
func (p *ExponentialBackoff) NextDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := float64(p.BaseDelay) * math.Pow(2, float64(attempt-1))
	if max := float64(p.MaxDelay); delay > max {
		delay = max
	}
	if p.Jitter {
		delay *= 0.5 + rand.Float64()*0.5
	}
	return time.Duration(delay)
}
