package crawler

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"
	"net"
	"time"
)

// BackoffRetryPolicy retries transient fetch failures with a linearly
// growing, jittered delay.
type BackoffRetryPolicy struct {
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
}

// NewBackoffRetryPolicy builds the default policy: three attempts, delays
// growing as baseDelay x attempt plus jitter.
func NewBackoffRetryPolicy() *BackoffRetryPolicy {
	return &BackoffRetryPolicy{
		maxAttempts: 3,
		baseDelay:   500 * time.Millisecond,
		maxDelay:    10 * time.Second,
	}
}

// ShouldRetry decides whether the error is retryable at this attempt count.
func (p *BackoffRetryPolicy) ShouldRetry(err error, attempt int) bool {
	if err == nil {
		return false
	}
	if attempt >= p.maxAttempts {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if fe, ok := AsFetchError(err); ok {
		return fe.Retryable()
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return true
}

// Backoff returns the wait duration before the next attempt.
func (p *BackoffRetryPolicy) Backoff(attempt int) time.Duration {
	delay := p.baseDelay * time.Duration(attempt+1)
	if delay > p.maxDelay {
		delay = p.maxDelay
	}
	return delay + randomJitter(p.baseDelay)
}

func randomJitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(limit)))
	if err != nil {
		return limit / 2
	}
	return time.Duration(n.Int64())
}
