package rivulex

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	defaultRetrierAttempts = 3
	defaultRetrierDelay    = 50 * time.Millisecond
)

// Retrier re-invokes an idempotent log operation a fixed number of
// times with a constant delay between attempts, propagating the last
// error once the budget is exhausted. It hardens acknowledgement and
// the dead-letter append pipeline against transient Redis errors.
type Retrier struct {
	maxAttempts uint64
	delay       time.Duration
}

// NewRetrier creates a Retrier. Non-positive arguments fall back to
// 3 attempts and a 50 ms delay.
func NewRetrier(maxAttempts int, delay time.Duration) *Retrier {
	if maxAttempts <= 0 {
		maxAttempts = defaultRetrierAttempts
	}
	if delay <= 0 {
		delay = defaultRetrierDelay
	}
	return &Retrier{maxAttempts: uint64(maxAttempts), delay: delay}
}

// Do runs op until it succeeds or the attempt budget runs out.
func (r *Retrier) Do(ctx context.Context, op func() error) error {
	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(r.delay), r.maxAttempts-1),
		ctx,
	)
	return backoff.Retry(op, b)
}
