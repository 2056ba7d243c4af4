package rivulex

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// IdleBackoff paces a polling loop. The current pause starts at min,
// doubles on each Increase and is capped at max; Reset snaps it back to
// min. The pending consumer uses it to idle when a claim scan comes up
// empty while staying reactive under load.
type IdleBackoff struct {
	min     time.Duration
	max     time.Duration
	exp     *backoff.ExponentialBackOff
	current time.Duration
}

// NewIdleBackoff creates an IdleBackoff over [min, max].
func NewIdleBackoff(min, max time.Duration) *IdleBackoff {
	if max < min {
		max = min
	}
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = min
	exp.MaxInterval = max
	exp.Multiplier = 2
	exp.RandomizationFactor = 0
	exp.MaxElapsedTime = 0

	b := &IdleBackoff{min: min, max: max, exp: exp}
	b.Reset()
	return b
}

// Reset snaps the pause back to min.
func (b *IdleBackoff) Reset() {
	b.exp.Reset()
	b.current = b.exp.NextBackOff()
}

// Increase doubles the pause, capped at max.
func (b *IdleBackoff) Increase() {
	next := b.exp.NextBackOff()
	if next == backoff.Stop || next > b.max {
		next = b.max
	}
	b.current = next
}

// Current returns the pause the next Wait will sleep.
func (b *IdleBackoff) Current() time.Duration {
	return b.current
}

// Wait sleeps the current pause, returning early with the context's
// error when cancelled.
func (b *IdleBackoff) Wait(ctx context.Context) error {
	timer := time.NewTimer(b.current)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
