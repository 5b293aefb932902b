package consumer

import (
	"context"
	"time"

	"github.com/juju/clock"

	"github.com/mycok/docsync/document"
)

// Retry defaults.
const (
	DefaultMaxAttempts = 3
	DefaultBackoff     = 5 * time.Second
)

// Floor for the wait between Persist attempts.
const minPersistBackoff = 100 * time.Millisecond

// RetryPolicy retries an operation a bounded number of times with a fixed
// backoff between attempts.
type RetryPolicy struct {
	// Total number of attempts, including the first one.
	MaxAttempts int

	// Wait between attempts. Zero or negative values disable the wait.
	Backoff time.Duration

	// Clock driving the backoff. Defaults to the wall clock.
	Clock clock.Clock
}

// Do calls fn until it succeeds, fails with a non-retryable error, the
// attempts run out or ctx is done. It returns the number of attempts made
// and the last error.
func (p RetryPolicy) Do(ctx context.Context, fn func(context.Context) error) (int, error) {
	maxAttempts := p.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	clk := p.Clock
	if clk == nil {
		clk = clock.WallClock
	}

	for attempt := 1; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return attempt, nil
		}

		if ctx.Err() != nil || attempt >= maxAttempts || !document.KindOf(err).Retryable() {
			return attempt, err
		}

		if p.Backoff <= 0 {
			continue
		}

		select {
		case <-ctx.Done():
			return attempt, err
		case <-clk.After(p.Backoff):
		}
	}
}

// Persist calls fn until it succeeds or ctx is done, waiting Backoff (at
// least minPersistBackoff) between attempts. Attempt limits and error kinds
// are ignored: it serves operations that must not be abandoned while the
// consumer is alive, such as acknowledging a message or parking it on a
// dead-letter topic. The returned error is non-nil only if ctx ended the
// loop.
func (p RetryPolicy) Persist(ctx context.Context, fn func(context.Context) error) (int, error) {
	clk := p.Clock
	if clk == nil {
		clk = clock.WallClock
	}

	backoff := p.Backoff
	if backoff < minPersistBackoff {
		backoff = minPersistBackoff
	}

	for attempt := 1; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return attempt, nil
		}

		if ctx.Err() != nil {
			return attempt, err
		}

		select {
		case <-ctx.Done():
			return attempt, err
		case <-clk.After(backoff):
		}
	}
}
