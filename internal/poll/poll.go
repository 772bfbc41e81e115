// Package poll provides a bounded retry loop for conditions that only become
// true asynchronously, such as a cookie written by a background script.
package poll

import (
	"context"
	"errors"
	"fmt"
	"time"

	retry "github.com/avast/retry-go/v5"
)

// ErrTimeout is returned when a condition does not hold before the deadline.
var ErrTimeout = errors.New("timeout")

var errNotReady = errors.New("condition not met")

// DefaultInterval is used when Options.Interval is zero.
const DefaultInterval = 100 * time.Millisecond

// Options bounds a polling loop.
type Options struct {
	Interval time.Duration
	Timeout  time.Duration
	// Description names what is being waited for in timeout errors.
	Description string
	// Fatal reports whether a condition error should end polling at once.
	// Other errors are retried and the last one is kept for the timeout error.
	Fatal func(error) bool
}

// Until re-evaluates cond every Interval until it reports true, the Timeout
// elapses or ctx is cancelled. Errors from cond are retried unless
// opts.Fatal reports them as fatal.
func Until(ctx context.Context, opts Options, cond func(ctx context.Context) (bool, error)) error {
	_, err := Value(ctx, opts, func(ctx context.Context) (struct{}, bool, error) {
		ok, err := cond(ctx)
		return struct{}{}, ok, err
	})
	return err
}

// Value polls fn like Until and returns the value from the first call that
// reports ok.
func Value[T any](ctx context.Context, opts Options, fn func(ctx context.Context) (T, bool, error)) (T, error) {
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	if opts.Timeout <= 0 {
		var zero T
		return zero, fmt.Errorf("poll: timeout must be positive")
	}

	pollCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	var (
		result  T
		lastErr error
	)
	err := retry.New(
		retry.Attempts(attempts(opts.Timeout, interval)),
		retry.Delay(interval),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.Context(pollCtx),
	).Do(func() error {
		v, ok, err := fn(pollCtx)
		if err != nil {
			switch {
			case ctx.Err() != nil:
				return retry.Unrecoverable(ctx.Err())
			case opts.Fatal != nil && opts.Fatal(err):
				return retry.Unrecoverable(err)
			case pollCtx.Err() == nil:
				// A deadline hit mid-call is an ordinary timeout
				lastErr = err
			}
			return errNotReady
		}
		if !ok {
			return errNotReady
		}
		result = v
		return nil
	})
	if err == nil {
		return result, nil
	}

	var zero T
	if ctx.Err() != nil {
		return zero, ctx.Err()
	}
	if errors.Is(err, errNotReady) || pollCtx.Err() != nil {
		return zero, timeoutError(opts, lastErr)
	}
	return zero, err
}

func timeoutError(opts Options, lastErr error) error {
	what := opts.Description
	if what == "" {
		what = "condition"
	}
	if lastErr != nil {
		return fmt.Errorf("%w after %s waiting for %s: last error: %v", ErrTimeout, opts.Timeout, what, lastErr)
	}
	return fmt.Errorf("%w after %s waiting for %s", ErrTimeout, opts.Timeout, what)
}

// attempts is one more than the number of intervals that fit in the timeout,
// so the context deadline rather than the attempt budget normally ends the loop.
func attempts(timeout, interval time.Duration) uint {
	n := uint(timeout/interval) + 2
	return n
}
