// Package retry bounds the status polling loops used while a platform
// processes uploaded media.
package retry

import (
	"context"
	"errors"
	"time"
)

// ErrExhausted is returned by Poll when the attempt budget runs out before
// the check reports completion.
var ErrExhausted = errors.New("poll attempts exhausted")

type Options struct {
	MaxAttempts int
	Interval    time.Duration
	// MaxInterval caps intervals suggested by the check itself. Zero means no cap.
	MaxInterval time.Duration
}

// Check inspects the remote state once. It returns done=true when polling
// should stop. A positive next overrides the default interval before the
// following attempt (platform-supplied backoff). A non-nil error stops
// polling immediately.
type Check func(ctx context.Context, attempt int) (done bool, next time.Duration, err error)

// Poll runs check up to MaxAttempts times, sleeping between attempts.
// The first attempt runs immediately.
func Poll(ctx context.Context, opts Options, check Check) error {
	attempts := opts.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var wait time.Duration
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			if err := sleep(ctx, wait); err != nil {
				return err
			}
		}

		done, next, err := check(ctx, attempt)
		if err != nil {
			return err
		}
		if done {
			return nil
		}

		wait = opts.Interval
		if next > 0 {
			wait = next
		}
		if opts.MaxInterval > 0 && wait > opts.MaxInterval {
			wait = opts.MaxInterval
		}
	}
	return ErrExhausted
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
