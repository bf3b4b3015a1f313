// Package retry runs an operation a bounded number of times on an rclone
// pacer with linear backoff.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/rclone/rclone/lib/pacer"
)

type permanentError struct{ err error }

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// linear sleeps step longer after every consecutive failure and resets on
// success.
type linear struct{ step time.Duration }

func (l linear) Calculate(state pacer.State) time.Duration {
	return time.Duration(state.ConsecutiveRetries) * l.step
}

// Do calls fn up to attempts times, pausing a further delay after each
// consecutive failure. It returns nil on the first success, the unwrapped
// error of a Permanent failure, ctx's error once ctx is done, or the last
// error.
func Do(ctx context.Context, attempts int, delay time.Duration, fn func(attempt int) error) error {
	if attempts < 1 {
		attempts = 1
	}
	p := pacer.New(pacer.RetriesOption(attempts), pacer.CalculatorOption(linear{step: delay}))

	attempt := 0
	return p.Call(func() (bool, error) {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		attempt++
		err := fn(attempt)
		if err == nil {
			return false, nil
		}
		var perm *permanentError
		if errors.As(err, &perm) {
			return false, perm.err
		}
		return true, err
	})
}
