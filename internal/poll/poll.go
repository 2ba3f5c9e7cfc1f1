// Package poll provides a bounded wait-for-condition primitive.
package poll

import (
	"context"
	stderrors "errors"
	"time"
)

// ErrTimeout is returned when the condition never held within the timeout.
var ErrTimeout = stderrors.New("poll: timed out")

// Condition reports whether the awaited state has been reached.
type Condition func(ctx context.Context) (bool, error)

// Until evaluates cond immediately and then every interval until it returns
// true, returns an error, the timeout elapses (ErrTimeout), or ctx ends.
func Until(ctx context.Context, interval, timeout time.Duration, cond Condition) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		ok, err := cond(ctx)
		if err != nil {
			if ctx.Err() == context.DeadlineExceeded {
				return ErrTimeout
			}
			return err
		}
		if ok {
			return nil
		}

		select {
		case <-ctx.Done():
			if ctx.Err() == context.DeadlineExceeded {
				return ErrTimeout
			}
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
