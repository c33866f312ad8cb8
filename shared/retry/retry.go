package retry

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"
)

// Options controls the retry schedule. The zero value is usable: 3 retries,
// 1s initial delay, doubling each attempt.
type Options struct {
	MaxRetries int           // additional attempts after the first call
	Delay      time.Duration // delay before the first retry
	Backoff    float64       // multiplier applied per attempt
	Logger     *slog.Logger  // optional; retries are logged at warn level
}

func (o Options) withDefaults() Options {
	if o.MaxRetries <= 0 {
		o.MaxRetries = 3
	}
	if o.Delay <= 0 {
		o.Delay = time.Second
	}
	if o.Backoff <= 0 {
		o.Backoff = 2.0
	}
	return o
}

// Do calls fn, retrying transient failures with exponential backoff:
// delay * backoff^attempt between attempts, up to MaxRetries additional
// attempts. The last error is returned once attempts are exhausted. Used
// inside processors to smooth over flaky outbound calls; orthogonal to the
// job-level retry applied by the job store.
func Do(ctx context.Context, opts Options, fn func() error) error {
	opts = opts.withDefaults()

	var lastErr error
	for attempt := 0; attempt <= opts.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return fmt.Errorf("%w (canceled: %v)", lastErr, err)
			}
			return err
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		if attempt < opts.MaxRetries {
			delay := time.Duration(float64(opts.Delay) * math.Pow(opts.Backoff, float64(attempt)))
			if opts.Logger != nil {
				opts.Logger.Warn("Retrying after transient failure",
					slog.Int("attempt", attempt+1),
					slog.Int("max_retries", opts.MaxRetries),
					slog.Duration("delay", delay),
					slog.String("error", lastErr.Error()),
				)
			}

			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return fmt.Errorf("%w (canceled: %v)", lastErr, ctx.Err())
			case <-timer.C:
			}
		}
	}

	return lastErr
}

// DoValue is Do for calls that produce a value.
func DoValue[T any](ctx context.Context, opts Options, fn func() (T, error)) (T, error) {
	var result T
	err := Do(ctx, opts, func() error {
		var callErr error
		result, callErr = fn()
		return callErr
	})
	return result, err
}
