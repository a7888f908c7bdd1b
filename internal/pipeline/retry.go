// SPDX-License-Identifier: MIT

package pipeline

import (
	"context"
	"time"

	"github.com/vidforge/pipeline/internal/log"
)

// RetryPolicy bounds in-job retries for transient failures.
type RetryPolicy struct {
	MaxRetries int           // retries after the first attempt
	Delay      time.Duration // base delay, doubled per attempt
}

// Sleeper abstracts the backoff wait for tests.
type Sleeper func(ctx context.Context, d time.Duration) error

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Retry runs fn up to 1+MaxRetries times, backing off between attempts.
// Non-retryable errors abort immediately. The last error is returned when the
// budget is exhausted.
func (p RetryPolicy) Retry(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	return p.retry(ctx, op, fn, sleepCtx)
}

// RetryWith is Retry with a caller-supplied sleeper. A nil sleeper uses the
// real clock.
func (p RetryPolicy) RetryWith(ctx context.Context, op string, fn func(ctx context.Context) error, sleep Sleeper) error {
	if sleep == nil {
		sleep = sleepCtx
	}
	return p.retry(ctx, op, fn, sleep)
}

func (p RetryPolicy) retry(ctx context.Context, op string, fn func(ctx context.Context) error, sleep Sleeper) error {
	logger := log.WithComponentFromContext(ctx, "retry")
	delay := p.Delay
	var err error
	for attempt := 0; ; attempt++ {
		err = fn(ctx)
		if err == nil {
			return nil
		}
		if !IsRetryable(err) || attempt >= p.MaxRetries {
			return err
		}
		logger.Warn().
			Err(err).
			Str("event", "retry.backoff").
			Str("op", op).
			Int("attempt", attempt+1).
			Int("max_retries", p.MaxRetries).
			Dur("delay", delay).
			Msg("transient failure, retrying")
		if serr := sleep(ctx, delay); serr != nil {
			return err
		}
		delay *= 2
	}
}
