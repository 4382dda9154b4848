// Package retrier wraps a channel send with bounded exponential-backoff
// retries. A send can mark its error as fatal to stop the loop early,
// which keeps non-retriable failures (bad destination phone, rejected
// address) from burning the remaining attempts.
package retrier

import (
	"context"
	"errors"
	"time"
)

// Strategy configures the retry loop.
type Strategy struct {
	Attempts int           `mapstructure:"attempts"`
	Delay    time.Duration `mapstructure:"delay"`
	Backoff  float64       `mapstructure:"backoff"`
}

// DefaultStrategy matches the delivery pipeline defaults: three attempts
// with 2s, then 4s between them.
func DefaultStrategy() Strategy {
	return Strategy{Attempts: 3, Delay: 2 * time.Second, Backoff: 2}
}

type fatalError struct {
	err error
}

func (f *fatalError) Error() string { return f.err.Error() }
func (f *fatalError) Unwrap() error { return f.err }

// Fatal marks err as non-retriable. Do returns it immediately without
// further attempts.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return &fatalError{err: err}
}

// IsFatal reports whether err was marked with Fatal.
func IsFatal(err error) bool {
	var f *fatalError
	return errors.As(err, &f)
}

// Do runs fn until it succeeds, the attempts are exhausted, a fatal error
// is returned, or ctx is cancelled. Between attempts it sleeps Delay,
// multiplying by Backoff each time.
func Do(ctx context.Context, strategy Strategy, fn func() error) error {
	attempts := strategy.Attempts
	if attempts < 1 {
		attempts = 1
	}
	backoff := strategy.Backoff
	if backoff <= 0 {
		backoff = 2
	}

	delay := strategy.Delay
	var err error

	for attempt := 1; attempt <= attempts; attempt++ {
		if err = ctx.Err(); err != nil {
			return err
		}

		if err = fn(); err == nil {
			return nil
		}
		if IsFatal(err) {
			return err
		}
		if attempt == attempts {
			break
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		delay = time.Duration(float64(delay) * backoff)
	}

	return err
}
