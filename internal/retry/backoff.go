// Package retry provides bounded exponential backoff for outbound
// dial attempts.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"
)

// PermanentError wraps an error to signal that retrying will not help.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent marks err as non-retryable.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsPermanent reports whether err has been marked as permanent.
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}

// Backoff retries an operation a bounded number of times with a
// growing pause in between.
type Backoff struct {
	// Attempts is the total number of tries including the first.
	// Values below 1 mean a single try.
	Attempts int
	// Delay is the pause before the second try.
	Delay time.Duration
	// MaxDelay caps the pause (0 = no cap).
	MaxDelay time.Duration
	// Multiplier grows the pause after every failed try (default 2).
	Multiplier float64
	// Jitter randomises each pause by ±25%.
	Jitter bool
	// OnRetry, if set, is called before every pause.
	OnRetry func(attempt int, err error, wait time.Duration)
}

// ForDial returns the backoff used for outbound chat dials.
func ForDial(attempts int, delay time.Duration) *Backoff {
	return &Backoff{
		Attempts:   attempts,
		Delay:      delay,
		MaxDelay:   8 * delay,
		Multiplier: 2,
		Jitter:     true,
	}
}

// Do runs fn until it succeeds, returns a permanent error, the
// attempts run out, or ctx is done.  attempt is 1-based.
func (b *Backoff) Do(ctx context.Context, fn func(ctx context.Context, attempt int) error) error {
	attempts := b.Attempts
	if attempts < 1 {
		attempts = 1
	}
	mult := b.Multiplier
	if mult <= 0 {
		mult = 2
	}
	delay := b.Delay

	for attempt := 1; ; attempt++ {
		err := fn(ctx, attempt)
		if err == nil {
			return nil
		}
		var pe *PermanentError
		if errors.As(err, &pe) {
			return pe.Err
		}
		if ctx.Err() != nil {
			return err
		}
		if attempt >= attempts {
			if attempts == 1 {
				return err
			}
			return fmt.Errorf("gave up after %d attempts: %w", attempts, err)
		}

		wait := delay
		if b.Jitter {
			wait = jitter(wait)
		}
		if b.OnRetry != nil {
			b.OnRetry(attempt, err, wait)
		}

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return fmt.Errorf("retry cancelled: %w", ctx.Err())
		case <-t.C:
		}

		delay = time.Duration(float64(delay) * mult)
		if b.MaxDelay > 0 && delay > b.MaxDelay {
			delay = b.MaxDelay
		}
	}
}

// jitter adds ±25% randomisation to d.
func jitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	quarter := float64(d) * 0.25
	return time.Duration(float64(d) + rand.Float64()*2*quarter - quarter)
}
