package retry

import (
	"context"
	"fmt"
	"math/rand"
	"time"
)

// Policy holds the parameters for bounded exponential-backoff retries.
// The zero value is not usable; build one with Default() or fill every
// field.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Multiplier  float64
	// JitterFrac widens each delay by a random factor in
	// [1, 1+JitterFrac).
	JitterFrac float64

	// Sleep is swappable for tests; nil means a context-aware sleep.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Default mirrors the fetch defaults: 3 attempts, 1.2s base delay,
// 1.5-2x growth capped at 2.4s.
func Default() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   1200 * time.Millisecond,
		MaxDelay:    2400 * time.Millisecond,
		Multiplier:  1.5,
		JitterFrac:  0.5,
	}
}

// Do runs fn until it succeeds, the attempts are exhausted, or the
// context is cancelled. The first attempt runs immediately; delays apply
// between attempts.
func (p Policy) Do(ctx context.Context, name string, fn func() error) error {
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepCtx
	}

	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	delay := p.BaseDelay
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if attempt == attempts {
			break
		}
		if err := sleep(ctx, delay); err != nil {
			return err
		}
		delay = p.next(delay)
	}
	return fmt.Errorf("%s failed after %d attempts: %w", name, attempts, lastErr)
}

func (p Policy) next(d time.Duration) time.Duration {
	mult := p.Multiplier
	if mult <= 1 {
		mult = 2
	}
	mult += rand.Float64() * p.JitterFrac
	d = time.Duration(float64(d) * mult)
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}

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
