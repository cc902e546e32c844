package arrayfile

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/roach88/molstore/internal/fault"
)

// Unlimited makes WaitAvailable retry until the context is cancelled.
const Unlimited = -1

// Probe configures WaitAvailable.
type Probe struct {
	// Timeout is the delay between two attempts.
	Timeout time.Duration

	// MaxAttempts bounds the number of attempts; Unlimited removes the bound.
	MaxAttempts int
}

// DefaultProbe waits 5 seconds between at most 10 attempts.
var DefaultProbe = Probe{Timeout: 5 * time.Second, MaxAttempts: 10}

// Validate rejects non-positive attempt counts other than Unlimited.
func (p Probe) Validate() error {
	if p.MaxAttempts <= 0 && p.MaxAttempts != Unlimited {
		return fmt.Errorf("max attempts must be larger than 0; observed value: %d", p.MaxAttempts)
	}
	if p.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative; observed value: %s", p.Timeout)
	}
	return nil
}

// WaitAvailable returns once the file at path can be locked exclusively.
//
// Each failed attempt logs a warning and waits p.Timeout before the next.
// The lock is advisory: a writer that skips this check is not stopped.
func WaitAvailable(ctx context.Context, path string, p Probe) error {
	if err := p.Validate(); err != nil {
		return err
	}

	limiter := rate.NewLimiter(rate.Every(p.Timeout), 1)
	if p.Timeout == 0 {
		limiter = rate.NewLimiter(rate.Inf, 1)
	}

	var lastErr error
	attempt := 0
	for p.MaxAttempts == Unlimited || attempt < p.MaxAttempts {
		if err := limiter.Wait(ctx); err != nil {
			return fmt.Errorf("wait for %s: %w", path, err)
		}
		attempt++

		lock, err := lockFile(LockPath(path), true)
		if err == nil {
			return lock.Close()
		}
		lastErr = err
		slog.Warn("array file is currently unavailable",
			"path", path,
			"attempt", attempt,
			"retry_in", p.Timeout,
			"error", err,
		)
	}
	return fault.Unavailable(path, attempt, lastErr)
}
