package scanner

import (
	"context"
	"errors"
	"time"

	"github.com/nokodsec/pbanalyzer/internal/powerbi"
)

const (
	defaultMaxAttempts    = 4
	defaultInitialBackoff = time.Second
)

type retryConfig struct {
	maxAttempts    int
	initialBackoff time.Duration
	sleep          func(context.Context, time.Duration) error
}

func defaultRetryConfig() retryConfig {
	return retryConfig{
		maxAttempts:    defaultMaxAttempts,
		initialBackoff: defaultInitialBackoff,
		sleep:          sleepWithContext,
	}
}

func (cfg retryConfig) normalized() retryConfig {
	if cfg.maxAttempts <= 0 {
		cfg.maxAttempts = defaultMaxAttempts
	}
	if cfg.initialBackoff <= 0 {
		cfg.initialBackoff = defaultInitialBackoff
	}
	if cfg.sleep == nil {
		cfg.sleep = sleepWithContext
	}
	return cfg
}

// executeWithRetry runs fn, retrying only when the service reports rate
// limiting. The server's Retry-After hint wins over exponential backoff when
// present. Any other failure surfaces immediately.
func executeWithRetry(ctx context.Context, cfg retryConfig, fn func() error) error {
	cfg = cfg.normalized()

	var lastErr error
	for attempt := 1; attempt <= cfg.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		var rateErr *powerbi.RateLimitError
		if !errors.As(err, &rateErr) || attempt == cfg.maxAttempts {
			return err
		}

		wait := rateErr.RetryAfter
		if wait <= 0 {
			wait = cfg.initialBackoff << (attempt - 1)
		}
		if err := cfg.sleep(ctx, wait); err != nil {
			return err
		}
	}

	return lastErr
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
