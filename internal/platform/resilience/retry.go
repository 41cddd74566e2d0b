package resilience

import (
	"context"
	"time"
)

type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
	}
}

func NormalizeRetryConfig(cfg RetryConfig) RetryConfig {
	defaults := DefaultRetryConfig()
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = defaults.MaxAttempts
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = defaults.BaseDelay
	}
	return cfg
}

// Retry runs fn up to MaxAttempts times with linearly growing delay between
// attempts. fn reports whether its error is worth retrying; a non-retryable
// error or a cancelled context returns immediately.
func Retry(ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) (retryable bool, err error)) error {
	cfg = NormalizeRetryConfig(cfg)

	var lastErr error
	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		retryable, err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retryable || attempt == cfg.MaxAttempts-1 {
			break
		}

		backoff := time.Duration(attempt+1) * cfg.BaseDelay
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return lastErr
}
