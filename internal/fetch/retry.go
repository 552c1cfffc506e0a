package fetch

import (
	"context"
	"log/slog"
	"time"

	"github.com/tankfinder/tankfinder/pkg/api"
)

// RetryConfig bounds the retry wrapper.
type RetryConfig struct {
	// MaxAttempts is the total number of fetch attempts, the first one
	// included. Values below 1 are treated as 1.
	MaxAttempts int
	// BaseDelay is the backoff before the second attempt; it doubles
	// for every further attempt.
	BaseDelay time.Duration
}

// Retrying wraps fetch with bounded exponential backoff. Only transient
// failures (Timeout, NoResponse, ServerError) are retried; invalid
// parameters and rejected credentials abort immediately. After the
// attempts are exhausted the last observed error is surfaced unchanged,
// so its classification survives for caller-side handling.
//
// The backoff delay is the only suspension point and honours ctx, so an
// abandoned search does not keep retrying in the background.
func Retrying(fetch FetchFunc, cfg RetryConfig, logger *slog.Logger) FetchFunc {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	return func(ctx context.Context, q api.Query) (*api.StationData, error) {
		var lastErr error
		for attempt := 1; attempt <= maxAttempts; attempt++ {
			data, err := fetch(ctx, q)
			if err == nil {
				return data, nil
			}
			if !api.IsRetryable(err) {
				return nil, err
			}
			lastErr = err

			if attempt == maxAttempts {
				break
			}

			delay := cfg.BaseDelay << (attempt - 1)
			logger.Debug("fetch failed, backing off",
				"attempt", attempt, "delay", delay, "error", err)

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}
		return nil, lastErr
	}
}
