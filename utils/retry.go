package utils

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// Retry runs op with exponential backoff until it succeeds, maxElapsed passes
// or ctx is cancelled. Each failed attempt is logged as a warning.
func Retry(ctx context.Context, logger *zap.Logger, what string, maxElapsed time.Duration, op func() error) error {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = 500 * time.Millisecond
	exp.MaxInterval = 5 * time.Second
	exp.MaxElapsedTime = maxElapsed

	attempt := 0
	return backoff.RetryNotify(op, backoff.WithContext(exp, ctx), func(err error, wait time.Duration) {
		attempt++
		logger.Warn("connection attempt failed",
			zap.String("target", what),
			zap.Int("attempt", attempt),
			zap.Duration("retry_in", wait),
			zap.Error(err),
		)
	})
}
