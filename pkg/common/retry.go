package common

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff"

	"github.com/ahrav/streambatch/pkg/common/logger"
)

// RetryConfig controls the exponential backoff used while connecting to
// infrastructure during startup.
type RetryConfig struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxElapsedTime  time.Duration
}

// DefaultRetryConfig retries for up to five minutes starting at five second
// intervals, which covers brokers and databases that start alongside us.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		InitialInterval: 5 * time.Second,
		MaxInterval:     30 * time.Second,
		MaxElapsedTime:  5 * time.Minute,
	}
}

func (c RetryConfig) backOff(ctx context.Context) backoff.BackOff {
	expBackoff := backoff.NewExponentialBackOff()
	if c.InitialInterval > 0 {
		expBackoff.InitialInterval = c.InitialInterval
	}
	if c.MaxInterval > 0 {
		expBackoff.MaxInterval = c.MaxInterval
	}
	expBackoff.MaxElapsedTime = c.MaxElapsedTime
	expBackoff.Reset()

	return backoff.WithContext(expBackoff, ctx)
}

// ConnectWithRetry calls connect until it succeeds, the backoff gives up or
// ctx is done. name identifies the dependency in logs and errors.
func ConnectWithRetry[T any](
	ctx context.Context,
	log *logger.Logger,
	name string,
	cfg RetryConfig,
	connect func() (T, error),
) (T, error) {
	var conn T

	operation := func() error {
		var err error
		conn, err = connect()
		return err
	}

	notify := func(err error, wait time.Duration) {
		log.Warn(ctx, "Connection attempt failed, will retry",
			"dependency", name,
			"error", err,
			"retry_in", wait,
		)
	}

	if err := backoff.RetryNotify(operation, cfg.backOff(ctx), notify); err != nil {
		var zero T
		return zero, fmt.Errorf("failed to connect to %s after retries: %w", name, err)
	}

	return conn, nil
}
