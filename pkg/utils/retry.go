// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package utils

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"
)

// RetryConfig bounds Retry. MaxRetries counts calls after the first one; the
// wait before each grows by BackoffMultiplier up to MaxBackoff.
type RetryConfig struct {
	MaxRetries        int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
}

// DefaultRetryConfig is used for SMTP session setup.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:        2,
		InitialBackoff:    200 * time.Millisecond,
		MaxBackoff:        2 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// Backoff returns the wait before retry n, counting from zero. A multiplier
// below 1 keeps the wait constant.
func (c RetryConfig) Backoff(n int) time.Duration {
	mult := math.Max(c.BackoffMultiplier, 1)
	d := time.Duration(float64(c.InitialBackoff) * math.Pow(mult, float64(n)))
	if c.MaxBackoff > 0 && d > c.MaxBackoff {
		return c.MaxBackoff
	}
	return d
}

// Retry calls fn until it succeeds, retryable rejects its error, the retries
// run out or ctx ends. A nil retryable retries every error. The last error
// from fn is returned, or ctx.Err() when ctx ended during a wait.
func Retry(ctx context.Context, config RetryConfig, retryable func(error) bool, fn func() error) error {
	for n := 0; ; n++ {
		err := fn()
		if err == nil || n >= config.MaxRetries || (retryable != nil && !retryable(err)) {
			return err
		}

		wait := config.Backoff(n)
		zap.S().Debugw("Retrying after failure", "retry", n+1, "of", config.MaxRetries, "wait", wait, "error", err.Error())

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
