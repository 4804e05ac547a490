/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package readiness

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/telekom/bulkmail/pkg/metrics"
)

// Checker performs a single health request. A nil error means healthy.
type Checker interface {
	Health(ctx context.Context) error
}

// CheckerFunc adapts a function to Checker.
type CheckerFunc func(ctx context.Context) error

func (f CheckerFunc) Health(ctx context.Context) error {
	return f(ctx)
}

// RetryPolicy bounds the probe loop. The delay between attempts is constant.
type RetryPolicy struct {
	// MaxAttempts is the total number of health requests, including the first one.
	MaxAttempts int
	// Delay is the wait between a failed attempt and the next one.
	Delay time.Duration
	// PerAttemptTimeout bounds each individual health request.
	PerAttemptTimeout time.Duration
}

// DefaultRetryPolicy returns 3 attempts, 1s apart, 5s each.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:       3,
		Delay:             time.Second,
		PerAttemptTimeout: 5 * time.Second,
	}
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	def := DefaultRetryPolicy()
	if p == (RetryPolicy{}) {
		return def
	}
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = def.MaxAttempts
	}
	if p.Delay < 0 {
		p.Delay = 0
	}
	if p.PerAttemptTimeout <= 0 {
		p.PerAttemptTimeout = def.PerAttemptTimeout
	}
	return p
}

// ConnectivityError is returned once every attempt has failed.
type ConnectivityError struct {
	Attempts int
	Cause    error
}

func (e *ConnectivityError) Error() string {
	return fmt.Sprintf("backend not ready after %d attempt(s): %v", e.Attempts, e.Cause)
}

func (e *ConnectivityError) Unwrap() error {
	return e.Cause
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Prober confirms backend availability before a dispatch is attempted.
type Prober struct {
	checker Checker
	policy  RetryPolicy
	sleep   SleepFunc
	log     *zap.SugaredLogger
}

// Option configures a Prober.
type Option func(*Prober)

// WithSleep replaces the delay implementation, mainly for tests.
func WithSleep(fn SleepFunc) Option {
	return func(p *Prober) {
		if fn != nil {
			p.sleep = fn
		}
	}
}

// WithLogger sets the logger used for per-attempt diagnostics.
func WithLogger(log *zap.SugaredLogger) Option {
	return func(p *Prober) {
		if log != nil {
			p.log = log
		}
	}
}

// NewProber creates a Prober. A zero policy means DefaultRetryPolicy; otherwise
// non-positive MaxAttempts and PerAttemptTimeout fall back to their defaults.
func NewProber(checker Checker, policy RetryPolicy, opts ...Option) *Prober {
	p := &Prober{
		checker: checker,
		policy:  policy.withDefaults(),
		sleep:   sleepContext,
		log:     zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Policy returns the effective retry policy.
func (p *Prober) Policy() RetryPolicy {
	return p.policy
}

// Probe returns nil as soon as one attempt reports healthy. Each attempt is
// bounded by PerAttemptTimeout; a timed-out attempt counts as a failure and
// the loop continues. Cancelling ctx stops the loop.
func (p *Prober) Probe(ctx context.Context) error {
	if p.checker == nil {
		return &ConnectivityError{Attempts: 0, Cause: errors.New("no health checker configured")}
	}

	var lastErr error
	for attempt := 1; attempt <= p.policy.MaxAttempts; attempt++ {
		lastErr = p.attempt(ctx)
		if lastErr == nil {
			metrics.ProbeAttempts.WithLabelValues("healthy").Inc()
			p.log.Debugw("Backend ready", "attempt", attempt)
			return nil
		}
		metrics.ProbeAttempts.WithLabelValues("unhealthy").Inc()

		if attempt == p.policy.MaxAttempts {
			p.log.Warnw("Health check failed, attempts exhausted",
				"attempt", attempt,
				"maxAttempts", p.policy.MaxAttempts,
				"error", lastErr)
			break
		}

		p.log.Infow("Health check failed, retrying",
			"attempt", attempt,
			"maxAttempts", p.policy.MaxAttempts,
			"retryIn", p.policy.Delay.String(),
			"error", lastErr)

		if err := p.sleep(ctx, p.policy.Delay); err != nil {
			return &ConnectivityError{Attempts: attempt, Cause: err}
		}
	}

	return &ConnectivityError{Attempts: p.policy.MaxAttempts, Cause: lastErr}
}

func (p *Prober) attempt(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	attemptCtx, cancel := context.WithTimeout(ctx, p.policy.PerAttemptTimeout)
	defer cancel()
	return p.checker.Health(attemptCtx)
}
