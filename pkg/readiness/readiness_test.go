package readiness

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedChecker struct {
	results []error
	calls   int
}

func (s *scriptedChecker) Health(_ context.Context) error {
	i := s.calls
	s.calls++
	if i < len(s.results) {
		return s.results[i]
	}
	return s.results[len(s.results)-1]
}

type recordingSleep struct {
	delays []time.Duration
}

func (r *recordingSleep) sleep(_ context.Context, d time.Duration) error {
	r.delays = append(r.delays, d)
	return nil
}

func TestProbeSucceedsAfterTwoFailures(t *testing.T) {
	checker := &scriptedChecker{results: []error{errors.New("refused"), errors.New("503"), nil}}
	rec := &recordingSleep{}
	p := NewProber(checker, DefaultRetryPolicy(), WithSleep(rec.sleep))

	require.NoError(t, p.Probe(context.Background()))
	assert.Equal(t, 3, checker.calls)
	assert.Equal(t, []time.Duration{time.Second, time.Second}, rec.delays)
}

func TestProbeReadyOnFirstAttempt(t *testing.T) {
	checker := &scriptedChecker{results: []error{nil}}
	rec := &recordingSleep{}
	p := NewProber(checker, DefaultRetryPolicy(), WithSleep(rec.sleep))

	require.NoError(t, p.Probe(context.Background()))
	assert.Equal(t, 1, checker.calls)
	assert.Empty(t, rec.delays)
}

func TestProbeExhaustsAttempts(t *testing.T) {
	last := errors.New("connection refused")
	checker := &scriptedChecker{results: []error{errors.New("first"), errors.New("second"), last}}
	rec := &recordingSleep{}
	p := NewProber(checker, RetryPolicy{MaxAttempts: 3, Delay: 250 * time.Millisecond}, WithSleep(rec.sleep))

	err := p.Probe(context.Background())
	require.Error(t, err)

	var connErr *ConnectivityError
	require.True(t, errors.As(err, &connErr))
	assert.Equal(t, 3, connErr.Attempts)
	assert.ErrorIs(t, err, last)
	assert.Equal(t, 3, checker.calls)
	assert.Equal(t, []time.Duration{250 * time.Millisecond, 250 * time.Millisecond}, rec.delays)
	assert.Contains(t, err.Error(), "after 3 attempt(s)")
}

func TestProbeTimedOutAttemptIsRetried(t *testing.T) {
	var calls atomic.Int32
	checker := CheckerFunc(func(ctx context.Context) error {
		if calls.Add(1) == 1 {
			<-ctx.Done()
			return ctx.Err()
		}
		return nil
	})
	p := NewProber(checker, RetryPolicy{MaxAttempts: 3, Delay: time.Millisecond, PerAttemptTimeout: 20 * time.Millisecond})

	require.NoError(t, p.Probe(context.Background()))
	assert.EqualValues(t, 2, calls.Load())
}

func TestProbeStopsWhenContextCancelled(t *testing.T) {
	checker := &scriptedChecker{results: []error{errors.New("down")}}
	ctx, cancel := context.WithCancel(context.Background())
	p := NewProber(checker, DefaultRetryPolicy(), WithSleep(func(context.Context, time.Duration) error {
		cancel()
		return context.Canceled
	}))

	err := p.Probe(ctx)
	var connErr *ConnectivityError
	require.True(t, errors.As(err, &connErr))
	assert.Equal(t, 1, connErr.Attempts)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, checker.calls)
}

func TestProbeWithoutChecker(t *testing.T) {
	p := NewProber(nil, DefaultRetryPolicy())
	var connErr *ConnectivityError
	require.True(t, errors.As(p.Probe(context.Background()), &connErr))
}

func TestRetryPolicyDefaults(t *testing.T) {
	p := NewProber(&scriptedChecker{results: []error{nil}}, RetryPolicy{})
	assert.Equal(t, DefaultRetryPolicy(), p.Policy())

	p = NewProber(&scriptedChecker{results: []error{nil}}, RetryPolicy{MaxAttempts: 5, Delay: 0, PerAttemptTimeout: time.Second})
	assert.Equal(t, RetryPolicy{MaxAttempts: 5, Delay: 0, PerAttemptTimeout: time.Second}, p.Policy())
}

func TestSleepContext(t *testing.T) {
	require.NoError(t, sleepContext(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, sleepContext(ctx, time.Hour), context.Canceled)
}
