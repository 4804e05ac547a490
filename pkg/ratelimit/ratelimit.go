package ratelimit

import (
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/telekom/bulkmail/pkg/apiresponses"
	"github.com/telekom/bulkmail/pkg/metrics"
)

// RejectMessage is returned to clients that exceeded their budget.
const RejectMessage = "Rate limit exceeded, please try again later"

const (
	defaultSweepInterval = time.Minute
	defaultIdleTTL       = 5 * time.Minute
)

// Config is a token bucket per client. Buckets idle for MaxAge are dropped
// every CleanupInterval.
type Config struct {
	Rate            float64       `yaml:"rate"`
	Burst           int           `yaml:"burst"`
	CleanupInterval time.Duration `yaml:"cleanupInterval"`
	MaxAge          time.Duration `yaml:"maxAge"`
}

// DefaultAPIConfig covers cheap endpoints such as health: 20 req/s, burst 50.
func DefaultAPIConfig() Config {
	return Config{Rate: 20, Burst: 50, CleanupInterval: time.Minute, MaxAge: 5 * time.Minute}
}

// DefaultSendConfig covers batch sends. Every send opens an SMTP session, so
// a client gets one batch every two seconds with a burst of 3.
func DefaultSendConfig() Config {
	return Config{Rate: 0.5, Burst: 3, CleanupInterval: time.Minute, MaxAge: 10 * time.Minute}
}

type bucket struct {
	tokens   *rate.Limiter
	lastSeen time.Time
}

// Limiter keeps one bucket per client key.
type Limiter struct {
	cfg Config
	now func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket

	stop     chan struct{}
	stopOnce sync.Once
}

// New starts a Limiter and its sweeper. Call Stop to end the sweeper.
func New(cfg Config) *Limiter {
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = defaultSweepInterval
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = defaultIdleTTL
	}
	l := &Limiter{
		cfg:     cfg,
		now:     time.Now,
		buckets: map[string]*bucket{},
		stop:    make(chan struct{}),
	}
	go l.sweepLoop()
	return l
}

// Allow takes a token for key.
func (l *Limiter) Allow(key string) bool {
	ok, _ := l.take(key)
	return ok
}

// take returns false and the wait until the next token when key is over budget.
func (l *Limiter) take(key string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b := l.buckets[key]
	if b == nil {
		b = &bucket{tokens: rate.NewLimiter(rate.Limit(l.cfg.Rate), l.cfg.Burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now

	r := b.tokens.ReserveN(now, 1)
	if !r.OK() {
		return false, 0
	}
	if wait := r.DelayFrom(now); wait > 0 {
		r.CancelAt(now)
		return false, wait
	}
	return true, 0
}

// Middleware limits by client IP and aborts with 429 and Retry-After.
func (l *Limiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if ok, wait := l.take(c.ClientIP()); !ok {
			metrics.RateLimited.WithLabelValues(c.FullPath()).Inc()
			apiresponses.RespondTooManyRequests(c, RejectMessage, wait)
			return
		}
		c.Next()
	}
}

// Stop ends the sweeper. Repeated calls are no-ops.
func (l *Limiter) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
}

func (l *Limiter) sweepLoop() {
	t := time.NewTicker(l.cfg.CleanupInterval)
	defer t.Stop()
	for {
		select {
		case <-l.stop:
			return
		case <-t.C:
			l.sweep()
		}
	}
}

func (l *Limiter) sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := l.now().Add(-l.cfg.MaxAge)
	for key, b := range l.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(l.buckets, key)
		}
	}
}

// Len returns the number of tracked clients.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// Config returns the effective configuration.
func (l *Limiter) Config() Config {
	return l.cfg
}
