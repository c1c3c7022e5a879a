package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/ceyewan/fabric/clog"
	"github.com/ceyewan/fabric/metrics"
	"github.com/ceyewan/fabric/xerrors"
)

const (
	// MetricAllowedTotal 放行的请求数
	MetricAllowedTotal = "fabric_ratelimit_allowed_total"
	// MetricDeniedTotal 被拒绝的请求数
	MetricDeniedTotal = "fabric_ratelimit_denied_total"
)

type bucket struct {
	limiter  *rate.Limiter
	lastSeen atomic.Int64 // UnixNano
}

func (b *bucket) touch(now time.Time) {
	b.lastSeen.Store(now.UnixNano())
}

type standaloneLimiter struct {
	cfg     *Config
	logger  clog.Logger
	allowed metrics.Counter
	denied  metrics.Counter

	buckets   sync.Map // key:rate:burst -> *bucket
	stopCh    chan struct{}
	closeOnce sync.Once
}

func newStandalone(cfg *Config, o *options) (*standaloneLimiter, error) {
	l := &standaloneLimiter{
		cfg:    cfg,
		logger: o.logger,
		stopCh: make(chan struct{}),
	}
	var err error
	if l.allowed, err = o.meter.Counter(MetricAllowedTotal, "Requests allowed by the rate limiter"); err != nil {
		return nil, err
	}
	if l.denied, err = o.meter.Counter(MetricDeniedTotal, "Requests denied by the rate limiter"); err != nil {
		return nil, err
	}
	go l.cleanup()
	return l, nil
}

func (l *standaloneLimiter) Allow(ctx context.Context, key string, limit Limit) (bool, error) {
	return l.AllowN(ctx, key, limit, 1)
}

func (l *standaloneLimiter) AllowN(ctx context.Context, key string, limit Limit, n int) (bool, error) {
	if err := check(key, limit); err != nil {
		return false, err
	}
	if n <= 0 {
		return false, xerrors.Wrap(xerrors.ErrInvalidInput, "ratelimit: n must be positive")
	}

	now := time.Now()
	b := l.get(key, limit, now)
	ok := b.limiter.AllowN(now, n)
	b.touch(now)

	if ok {
		l.allowed.Inc(ctx)
	} else {
		l.denied.Inc(ctx)
		l.logger.Debug("rate limited", clog.String("key", key), clog.Float64("rate", limit.Rate), clog.Int("burst", limit.Burst))
	}
	return ok, nil
}

func (l *standaloneLimiter) Wait(ctx context.Context, key string, limit Limit) error {
	if err := check(key, limit); err != nil {
		return err
	}
	b := l.get(key, limit, time.Now())
	err := b.limiter.Wait(ctx)
	b.touch(time.Now())
	return err
}

func check(key string, limit Limit) error {
	if key == "" {
		return ErrKeyEmpty
	}
	if !limit.Valid() {
		return ErrInvalidLimit
	}
	return nil
}

// get 同一 key 使用不同规则时各自独立计数
func (l *standaloneLimiter) get(key string, limit Limit, now time.Time) *bucket {
	id := fmt.Sprintf("%s:%v:%d", key, limit.Rate, limit.Burst)
	if v, ok := l.buckets.Load(id); ok {
		return v.(*bucket)
	}
	b := &bucket{limiter: rate.NewLimiter(rate.Limit(limit.Rate), limit.Burst)}
	b.touch(now)
	actual, _ := l.buckets.LoadOrStore(id, b)
	return actual.(*bucket)
}

func (l *standaloneLimiter) cleanup() {
	ticker := time.NewTicker(l.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.evictIdle(time.Now())
		case <-l.stopCh:
			return
		}
	}
}

func (l *standaloneLimiter) evictIdle(now time.Time) int {
	count := 0
	l.buckets.Range(func(k, v any) bool {
		if now.Sub(time.Unix(0, v.(*bucket).lastSeen.Load())) > l.cfg.IdleTimeout {
			l.buckets.Delete(k)
			count++
		}
		return true
	})
	if count > 0 {
		l.logger.Debug("evicted idle buckets", clog.Int("count", count))
	}
	return count
}

func (l *standaloneLimiter) Close() error {
	l.closeOnce.Do(func() { close(l.stopCh) })
	return nil
}
