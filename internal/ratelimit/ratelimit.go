package ratelimit

import (
	"context"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

// Result is the outcome of one Allow call.
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// Limiter admits at most a fixed number of requests per key per window.
type Limiter interface {
	Allow(ctx context.Context, key string) (Result, error)
}

// Local is an in-process token bucket per key. Idle buckets expire after
// two windows.
type Local struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu      sync.Mutex
	buckets *gocache.Cache
}

func NewLocal(limit int, window time.Duration) *Local {
	return &Local{
		limit:   limit,
		window:  window,
		now:     time.Now,
		buckets: gocache.New(2*window, window),
	}
}

func (l *Local) bucket(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if v, ok := l.buckets.Get(key); ok {
		l.buckets.SetDefault(key, v)
		return v.(*rate.Limiter)
	}
	lim := rate.NewLimiter(rate.Every(l.window/time.Duration(l.limit)), l.limit)
	l.buckets.SetDefault(key, lim)
	return lim
}

func (l *Local) Allow(_ context.Context, key string) (Result, error) {
	if l.limit <= 0 {
		return Result{Allowed: true}, nil
	}

	lim := l.bucket(key)
	now := l.now()

	r := lim.ReserveN(now, 1)
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return Result{Allowed: false, Limit: l.limit, RetryAfter: delay}, nil
	}

	remaining := int(lim.TokensAt(now))
	if remaining < 0 {
		remaining = 0
	}
	return Result{Allowed: true, Limit: l.limit, Remaining: remaining}, nil
}

var _ Limiter = (*Local)(nil)
