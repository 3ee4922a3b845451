package worker

import (
	"context"
	"net/url"
	"sync"

	"golang.org/x/time/rate"
)

// Limiter throttles record lookups per backend server, so a batch over a
// remote graph database does not flood it while file sources stay fast.
// Sources naming the same host share one budget.
type Limiter struct {
	mu     sync.Mutex
	byHost map[string]*rate.Limiter
	limit  rate.Limit
	burst  int
}

// NewLimiter creates a limiter. A non-positive rate means unlimited and a
// non-positive burst falls back to 5.
func NewLimiter(perSecond float64, burst int) *Limiter {
	if burst < 1 {
		burst = 5
	}
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	return &Limiter{byHost: map[string]*rate.Limiter{}, limit: limit, burst: burst}
}

// Wait blocks until the backend behind source may be queried
func (l *Limiter) Wait(ctx context.Context, source string) error {
	return l.forSource(source).Wait(ctx)
}

// Allow reports whether a query may run now, spending a token if so
func (l *Limiter) Allow(source string) bool {
	return l.forSource(source).Allow()
}

func (l *Limiter) forSource(source string) *rate.Limiter {
	key := hostOf(source)
	l.mu.Lock()
	defer l.mu.Unlock()
	rl, ok := l.byHost[key]
	if !ok {
		rl = rate.NewLimiter(l.limit, l.burst)
		l.byHost[key] = rl
	}
	return rl
}

// hostOf is the host of a URL source (bolt://, https://) or the source
// itself for local paths
func hostOf(source string) string {
	u, err := url.Parse(source)
	if err != nil || u.Host == "" {
		return source
	}
	return u.Host
}
