package download

import (
	"sync"
	"time"
)

// AdaptiveLimiter paces requests against the media host. The delay shrinks
// toward base on success and multiplies on backoff up to max. During a
// backoff every worker is paused globally: one 429 means the whole pool is
// going too fast, not just one request.
type AdaptiveLimiter struct {
	base   time.Duration
	max    time.Duration
	factor float64

	mu      sync.Mutex
	cond    *sync.Cond
	delay   time.Duration
	backing bool
}

// NewAdaptiveLimiter creates a limiter with the given base delay, cap and
// growth factor. Zero values fall back to 1s / 60s / 2.0.
func NewAdaptiveLimiter(base, max time.Duration, factor float64) *AdaptiveLimiter {
	if base <= 0 {
		base = time.Second
	}
	if max <= 0 {
		max = 60 * time.Second
	}
	if factor <= 1 {
		factor = 2.0
	}
	l := &AdaptiveLimiter{
		base:   base,
		max:    max,
		factor: factor,
		delay:  base,
	}
	l.cond = sync.NewCond(&l.mu)
	return l
}

// Wait blocks until any global backoff has finished, then sleeps the
// current delay.
func (l *AdaptiveLimiter) Wait() {
	l.mu.Lock()
	for l.backing {
		l.cond.Wait()
	}
	d := l.delay
	l.mu.Unlock()

	time.Sleep(d)
}

// Success shrinks the delay toward the base.
func (l *AdaptiveLimiter) Success() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.delay = time.Duration(float64(l.delay) / l.factor)
	if l.delay < l.base {
		l.delay = l.base
	}
}

// Backoff grows the delay (or adopts retryAfter when the server provided
// one) and pauses all Wait callers for that long. Concurrent backoffs
// collapse into the one already in flight.
func (l *AdaptiveLimiter) Backoff(retryAfter time.Duration) {
	l.mu.Lock()
	if l.backing {
		l.mu.Unlock()
		return
	}
	l.backing = true

	var d time.Duration
	if retryAfter > 0 {
		d = retryAfter
	} else {
		d = time.Duration(float64(l.delay) * l.factor)
	}
	if d > l.max {
		d = l.max
	}
	l.delay = d
	l.mu.Unlock()

	time.Sleep(d)

	l.mu.Lock()
	l.backing = false
	l.cond.Broadcast()
	l.mu.Unlock()
}

// Delay returns the current pacing delay.
func (l *AdaptiveLimiter) Delay() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.delay
}
