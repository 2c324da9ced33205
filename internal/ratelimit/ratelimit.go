// Package ratelimit provides a per-caller token bucket limiter for the API.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter tracks a token bucket per caller key. Suitable for a
// single-instance deployment; a shared store would be needed to limit
// across replicas.
type Limiter struct {
	rps   rate.Limit
	burst int

	buckets    sync.Map // map[string]*rate.Limiter
	lastAccess sync.Map // map[string]time.Time

	cleanupInterval time.Duration
	maxAge          time.Duration
	stop            chan struct{}
}

// New creates a limiter allowing rps requests per second with the given
// burst per key, and starts the background cleanup of idle buckets.
func New(rps float64, burst int) *Limiter {
	l := &Limiter{
		rps:             rate.Limit(rps),
		burst:           burst,
		cleanupInterval: 5 * time.Minute,
		maxAge:          10 * time.Minute,
		stop:            make(chan struct{}),
	}
	go l.cleanupLoop()
	return l
}

// Allow reports whether one more request from key fits in its bucket.
func (l *Limiter) Allow(key string) bool {
	bucket := l.bucket(key)
	l.lastAccess.Store(key, time.Now().UTC())
	return bucket.Allow()
}

func (l *Limiter) bucket(key string) *rate.Limiter {
	if b, ok := l.buckets.Load(key); ok {
		return b.(*rate.Limiter)
	}
	b := rate.NewLimiter(l.rps, l.burst)
	// A concurrent request may have stored one first; use whichever won.
	actual, _ := l.buckets.LoadOrStore(key, b)
	return actual.(*rate.Limiter)
}

func (l *Limiter) cleanupLoop() {
	ticker := time.NewTicker(l.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.evictIdle()
		case <-l.stop:
			return
		}
	}
}

// evictIdle drops buckets that have not been touched within maxAge so the
// key space cannot grow without bound.
func (l *Limiter) evictIdle() {
	cutoff := time.Now().UTC().Add(-l.maxAge)

	var idle []string
	l.lastAccess.Range(func(key, value any) bool {
		if value.(time.Time).Before(cutoff) {
			idle = append(idle, key.(string))
		}
		return true
	})

	for _, key := range idle {
		l.buckets.Delete(key)
		l.lastAccess.Delete(key)
	}
}

// Stop halts the cleanup goroutine.
func (l *Limiter) Stop() {
	close(l.stop)
}
