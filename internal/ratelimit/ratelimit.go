package ratelimit

import (
	"fmt"
	"math"
	"net"
	"net/http"
	"sync"
	"time"
)

type visitor struct {
	tokens   float64
	lastSeen time.Time
}

// Limiter is a per-client token bucket.
type Limiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	rate     float64
	burst    float64
	now      func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

// PerMinute builds a limiter allowing n requests per minute with a burst of n.
func PerMinute(n int) *Limiter {
	return NewLimiter(float64(n)/60, n)
}

func NewLimiter(requestsPerSecond float64, burst int) *Limiter {
	l := &Limiter{
		visitors: make(map[string]*visitor),
		rate:     requestsPerSecond,
		burst:    float64(burst),
		now:      time.Now,
		stop:     make(chan struct{}),
	}
	go l.cleanup(5 * time.Minute)
	return l
}

// Stop ends the background cleanup.
func (l *Limiter) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
}

func (l *Limiter) allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	v, exists := l.visitors[key]
	if !exists {
		l.visitors[key] = &visitor{tokens: l.burst - 1, lastSeen: now}
		return true
	}

	elapsed := now.Sub(v.lastSeen).Seconds()
	v.lastSeen = now
	v.tokens = math.Min(l.burst, v.tokens+elapsed*l.rate)

	if v.tokens < 1 {
		return false
	}

	v.tokens--
	return true
}

// retryAfter is the whole number of seconds until one token is available.
func (l *Limiter) retryAfter(key string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	v, ok := l.visitors[key]
	if !ok || l.rate <= 0 {
		return 1
	}
	wait := math.Ceil((1 - v.tokens) / l.rate)
	if wait < 1 {
		return 1
	}
	return int(wait)
}

func (l *Limiter) cleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			l.evict(10 * time.Minute)
		}
	}
}

func (l *Limiter) evict(idle time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	for key, v := range l.visitors {
		if now.Sub(v.lastSeen) > idle {
			delete(l.visitors, key)
		}
	}
}

func clientKey(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		return forwarded
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := clientKey(r)
		if !l.allow(key) {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", fmt.Sprint(l.retryAfter(key)))
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":"too many requests"}`))
			return
		}

		next.ServeHTTP(w, r)
	})
}
