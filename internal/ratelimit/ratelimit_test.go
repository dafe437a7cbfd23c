package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLimiter(t *testing.T, rate float64, burst int) (*Limiter, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	l := NewLimiter(rate, burst)
	l.now = clock.now
	t.Cleanup(l.Stop)
	return l, clock
}

func TestNewLimiterAllowsFirstRequest(t *testing.T) {
	limiter, _ := newTestLimiter(t, 10, 5)

	if !limiter.allow("192.168.1.1") {
		t.Error("expected first request from new client to be allowed")
	}
}

func TestRequestsWithinBurstAreAllowed(t *testing.T) {
	burst := 5
	limiter, _ := newTestLimiter(t, 1, burst)

	for i := 0; i < burst; i++ {
		if !limiter.allow("192.168.1.1") {
			t.Errorf("request %d within burst of %d should be allowed", i+1, burst)
		}
	}
}

func TestRequestsExceedingBurstAreDenied(t *testing.T) {
	burst := 3
	limiter, _ := newTestLimiter(t, 1, burst)

	for i := 0; i < burst; i++ {
		limiter.allow("192.168.1.1")
	}

	if limiter.allow("192.168.1.1") {
		t.Error("request exceeding burst should be denied")
	}
}

func TestTokensReplenishOverTime(t *testing.T) {
	limiter, clock := newTestLimiter(t, 10, 2)

	limiter.allow("192.168.1.1")
	limiter.allow("192.168.1.1")
	if limiter.allow("192.168.1.1") {
		t.Error("expected request to be denied after exhausting burst")
	}

	clock.advance(150 * time.Millisecond)

	if !limiter.allow("192.168.1.1") {
		t.Error("expected request to be allowed after token replenishment")
	}
}

func TestTokensNeverExceedBurst(t *testing.T) {
	limiter, clock := newTestLimiter(t, 10, 2)

	limiter.allow("10.0.0.1")
	clock.advance(time.Hour)

	allowed := 0
	for i := 0; i < 5; i++ {
		if limiter.allow("10.0.0.1") {
			allowed++
		}
	}
	if allowed != 2 {
		t.Errorf("allowed %d requests after idling, want burst of 2", allowed)
	}
}

func TestPerMinuteMatchesQueryLimit(t *testing.T) {
	limiter := PerMinute(3)
	t.Cleanup(limiter.Stop)
	clock := &fakeClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	limiter.now = clock.now

	for i := 0; i < 3; i++ {
		if !limiter.allow("client") {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if limiter.allow("client") {
		t.Fatal("fourth request within a minute should be denied")
	}
	if got := limiter.retryAfter("client"); got != 20 {
		t.Errorf("retryAfter = %d, want 20", got)
	}

	clock.advance(20 * time.Second)
	if !limiter.allow("client") {
		t.Error("one request should be allowed after 20 seconds")
	}
}

func TestDifferentClientsHaveIndependentLimits(t *testing.T) {
	limiter, _ := newTestLimiter(t, 1, 2)

	limiter.allow("10.0.0.1")
	limiter.allow("10.0.0.1")
	if limiter.allow("10.0.0.1") {
		t.Error("expected third request from first client to be denied")
	}

	if !limiter.allow("10.0.0.2") {
		t.Error("expected first request from second client to be allowed")
	}
}

func TestEvictRemovesIdleClients(t *testing.T) {
	limiter, clock := newTestLimiter(t, 1, 1)

	limiter.allow("10.0.0.1")
	clock.advance(11 * time.Minute)
	limiter.allow("10.0.0.2")
	limiter.evict(10 * time.Minute)

	limiter.mu.Lock()
	defer limiter.mu.Unlock()
	if _, ok := limiter.visitors["10.0.0.1"]; ok {
		t.Error("idle client should be evicted")
	}
	if _, ok := limiter.visitors["10.0.0.2"]; !ok {
		t.Error("recent client should be kept")
	}
}

func TestClientKey(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.1.2.3:54321"
	if got := clientKey(req); got != "10.1.2.3" {
		t.Errorf("clientKey = %q, want port stripped", got)
	}

	req.Header.Set("X-Forwarded-For", "203.0.113.9")
	if got := clientKey(req); got != "203.0.113.9" {
		t.Errorf("clientKey = %q, want forwarded address", got)
	}
}

func TestMiddlewareReturns429WhenLimited(t *testing.T) {
	limiter, _ := newTestLimiter(t, 1, 1)
	handler := limiter.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/panel/ask", nil)
	req.RemoteAddr = "10.0.0.1:1234"

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("first request: expected status %d, got %d", http.StatusOK, rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: expected status %d, got %d", http.StatusTooManyRequests, rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected Content-Type application/json, got %q", ct)
	}
	if ra := rec.Header().Get("Retry-After"); ra != "1" {
		t.Errorf("expected Retry-After 1, got %q", ra)
	}
	if body := rec.Body.String(); body != `{"error":"too many requests"}` {
		t.Errorf("unexpected body: %s", body)
	}
}

func TestStopIsIdempotent(t *testing.T) {
	limiter := NewLimiter(1, 1)
	limiter.Stop()
	limiter.Stop()
}
