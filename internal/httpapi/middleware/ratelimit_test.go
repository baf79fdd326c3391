package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

type stepClock struct{ t time.Time }

func (c *stepClock) now() time.Time { return c.t }

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimit_AllowsThenBlocks(t *testing.T) {
	clk := &stepClock{t: time.Unix(1_700_000_000, 0)}
	l := newLimiter(1, 2, 10*time.Minute) // 60/min, burst 2
	l.now = clk.now
	h := rateLimit(l)(okHandler())

	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "1.2.3.4:1234"

	for i := 0; i < 2; i++ {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		if rr.Code != 200 {
			t.Fatalf("want 200 got %d", rr.Code)
		}
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != 429 {
		t.Fatalf("want 429 got %d", rr.Code)
	}
	if rr.Header().Get("Retry-After") != "1" {
		t.Fatalf("want Retry-After 1, got %q", rr.Header().Get("Retry-After"))
	}
	if !strings.Contains(rr.Body.String(), `"RATE_LIMITED"`) {
		t.Fatalf("unexpected body %s", rr.Body.String())
	}

	clk.t = clk.t.Add(1100 * time.Millisecond)
	rr2 := httptest.NewRecorder()
	h.ServeHTTP(rr2, req)
	if rr2.Code != 200 {
		t.Fatalf("want 200 after refill got %d", rr2.Code)
	}
}

func TestRateLimit_KeysByForwardedFor(t *testing.T) {
	h := RateLimit(60, 1)(okHandler())
	a := httptest.NewRequest("GET", "/", nil)
	a.Header.Set("X-Forwarded-For", "9.9.9.9, 10.0.0.1")
	b := httptest.NewRequest("GET", "/", nil)
	b.Header.Set("X-Forwarded-For", "8.8.8.8")

	for _, req := range []*http.Request{a, b} {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		if rr.Code != 200 {
			t.Fatalf("first request per client should pass, got %d", rr.Code)
		}
	}
}

func TestRateLimit_DisabledPassesThrough(t *testing.T) {
	h := RateLimit(0, 0)(okHandler())
	for i := 0; i < 100; i++ {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest("GET", "/", nil))
		if rr.Code != 200 {
			t.Fatalf("disabled limiter blocked request %d", i)
		}
	}
}

func TestLimiter_SweepsIdleBuckets(t *testing.T) {
	clk := &stepClock{t: time.Unix(1_700_000_000, 0)}
	l := newLimiter(1, 1, time.Minute)
	l.now = clk.now

	l.allow("a")
	l.allow("b")
	clk.t = clk.t.Add(2 * time.Minute)
	l.allow("c")
	if len(l.m) != 1 {
		t.Fatalf("expected idle buckets evicted, have %d", len(l.m))
	}
}
