package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time { return f.t }
func (f *fakeClock) advance(d time.Duration) { f.t = f.t.Add(d) }

func newTestLimiter(cfg RateLimitConfig) (*limiter, *fakeClock) {
	clk := &fakeClock{t: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
	l := newLimiter(cfg)
	l.now = clk.now
	return l, clk
}

func hit(e *echo.Echo, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	req.Header.Set(echo.HeaderXRealIP, ip)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func limitedEcho(cfg RateLimitConfig, l *limiter) *echo.Echo {
	e := echo.New()
	e.Use(rateLimit(cfg, l))
	e.GET("/api/events", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	return e
}

func TestRateLimit_BurstThenReject(t *testing.T) {
	cfg := RateLimitConfig{RequestsPerSecond: 1, BurstSize: 3}
	l, _ := newTestLimiter(cfg)
	e := limitedEcho(cfg, l)

	for i := 0; i < 3; i++ {
		if rec := hit(e, "10.0.0.1"); rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i+1, rec.Code)
		}
	}
	rec := hit(e, "10.0.0.1")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "1" {
		t.Errorf("expected Retry-After 1, got %q", rec.Header().Get("Retry-After"))
	}
	if rec.Header().Get("X-RateLimit-Remaining") != "0" {
		t.Errorf("expected remaining 0, got %q", rec.Header().Get("X-RateLimit-Remaining"))
	}
}

func TestRateLimit_Refills(t *testing.T) {
	cfg := RateLimitConfig{RequestsPerSecond: 0.2, BurstSize: 1}
	l, clk := newTestLimiter(cfg)
	e := limitedEcho(cfg, l)

	hit(e, "10.0.0.1")
	if rec := hit(e, "10.0.0.1"); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	} else if rec.Header().Get("Retry-After") != "5" {
		t.Errorf("expected Retry-After 5, got %q", rec.Header().Get("Retry-After"))
	}

	clk.advance(5 * time.Second)
	if rec := hit(e, "10.0.0.1"); rec.Code != http.StatusOK {
		t.Errorf("expected 200 after refill, got %d", rec.Code)
	}
}

func TestRateLimit_KeysAreIndependent(t *testing.T) {
	cfg := RateLimitConfig{RequestsPerSecond: 1, BurstSize: 1}
	l, _ := newTestLimiter(cfg)
	e := limitedEcho(cfg, l)

	hit(e, "10.0.0.1")
	if rec := hit(e, "10.0.0.2"); rec.Code != http.StatusOK {
		t.Errorf("expected second client to pass, got %d", rec.Code)
	}
}

func TestRateLimit_CustomKey(t *testing.T) {
	cfg := RateLimitConfig{
		RequestsPerSecond: 1,
		BurstSize:         1,
		KeyFunc:           func(c echo.Context) string { return "everyone" },
	}
	l, _ := newTestLimiter(cfg)
	e := limitedEcho(cfg, l)

	hit(e, "10.0.0.1")
	if rec := hit(e, "10.0.0.2"); rec.Code != http.StatusTooManyRequests {
		t.Errorf("expected shared bucket to reject, got %d", rec.Code)
	}
}

func TestLimiter_ForgetsIdleBuckets(t *testing.T) {
	l, clk := newTestLimiter(RateLimitConfig{RequestsPerSecond: 1, BurstSize: 1, IdleTTL: time.Minute})
	l.take("a")
	l.take("b")
	clk.advance(2 * time.Minute)
	l.take("c")

	if n := l.size(); n != 1 {
		t.Errorf("expected only the fresh bucket to remain, got %d", n)
	}
}

func TestLimiter_ZeroRate(t *testing.T) {
	l, _ := newTestLimiter(RateLimitConfig{BurstSize: 1})
	l.take("a")
	if _, wait, ok := l.take("a"); ok || wait != time.Second {
		t.Errorf("expected rejection with 1s wait, got ok=%v wait=%s", ok, wait)
	}
}

func TestRateLimitConfigs(t *testing.T) {
	def, login := DefaultRateLimitConfig(), LoginRateLimitConfig()
	if def.BurstSize <= login.BurstSize || def.RequestsPerSecond <= login.RequestsPerSecond {
		t.Errorf("expected login limit to be stricter: default %+v, login %+v", def, login)
	}
}
