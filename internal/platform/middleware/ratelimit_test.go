package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

func rateLimitedRequest(h echo.HandlerFunc, ip, tenant string) (*httptest.ResponseRecorder, error) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/calendar/check", nil)
	req.Header.Set(echo.HeaderXRealIP, ip)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if tenant != "" {
		c.Set("tenant_id", tenant)
	}
	return rec, h(c)
}

func okNext(c echo.Context) error {
	return c.NoContent(http.StatusOK)
}

func TestRateLimit_RequestsWithinLimit(t *testing.T) {
	h := RateLimit(RateLimitConfig{RequestsPerSecond: 10, BurstSize: 5})(okNext)
	for i := 0; i < 5; i++ {
		rec, err := rateLimitedRequest(h, "10.0.0.1", "")
		if err != nil {
			t.Fatalf("request %d: unexpected error: %v", i, err)
		}
		if rec.Header().Get("X-RateLimit-Limit") != "10" {
			t.Errorf("expected X-RateLimit-Limit 10, got %q", rec.Header().Get("X-RateLimit-Limit"))
		}
	}
}

func TestRateLimit_ExceedsLimit(t *testing.T) {
	h := RateLimit(RateLimitConfig{RequestsPerSecond: 1, BurstSize: 2})(okNext)
	for i := 0; i < 2; i++ {
		if _, err := rateLimitedRequest(h, "10.0.0.2", ""); err != nil {
			t.Fatalf("request %d: unexpected error: %v", i, err)
		}
	}

	rec, err := rateLimitedRequest(h, "10.0.0.2", "")
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %v", err)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}
	if rec.Header().Get("X-RateLimit-Remaining") != "0" {
		t.Errorf("expected remaining 0, got %q", rec.Header().Get("X-RateLimit-Remaining"))
	}
}

func TestRateLimit_PerKeyIsolation(t *testing.T) {
	h := RateLimit(RateLimitConfig{RequestsPerSecond: 1, BurstSize: 1})(okNext)

	if _, err := rateLimitedRequest(h, "10.0.0.3", "tenant-a"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := rateLimitedRequest(h, "10.0.0.3", "tenant-b"); err != nil {
		t.Fatalf("other tenant from same ip should have its own limiter: %v", err)
	}
	if _, err := rateLimitedRequest(h, "10.0.0.4", "tenant-a"); err != nil {
		t.Fatalf("other ip should have its own limiter: %v", err)
	}
	if _, err := rateLimitedRequest(h, "10.0.0.3", "tenant-a"); err == nil {
		t.Fatal("expected second request on same key to be limited")
	}
}

func TestRateLimit_DefaultConfig(t *testing.T) {
	cfg := DefaultRateLimitConfig()
	if cfg.RequestsPerSecond != 50 || cfg.BurstSize != 100 {
		t.Errorf("unexpected defaults %+v", cfg)
	}
}

func TestLimiterStore_EvictsIdle(t *testing.T) {
	s := newLimiterStore(RateLimitConfig{RequestsPerSecond: 1, BurstSize: 1, IdleTTL: time.Minute})
	start := time.Now()
	first := s.get("a", start)
	s.get("b", start.Add(2*time.Minute))

	if _, ok := s.entries["a"]; ok {
		t.Error("expected idle limiter to be evicted")
	}
	if again := s.get("a", start.Add(2*time.Minute)); again == first {
		t.Error("expected a fresh limiter after eviction")
	}
}
