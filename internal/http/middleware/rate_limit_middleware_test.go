package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func limiterProbe(rl *RateLimiter) *httptest.ResponseRecorder {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
	req.RemoteAddr = "203.0.113.9:42110"
	rec := httptest.NewRecorder()
	rl.Middleware()(next).ServeHTTP(rec, req)
	return rec
}

func TestLocalLimiterRejectsOverLimit(t *testing.T) {
	rl := NewRateLimiter(3, time.Minute, "auth")

	for i := 0; i < 3; i++ {
		if rec := limiterProbe(rl); rec.Code != http.StatusNoContent {
			t.Fatalf("request %d: status = %d, want 204", i, rec.Code)
		}
	}
	rec := limiterProbe(rl)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("over-limit status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("Retry-After header missing on rejection")
	}
}

func TestLocalLimiterKeysByClientIP(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute, "auth")
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	send := func(addr string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		rl.Middleware()(next).ServeHTTP(rec, req)
		return rec.Code
	}

	if code := send("203.0.113.1:1000"); code != http.StatusNoContent {
		t.Fatalf("first client first request: %d", code)
	}
	if code := send("203.0.113.1:1001"); code != http.StatusTooManyRequests {
		t.Fatalf("first client second request: %d, want 429", code)
	}
	// A different client IP has its own window.
	if code := send("203.0.113.2:1000"); code != http.StatusNoContent {
		t.Fatalf("second client first request: %d", code)
	}
}

func TestRedisLimiterSharesWindow(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	limiter := NewRedisFixedWindowLimiter(client, "rl:test")
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		allowed, _, err := limiter.Allow(ctx, "auth:203.0.113.9", 2, time.Minute)
		if err != nil {
			t.Fatalf("Allow %d: %v", i, err)
		}
		if !allowed {
			t.Fatalf("request %d should be within limit", i)
		}
	}
	allowed, retryAfter, err := limiter.Allow(ctx, "auth:203.0.113.9", 2, time.Minute)
	if err != nil {
		t.Fatalf("Allow: %v", err)
	}
	if allowed {
		t.Fatal("third request should exceed the limit")
	}
	if retryAfter <= 0 || retryAfter > time.Minute {
		t.Errorf("retryAfter = %v", retryAfter)
	}

	// A new window starts once the key expires.
	mr.FastForward(time.Minute + time.Second)
	allowed, _, err = limiter.Allow(ctx, "auth:203.0.113.9", 2, time.Minute)
	if err != nil {
		t.Fatalf("Allow after window: %v", err)
	}
	if !allowed {
		t.Error("request in a fresh window should be admitted")
	}
}

func TestRedisLimiterIsolatesKeys(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	limiter := NewRedisFixedWindowLimiter(client, "rl:test")
	ctx := context.Background()

	if allowed, _, err := limiter.Allow(ctx, "auth:a", 1, time.Minute); err != nil || !allowed {
		t.Fatalf("first key: allowed=%v err=%v", allowed, err)
	}
	if allowed, _, err := limiter.Allow(ctx, "auth:a", 1, time.Minute); err != nil || allowed {
		t.Fatalf("first key over limit: allowed=%v err=%v", allowed, err)
	}
	if allowed, _, err := limiter.Allow(ctx, "auth:b", 1, time.Minute); err != nil || !allowed {
		t.Fatalf("second key: allowed=%v err=%v", allowed, err)
	}
}

type failingLimiter struct{}

func (failingLimiter) Allow(context.Context, string, int, time.Duration) (bool, time.Duration, error) {
	return false, 0, errors.New("backend down")
}

func TestFailureModeOnBackendError(t *testing.T) {
	open := NewDistributedRateLimiter(failingLimiter{}, 10, time.Minute, FailOpen, "api")
	if rec := limiterProbe(open); rec.Code != http.StatusNoContent {
		t.Errorf("fail-open status = %d, want 204", rec.Code)
	}

	closed := NewDistributedRateLimiter(failingLimiter{}, 10, time.Minute, FailClosed, "auth")
	if rec := limiterProbe(closed); rec.Code != http.StatusTooManyRequests {
		t.Errorf("fail-closed status = %d, want 429", rec.Code)
	}
}
