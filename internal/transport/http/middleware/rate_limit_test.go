package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	red "github.com/redis/go-redis/v9"
	"go.uber.org/zap/zaptest"

	"github.com/arklim/access-gateway/internal/core/domain"
	redisrepo "github.com/arklim/access-gateway/internal/repository/redis"
)

type policyValues map[string]int

func (p policyValues) Int(_ context.Context, key string, def int) int {
	if v, ok := p[key]; ok {
		return v
	}
	return def
}

type steppingClock struct {
	now time.Time
}

// Now advances one second per call so every recorded request gets its own timestamp.
func (c *steppingClock) Now() time.Time {
	c.now = c.now.Add(time.Second)
	return c.now
}

func newLimitedRouter(t *testing.T, policy policyValues, route RouteLimit) (*gin.Engine, *steppingClock) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	server := miniredis.RunT(t)
	client := red.NewClient(&red.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := redisrepo.NewRateLimitRepository(client, redisrepo.SlidingWindowConfig{KeyPrefix: "gateway:rate-limit", TTL: 2 * time.Minute})
	clock := &steppingClock{now: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)}
	limiter := NewRateLimiter(store, policy, time.Minute, zaptest.NewLogger(t)).WithClock(clock.Now)

	router := gin.New()
	router.POST("/login", limiter.Limit(route), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return router, clock
}

func postLogin(router *gin.Engine, remoteAddr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	req.RemoteAddr = remoteAddr
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

var loginLimit = RouteLimit{Name: "auth_login_ip", PolicyKey: domain.ConfigRateLimitLogin, Default: 10}

func TestRateLimiterUsesPolicyBudget(t *testing.T) {
	router, _ := newLimitedRouter(t, policyValues{domain.ConfigRateLimitLogin: 2}, loginLimit)

	for i := 0; i < 2; i++ {
		rr := postLogin(router, "198.51.100.7:4000")
		if rr.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, rr.Code)
		}
	}
	if got := postLogin(router, "198.51.100.7:4000").Header().Get("X-RateLimit-Limit"); got != "2" {
		t.Fatalf("expected limit header from policy, got %q", got)
	}
}

func TestRateLimiterRejectsWithEnvelope(t *testing.T) {
	router, _ := newLimitedRouter(t, policyValues{domain.ConfigRateLimitLogin: 1}, loginLimit)

	first := postLogin(router, "198.51.100.7:4000")
	if first.Code != http.StatusOK || first.Header().Get("X-RateLimit-Remaining") != "0" {
		t.Fatalf("first request: status %d remaining %q", first.Code, first.Header().Get("X-RateLimit-Remaining"))
	}

	rr := postLogin(router, "198.51.100.7:4000")
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rr.Code)
	}
	if rr.Header().Get("Retry-After") == "" {
		t.Fatal("expected Retry-After header")
	}

	var body RateLimitedEnvelope
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Success || body.Data.Rule != "auth_login_ip" || body.Data.RetryAfter <= 0 || body.Data.RetryAfter > 60 {
		t.Fatalf("unexpected envelope %+v", body)
	}

	if other := postLogin(router, "203.0.113.9:4000"); other.Code != http.StatusOK {
		t.Fatalf("other addresses keep their own budget, got %d", other.Code)
	}
}

func TestRateLimiterWindowSlides(t *testing.T) {
	router, clock := newLimitedRouter(t, policyValues{domain.ConfigRateLimitLogin: 1}, loginLimit)

	if rr := postLogin(router, "198.51.100.7:4000"); rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if rr := postLogin(router, "198.51.100.7:4000"); rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 inside the window, got %d", rr.Code)
	}

	clock.now = clock.now.Add(2 * time.Minute)
	if rr := postLogin(router, "198.51.100.7:4000"); rr.Code != http.StatusOK {
		t.Fatalf("expected 200 once the window moved on, got %d", rr.Code)
	}
}

func TestRateLimiterFallsBackToDefaultAndCanBeSwitchedOff(t *testing.T) {
	router, _ := newLimitedRouter(t, policyValues{}, RouteLimit{Name: "auth_login_ip", PolicyKey: domain.ConfigRateLimitLogin, Default: 1})
	postLogin(router, "198.51.100.7:4000")
	if rr := postLogin(router, "198.51.100.7:4000"); rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected default budget to apply, got %d", rr.Code)
	}

	policy := policyValues{domain.ConfigRateLimitLogin: 0}
	router, _ = newLimitedRouter(t, policy, loginLimit)
	for i := 0; i < 20; i++ {
		if rr := postLogin(router, "198.51.100.7:4000"); rr.Code != http.StatusOK {
			t.Fatalf("request %d: a zero budget disables limiting, got %d", i, rr.Code)
		}
	}
}

type failingStore struct{}

func (failingStore) TrimWindow(context.Context, string, time.Duration, time.Time) error {
	return errors.New("redis down")
}

func (failingStore) CountAttempts(context.Context, string, time.Duration, time.Time) (int, error) {
	return 0, errors.New("redis down")
}

func (failingStore) RecordAttempt(context.Context, string, time.Time) error {
	return errors.New("redis down")
}

func (failingStore) OldestAttempt(context.Context, string, time.Duration, time.Time) (time.Time, bool, error) {
	return time.Time{}, false, errors.New("redis down")
}

func (failingStore) Clear(context.Context, string) error {
	return errors.New("redis down")
}

func TestRateLimiterStoreFailureLetsRequestsThrough(t *testing.T) {
	gin.SetMode(gin.TestMode)
	limiter := NewRateLimiter(failingStore{}, policyValues{domain.ConfigRateLimitLogin: 1}, time.Minute, zaptest.NewLogger(t))

	router := gin.New()
	router.POST("/login", limiter.Limit(loginLimit), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	for i := 0; i < 3; i++ {
		if rr := postLogin(router, "198.51.100.7:4000"); rr.Code != http.StatusOK {
			t.Fatalf("request %d: expected fail-open 200, got %d", i, rr.Code)
		}
	}
}
