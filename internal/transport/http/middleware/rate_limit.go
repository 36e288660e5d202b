package middleware

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/arklim/access-gateway/internal/core/port"
	"github.com/arklim/access-gateway/internal/infra/logger"
)

// LimitPolicy resolves request budgets from the live policy table.
type LimitPolicy interface {
	Int(ctx context.Context, key string, def int) int
}

// RouteLimit names a limited endpoint and the policy key holding its budget.
// Default applies while the key is missing; a budget of zero or less turns the limit off.
type RouteLimit struct {
	Name      string
	PolicyKey string
	Default   int
}

// RateLimiter enforces per-client-IP sliding windows on public endpoints. Budgets are read
// from policy on every request, so operators can tighten them without a restart.
type RateLimiter struct {
	store  port.RateLimitStore
	policy LimitPolicy
	window time.Duration
	logger *zap.Logger
	now    func() time.Time
}

// RateLimitedEnvelope is the 429 body: the error envelope plus the retry hint.
type RateLimitedEnvelope struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Data    RateLimitedDetail `json:"data"`
	TraceID string            `json:"traceId,omitempty"`
}

// RateLimitedDetail names the route limit that tripped and the seconds until it frees up.
type RateLimitedDetail struct {
	Rule       string `json:"rule"`
	RetryAfter int    `json:"retryAfter"`
}

type admission struct {
	allowed   bool
	limit     int
	remaining int
	reset     time.Time
}

func NewRateLimiter(store port.RateLimitStore, policy LimitPolicy, window time.Duration, logger *zap.Logger) *RateLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if window <= 0 {
		window = time.Minute
	}
	return &RateLimiter{store: store, policy: policy, window: window, logger: logger, now: time.Now}
}

// WithClock overrides the internal clock, used in tests.
func (rl *RateLimiter) WithClock(now func() time.Time) *RateLimiter {
	if now != nil {
		rl.now = now
	}
	return rl
}

// Limit returns middleware enforcing route. Store failures let the request through.
func (rl *RateLimiter) Limit(route RouteLimit) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		budget := rl.budget(ctx, route)
		ip := c.ClientIP()
		if budget <= 0 || ip == "" || rl.store == nil {
			c.Next()
			return
		}

		now := rl.now()
		res, err := rl.admit(ctx, route.Name+":"+ip, budget, now)
		if err != nil {
			rl.logger.Warn("rate limit check failed",
				zap.String("route", route.Name),
				zap.String("client_ip", logger.MaskIP(ip)),
				zap.Error(err),
			)
			c.Next()
			return
		}

		headers := c.Writer.Header()
		headers.Set("X-RateLimit-Limit", strconv.Itoa(res.limit))
		headers.Set("X-RateLimit-Remaining", strconv.Itoa(res.remaining))
		headers.Set("X-RateLimit-Reset", strconv.FormatInt(res.reset.Unix(), 10))

		if !res.allowed {
			rl.reject(c, route, res, now)
			return
		}
		c.Next()
	}
}

func (rl *RateLimiter) budget(ctx context.Context, route RouteLimit) int {
	if rl.policy == nil || route.PolicyKey == "" {
		return route.Default
	}
	return rl.policy.Int(ctx, route.PolicyKey, route.Default)
}

// admit counts the request against key unless the window is already full.
func (rl *RateLimiter) admit(ctx context.Context, key string, budget int, now time.Time) (admission, error) {
	if err := rl.store.TrimWindow(ctx, key, rl.window, now); err != nil {
		return admission{}, err
	}
	count, err := rl.store.CountAttempts(ctx, key, rl.window, now)
	if err != nil {
		return admission{}, err
	}
	oldest, seen, err := rl.store.OldestAttempt(ctx, key, rl.window, now)
	if err != nil {
		return admission{}, err
	}

	res := admission{limit: budget, reset: now.Add(rl.window)}
	if seen {
		res.reset = oldest.Add(rl.window)
	}
	if count >= budget {
		return res, nil
	}

	if err := rl.store.RecordAttempt(ctx, key, now); err != nil {
		return admission{}, err
	}
	res.allowed = true
	res.remaining = budget - count - 1
	return res, nil
}

func (rl *RateLimiter) reject(c *gin.Context, route RouteLimit, res admission, now time.Time) {
	retry := int(math.Ceil(res.reset.Sub(now).Seconds()))
	if retry < 0 {
		retry = 0
	}
	c.Header("Retry-After", strconv.Itoa(retry))

	rl.logger.Info("request rate limited",
		zap.String("route", route.Name),
		zap.String("client_ip", logger.MaskIP(c.ClientIP())),
		zap.Int("retry_after", retry),
	)

	c.AbortWithStatusJSON(http.StatusTooManyRequests, RateLimitedEnvelope{
		Success: false,
		Message: fmt.Sprintf("too many requests, try again in %d seconds", retry),
		Data:    RateLimitedDetail{Rule: route.Name, RetryAfter: retry},
		TraceID: GetTraceID(c),
	})
}
