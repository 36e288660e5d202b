package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/arklim/access-gateway/internal/infra/logger"
)

const readinessTimeout = 2 * time.Second

// ReadinessCheck reports whether a dependency can serve traffic.
type ReadinessCheck func(ctx context.Context) error

type namedCheck struct {
	name  string
	check ReadinessCheck
}

// HealthHandler exposes liveness and readiness information.
type HealthHandler struct {
	startedAt time.Time
	checks    []namedCheck
}

// HealthOption configures HealthHandler.
type HealthOption func(*HealthHandler)

// WithReadinessCheck adds a dependency probe to /readyz.
func WithReadinessCheck(name string, check ReadinessCheck) HealthOption {
	return func(h *HealthHandler) {
		if check != nil {
			h.checks = append(h.checks, namedCheck{name: name, check: check})
		}
	}
}

// NewHealthHandler builds a new health handler instance.
func NewHealthHandler(opts ...HealthOption) *HealthHandler {
	h := &HealthHandler{startedAt: time.Now().UTC()}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Status reports liveness only; it never touches dependencies.
func (h *HealthHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:    "ok",
		StartedAt: h.startedAt,
	})
}

// Readiness runs every dependency probe and answers 503 if any fails.
func (h *HealthHandler) Readiness(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), readinessTimeout)
	defer cancel()

	status := http.StatusOK
	results := make(map[string]string, len(h.checks))
	for _, nc := range h.checks {
		if err := nc.check(ctx); err != nil {
			status = http.StatusServiceUnavailable
			results[nc.name] = "unavailable"
			logger.WithContext(c.Request.Context()).Warn("readiness check failed", zap.String("check", nc.name), zap.Error(err))
			continue
		}
		results[nc.name] = "ok"
	}

	resp := HealthResponse{Status: "ok", StartedAt: h.startedAt, Checks: results}
	if status != http.StatusOK {
		resp.Status = "degraded"
	}
	c.JSON(status, resp)
}
