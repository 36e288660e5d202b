package routes

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/arklim/access-gateway/internal/core/domain"
	"github.com/arklim/access-gateway/internal/infra/config"
	"github.com/arklim/access-gateway/internal/transport/http/handlers"
	"github.com/arklim/access-gateway/internal/transport/http/middleware"
)

// AuthService is satisfied by *usecase.AuthService.
type AuthService interface {
	handlers.AuthFlows
	handlers.UserAdmin
	middleware.SessionTokenParser
}

// ServiceSet groups the services the HTTP layer depends on.
type ServiceSet struct {
	Auth    AuthService
	Captcha handlers.CaptchaIssuer
	Config  handlers.ConfigManager
	Audit   handlers.AuditReader
}

// Dependencies encapsulates the objects required to register routes.
type Dependencies struct {
	Config         *config.AppConfig
	Logger         *zap.Logger
	RateLimiter    *middleware.RateLimiter
	HTTPMetrics    *middleware.HTTPMetrics
	MetricsHandler http.Handler
	Services       ServiceSet
	Database       DatabaseChecker
	Cache          CacheChecker
}

// DatabaseChecker exposes readiness behaviour for database connections.
type DatabaseChecker interface {
	Ping(ctx context.Context) error
}

// CacheChecker exposes readiness behaviour for cache backends.
type CacheChecker interface {
	HealthCheck(ctx context.Context) error
}

// Register configures the Gin engine with routes and middleware.
func Register(deps Dependencies) *gin.Engine {
	if deps.Config.App.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.EnrichContext())
	r.Use(middleware.RequestID())
	r.Use(middleware.Tracing())
	r.Use(middleware.Logger(deps.Logger))
	r.Use(middleware.CORS(deps.Config.App.AllowedOrigins))
	if deps.HTTPMetrics != nil {
		r.Use(deps.HTTPMetrics.Handler())
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, middleware.NewErrorEnvelope(c, "route not found"))
	})

	healthOptions := make([]handlers.HealthOption, 0, 2)
	if deps.Database != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("postgres", deps.Database.Ping))
	}
	if deps.Cache != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("redis", deps.Cache.HealthCheck))
	}
	healthHandler := handlers.NewHealthHandler(healthOptions...)

	r.GET("/healthz", healthHandler.Status)
	r.GET("/readyz", healthHandler.Readiness)

	if deps.MetricsHandler != nil {
		r.GET("/metrics", gin.WrapH(deps.MetricsHandler))
	} else if deps.Config.Telemetry.MetricsEnabled {
		r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	api := r.Group("/api/v1")

	if deps.Services.Captcha != nil {
		captchaHandler := handlers.NewCaptchaHandler(deps.Services.Captcha, !deps.Config.App.IsProduction())
		captchaHandler.RegisterRoutes(api, ipLimit(deps, "captcha_ip", domain.ConfigRateLimitCaptcha, deps.Config.RateLimit.CaptchaMaxAttempts)...)
	}

	if deps.Services.Auth == nil {
		return r
	}

	requireAuth := middleware.RequireAuth(deps.Services.Auth)

	authHandler := handlers.NewAuthHandler(deps.Services.Auth)
	authHandler.RegisterRoutes(api.Group("/auth"), requireAuth,
		ipLimit(deps, "auth_login_ip", domain.ConfigRateLimitLogin, deps.Config.RateLimit.LoginMaxAttempts),
		ipLimit(deps, "auth_register_ip", domain.ConfigRateLimitRegister, deps.Config.RateLimit.RegisterMaxAttempts),
	)

	usersGroup := api.Group("/users")
	usersGroup.Use(requireAuth)
	handlers.NewUserHandler(deps.Services.Auth).RegisterRoutes(usersGroup)

	if deps.Services.Config != nil {
		configGroup := api.Group("/config")
		configGroup.Use(requireAuth)
		handlers.NewConfigHandler(deps.Services.Config).RegisterRoutes(configGroup)
	}

	if deps.Services.Audit != nil {
		auditGroup := api.Group("/audit")
		auditGroup.Use(requireAuth)
		handlers.NewAuditHandler(deps.Services.Audit).RegisterRoutes(auditGroup)
	}

	return r
}

// ipLimit builds the per-client-IP limiter chain for a public route, or nil when limiting is off.
// fallback applies until the policy key is set.
func ipLimit(deps Dependencies, name, policyKey string, fallback int) []gin.HandlerFunc {
	if deps.RateLimiter == nil {
		return nil
	}
	return []gin.HandlerFunc{deps.RateLimiter.Limit(middleware.RouteLimit{
		Name:      name,
		PolicyKey: policyKey,
		Default:   fallback,
	})}
}
