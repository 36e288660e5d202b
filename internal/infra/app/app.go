package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/arklim/access-gateway/internal/core/port"
	"github.com/arklim/access-gateway/internal/infra/config"
	"github.com/arklim/access-gateway/internal/infra/database"
	kafkainfra "github.com/arklim/access-gateway/internal/infra/kafka"
	"github.com/arklim/access-gateway/internal/infra/logger"
	redisinfra "github.com/arklim/access-gateway/internal/infra/redis"
	"github.com/arklim/access-gateway/internal/infra/security"
	"github.com/arklim/access-gateway/internal/infra/telemetry"
	"github.com/arklim/access-gateway/internal/repository/memory"
	postgresrepo "github.com/arklim/access-gateway/internal/repository/postgres"
	redisrepo "github.com/arklim/access-gateway/internal/repository/redis"
	"github.com/arklim/access-gateway/internal/transport/http/middleware"
	"github.com/arklim/access-gateway/internal/transport/http/routes"
	"github.com/arklim/access-gateway/internal/usecase"
)

const defaultShutdownTimeout = 10 * time.Second

type Application struct {
	cfg      *config.AppConfig
	engine   *gin.Engine
	logger   *zap.Logger
	pool     *pgxpool.Pool
	redis    *redisinfra.Client
	producer *kafkainfra.Producer
	tracer   *telemetry.TracerProvider
	captcha  port.ChallengeStore
	policy   *usecase.ConfigStore
}

func New(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	log, err := logger.New(cfg.App.Env, cfg.App.Name)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	a := &Application{cfg: cfg, logger: log}
	ok := false
	defer func() {
		if !ok {
			a.close(context.Background())
		}
	}()

	a.tracer, err = telemetry.NewTracerProvider(ctx, cfg.Telemetry, log)
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	authMetrics, err := telemetry.NewAuthMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("init auth metrics: %w", err)
	}
	httpMetrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{Registerer: registry})
	if err != nil {
		return nil, fmt.Errorf("init http metrics: %w", err)
	}

	a.pool, err = database.NewPostgresPool(ctx, cfg.Postgres, log)
	if err != nil {
		return nil, fmt.Errorf("init postgres: %w", err)
	}
	repos := postgresrepo.NewRepositories(a.pool)

	if cfg.Redis.Enabled {
		a.redis, err = redisinfra.NewClient(ctx, cfg.Redis, log)
		if err != nil {
			return nil, fmt.Errorf("init redis: %w", err)
		}
	} else {
		log.Info("redis disabled, login throttle and request limiter are off")
	}

	events := a.eventPublisher()

	policy := usecase.NewConfigStore(repos.Config, events, authMetrics, log)
	if err := policy.Init(ctx); err != nil {
		return nil, fmt.Errorf("init config store: %w", err)
	}
	a.policy = policy

	a.captcha = a.challengeStore()
	captcha := usecase.NewCaptchaService(a.captcha, policy, authMetrics, log)
	guard := usecase.NewAccessGuard(policy, log)
	audit := usecase.NewAuditLog(repos.LoginAttempts, events, authMetrics, log)

	argonCfg := security.DefaultArgon2Config()
	if cfg.Argon2.Memory > 0 {
		argonCfg = security.Argon2Config{
			Memory:      cfg.Argon2.Memory,
			Iterations:  cfg.Argon2.Iterations,
			Parallelism: cfg.Argon2.Parallelism,
			SaltLength:  cfg.Argon2.SaltLength,
			KeyLength:   cfg.Argon2.KeyLength,
		}
	}
	hasher, err := security.NewArgon2Hasher(argonCfg)
	if err != nil {
		return nil, fmt.Errorf("init password hasher: %w", err)
	}
	credentials := usecase.NewCredentialService(repos.Users, security.NewHashPool(hasher, cfg.Hashing.PoolSize), policy, log)

	secret, err := sessionSecret(cfg, log)
	if err != nil {
		return nil, err
	}
	sessions, err := security.NewSessionTokenIssuer(secret, cfg.JWT.Issuer, cfg.JWT.SessionTTL)
	if err != nil {
		return nil, fmt.Errorf("init session issuer: %w", err)
	}

	var (
		throttleStore port.RateLimitStore
		rateLimiter   *middleware.RateLimiter
	)
	if a.redis != nil {
		window := cfg.RateLimit.WindowDuration
		if window <= 0 {
			window = time.Minute
		}
		throttleStore = redisrepo.NewRateLimitRepository(a.redis.Client(), redisrepo.SlidingWindowConfig{
			KeyPrefix: cfg.Redis.KeyPrefix + ":throttle",
			TTL:       time.Hour,
		})
		rateLimiter = middleware.NewRateLimiter(redisrepo.NewRateLimitRepository(a.redis.Client(), redisrepo.SlidingWindowConfig{
			KeyPrefix: cfg.Redis.KeyPrefix + ":rate-limit",
			TTL:       window * 2,
		}), policy, window, log)
	}
	throttle := usecase.NewLoginThrottle(throttleStore, policy, log)

	authService, err := usecase.NewAuthService(usecase.AuthDependencies{
		Guard:       guard,
		Policy:      policy,
		Captcha:     captcha,
		Throttle:    throttle,
		Credentials: credentials,
		Audit:       audit,
		Sessions:    sessions,
		Events:      events,
		Metrics:     authMetrics,
		Logger:      log,
	})
	if err != nil {
		return nil, fmt.Errorf("init auth service: %w", err)
	}

	deps := routes.Dependencies{
		Config:      cfg,
		Logger:      log,
		RateLimiter: rateLimiter,
		HTTPMetrics: httpMetrics,
		Database:    a.pool,
		Services: routes.ServiceSet{
			Auth:    authService,
			Captcha: captcha,
			Config:  policy,
			Audit:   audit,
		},
	}
	if cfg.Telemetry.MetricsEnabled {
		deps.MetricsHandler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})
	}
	if a.redis != nil {
		deps.Cache = a.redis
	}
	a.engine = routes.Register(deps)

	ok = true
	return a, nil
}

func (a *Application) eventPublisher() port.EventPublisher {
	if !a.cfg.Kafka.Enabled {
		a.logger.Info("kafka disabled, using stub publisher")
		return kafkainfra.NewStubPublisher(a.logger)
	}

	producer, err := kafkainfra.NewProducer(a.cfg.Kafka, a.logger)
	if err != nil {
		a.logger.Warn("failed to init kafka producer, using stub publisher", zap.Error(err))
		return kafkainfra.NewStubPublisher(a.logger)
	}
	a.producer = producer
	a.logger.Info("kafka event publisher initialized",
		zap.Strings("brokers", a.cfg.Kafka.Brokers),
		zap.Bool("async", a.cfg.Kafka.Async),
	)
	return kafkainfra.NewEventPublisher(producer, a.cfg.App, a.logger)
}

func (a *Application) challengeStore() port.ChallengeStore {
	if a.cfg.Captcha.Store == "redis" && a.redis != nil {
		return redisrepo.NewChallengeStore(a.redis.Client(), a.cfg.Captcha.KeyPrefix, a.cfg.Captcha.Grace)
	}
	return memory.NewChallengeStore(a.cfg.Captcha.SweepInterval)
}

// sessionSecret returns the configured signing secret. Outside production a missing
// secret is replaced by a random one, so tokens do not survive a restart.
func sessionSecret(cfg *config.AppConfig, log *zap.Logger) (string, error) {
	if cfg.JWT.Secret != "" {
		return cfg.JWT.Secret, nil
	}
	if cfg.App.IsProduction() {
		return "", errors.New("jwt.secret is required in production")
	}
	secret, err := security.GenerateSecureToken(32)
	if err != nil {
		return "", fmt.Errorf("generate session secret: %w", err)
	}
	log.Warn("jwt.secret not set, using an ephemeral development secret")
	return secret, nil
}

func (a *Application) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.App.Port),
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	a.logger.Info("starting access gateway",
		zap.String("env", a.cfg.App.Env),
		zap.String("address", srv.Addr),
	)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- fmt.Errorf("run server: %w", err)
		}
	}()

	timeout := a.cfg.App.ShutdownTimeout
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		a.logger.Info("shutting down access gateway")
		err := srv.Shutdown(shutdownCtx)
		a.close(shutdownCtx)
		if err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		return nil
	case err := <-serverErrCh:
		a.close(context.Background())
		return err
	}
}

// close releases resources in reverse order of construction. Safe on a partially built Application.
func (a *Application) close(ctx context.Context) {
	if a.captcha != nil {
		_ = a.captcha.Close()
	}
	if a.policy != nil {
		a.policy.Shutdown()
	}
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Warn("close kafka producer", zap.Error(err))
		}
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.pool != nil {
		a.pool.Close()
	}
	if err := a.tracer.Shutdown(ctx); err != nil {
		a.logger.Warn("shutdown tracer provider", zap.Error(err))
	}
	_ = a.logger.Sync()
}
