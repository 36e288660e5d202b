package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.App.Name != "access-gateway" || cfg.App.Port != 8080 {
		t.Fatalf("unexpected app settings: %+v", cfg.App)
	}
	if cfg.Captcha.Store != "memory" {
		t.Fatalf("expected memory captcha store, got %q", cfg.Captcha.Store)
	}
	if cfg.JWT.SessionTTL != 24*time.Hour {
		t.Fatalf("expected 24h session ttl, got %s", cfg.JWT.SessionTTL)
	}
	if cfg.Redis.Enabled || cfg.Kafka.Enabled {
		t.Fatalf("redis and kafka must be opt-in")
	}
	if cfg.App.IsProduction() {
		t.Fatalf("default env must not be production")
	}
}

func TestLoadReadsPrefixedEnv(t *testing.T) {
	t.Setenv("GATEWAY_APP_PORT", "9191")
	t.Setenv("GATEWAY_REDIS_ENABLED", "true")
	t.Setenv("GATEWAY_CAPTCHA_STORE", "redis")
	t.Setenv("GATEWAY_JWT_SESSION_TTL", "2h")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.App.Port != 9191 {
		t.Fatalf("expected port 9191, got %d", cfg.App.Port)
	}
	if !cfg.Redis.Enabled || cfg.Captcha.Store != "redis" {
		t.Fatalf("expected redis captcha store, got %+v / %+v", cfg.Redis, cfg.Captcha)
	}
	if cfg.JWT.SessionTTL != 2*time.Hour {
		t.Fatalf("expected 2h ttl, got %s", cfg.JWT.SessionTTL)
	}
}

func TestValidate(t *testing.T) {
	base := func() AppConfig {
		return AppConfig{
			App:       AppSettings{Env: "development", Port: 8080},
			Captcha:   CaptchaSettings{Store: "memory"},
			Telemetry: TelemetrySettings{SamplingRate: 1},
		}
	}

	cases := []struct {
		name    string
		mutate  func(*AppConfig)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*AppConfig) {}},
		{name: "bad port", mutate: func(c *AppConfig) { c.App.Port = 0 }, wantErr: true},
		{name: "unknown store", mutate: func(c *AppConfig) { c.Captcha.Store = "etcd" }, wantErr: true},
		{name: "redis store without redis", mutate: func(c *AppConfig) { c.Captcha.Store = "redis" }, wantErr: true},
		{name: "redis store with redis", mutate: func(c *AppConfig) {
			c.Captcha.Store = "redis"
			c.Redis.Enabled = true
		}},
		{name: "production without secret", mutate: func(c *AppConfig) { c.App.Env = "production" }, wantErr: true},
		{name: "production with secret", mutate: func(c *AppConfig) {
			c.App.Env = "production"
			c.JWT.Secret = "0123456789abcdef0123456789abcdef"
		}},
		{name: "kafka without brokers", mutate: func(c *AppConfig) { c.Kafka.Enabled = true }, wantErr: true},
		{name: "sampling out of range", mutate: func(c *AppConfig) { c.Telemetry.SamplingRate = 2 }, wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantErr && err == nil {
				t.Fatalf("expected error")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}
