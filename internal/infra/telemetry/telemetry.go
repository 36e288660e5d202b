package telemetry

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/arklim/access-gateway/internal/core/port"
)

const namespace = "gateway"

// AuthMetrics counts business outcomes of the access core in Prometheus.
type AuthMetrics struct {
	loginAttempts  *prometheus.CounterVec
	captchaResults *prometheus.CounterVec
	registrations  *prometheus.CounterVec
	configLoads    *prometheus.CounterVec
}

// NewAuthMetrics registers the auth collectors, reusing any already registered with reg.
func NewAuthMetrics(reg prometheus.Registerer) (*AuthMetrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	loginAttempts, err := Register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "auth",
		Name:      "login_attempts_total",
		Help:      "Login attempts partitioned by outcome and failure reason.",
	}, []string{"outcome", "reason"}))
	if err != nil {
		return nil, err
	}

	captchaResults, err := Register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "captcha",
		Name:      "verifications_total",
		Help:      "Captcha verifications partitioned by result.",
	}, []string{"result"}))
	if err != nil {
		return nil, err
	}

	registrations, err := Register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "auth",
		Name:      "registrations_total",
		Help:      "Registration attempts partitioned by outcome.",
	}, []string{"outcome"}))
	if err != nil {
		return nil, err
	}

	configLoads, err := Register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "config",
		Name:      "cache_loads_total",
		Help:      "Config snapshot loads from the database partitioned by result.",
	}, []string{"result"}))
	if err != nil {
		return nil, err
	}

	return &AuthMetrics{
		loginAttempts:  loginAttempts,
		captchaResults: captchaResults,
		registrations:  registrations,
		configLoads:    configLoads,
	}, nil
}

func (m *AuthMetrics) LoginAttempt(outcome, reason string) {
	m.loginAttempts.WithLabelValues(outcome, reason).Inc()
}

func (m *AuthMetrics) CaptchaVerified(result string) {
	m.captchaResults.WithLabelValues(result).Inc()
}

func (m *AuthMetrics) Registration(outcome string) {
	m.registrations.WithLabelValues(outcome).Inc()
}

func (m *AuthMetrics) ConfigLoad(result string) {
	m.configLoads.WithLabelValues(result).Inc()
}

// Register adds c to reg, returning the existing collector of the same type when one is already registered.
func Register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if !errors.As(err, &already) {
			return c, fmt.Errorf("register collector: %w", err)
		}
		existing, ok := already.ExistingCollector.(C)
		if !ok {
			return c, fmt.Errorf("existing collector has unexpected type %T", already.ExistingCollector)
		}
		return existing, nil
	}
	return c, nil
}

var _ port.AuthMetrics = (*AuthMetrics)(nil)
