package logger

import (
	"context"
	"net"
	"regexp"
	"strings"
	"sync"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	lg   *zap.Logger
	once sync.Once
)

// New returns the process-wide logger. Production gets JSON output, every other env the console encoder.
func New(env, service string) (*zap.Logger, error) {
	var err error
	once.Do(func() {
		cfg := zap.NewProductionConfig()
		if !strings.EqualFold(env, "production") {
			cfg = zap.NewDevelopmentConfig()
			cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		}

		var built *zap.Logger
		built, err = cfg.Build()
		if err != nil {
			return
		}
		if service != "" {
			built = built.With(zap.String("service", service))
		}
		lg = built
	})

	return lg, err
}

// WithContext returns the process logger enriched with the request id and trace id found on ctx.
func WithContext(ctx context.Context) *zap.Logger {
	base := lg
	if base == nil {
		base = zap.NewNop()
	}
	if ctx == nil {
		return base
	}

	fields := make([]zap.Field, 0, 2)
	if id := RequestID(ctx); id != "" {
		fields = append(fields, zap.String("request_id", id))
	}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		fields = append(fields, zap.String("trace_id", sc.TraceID().String()))
	}
	if len(fields) == 0 {
		return base
	}
	return base.With(fields...)
}

// RequestID extracts the request identifier stored by the HTTP middleware.
func RequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if val, ok := ctx.Value(RequestIDKey{}).(string); ok {
		return val
	}
	return ""
}

// RequestIDKey is used to store a request identifier on the context.
type RequestIDKey struct{}

var emailRegex = regexp.MustCompile(`^([^@]{1,3})[^@]*(@.+)$`)

// MaskEmail keeps up to three leading characters and the domain.
// Example: john.doe@example.com -> joh***@example.com
func MaskEmail(email string) string {
	if email == "" {
		return ""
	}

	matches := emailRegex.FindStringSubmatch(email)
	if len(matches) == 3 {
		return matches[1] + "***" + matches[2]
	}

	if _, domain, ok := strings.Cut(email, "@"); ok {
		return "***@" + domain
	}

	return "***"
}

// MaskIP hides the host part of an address: the last two octets for IPv4, all but four groups for IPv6.
// Example: 192.168.1.100 -> 192.168.*.*
func MaskIP(ip string) string {
	ip = strings.TrimSpace(ip)
	if ip == "" {
		return ""
	}

	parsed := net.ParseIP(ip)
	if parsed == nil {
		return "***"
	}

	if v4 := parsed.To4(); v4 != nil {
		parts := strings.Split(v4.String(), ".")
		return parts[0] + "." + parts[1] + ".*.*"
	}

	parts := strings.Split(ip, ":")
	if len(parts) >= 4 {
		return strings.Join(parts[:4], ":") + ":*:*:*:*"
	}
	return "***"
}

// MaskString keeps the first and last two characters.
// Example: "secret123" -> "se***23"
func MaskString(s string) string {
	if s == "" {
		return ""
	}

	length := len(s)
	if length <= 4 {
		return "***"
	}

	return s[:2] + "***" + s[length-2:]
}
