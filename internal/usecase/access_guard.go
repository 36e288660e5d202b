package usecase

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/arklim/access-gateway/internal/core/domain"
	"github.com/arklim/access-gateway/internal/infra/logger"
)

// AccessGuard decides whether a client address may use the login and registration endpoints.
type AccessGuard struct {
	policy PolicySource
	logger *zap.Logger
}

// NewAccessGuard wires the guard to policy.
func NewAccessGuard(policy PolicySource, log *zap.Logger) *AccessGuard {
	if log == nil {
		log = zap.NewNop()
	}
	return &AccessGuard{policy: policy, logger: log}
}

// IsBlacklisted reports whether ip matches security.ip.blacklist. An unreadable policy blocks.
func (g *AccessGuard) IsBlacklisted(ctx context.Context, ip string) bool {
	raw, err := g.policy.String(ctx, domain.ConfigIPBlacklist)
	if err != nil {
		g.logger.Warn("ip blacklist unavailable, blocking request",
			zap.String("ip", logger.MaskIP(ip)),
			zap.Error(err),
		)
		return true
	}
	return MatchBlacklist(ip, raw)
}

// MatchBlacklist matches ip against comma-separated rules. A rule ending in "*" matches any address
// starting with the text before it; other rules must match exactly.
func MatchBlacklist(ip, rules string) bool {
	ip = strings.TrimSpace(ip)
	if ip == "" || strings.TrimSpace(rules) == "" {
		return false
	}
	for _, rule := range strings.Split(rules, ",") {
		rule = strings.TrimSpace(rule)
		if rule == "" {
			continue
		}
		if prefix, ok := strings.CutSuffix(rule, "*"); ok {
			if strings.HasPrefix(ip, prefix) {
				return true
			}
			continue
		}
		if ip == rule {
			return true
		}
	}
	return false
}
