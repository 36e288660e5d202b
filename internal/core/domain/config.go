package domain

import "time"

// Policy keys read by the access core.
const (
	ConfigCaptchaEnabled      = "login.captcha.enabled"
	ConfigRegisterEnabled     = "login.register.enabled"
	ConfigCaptchaExpiry       = "captcha.expiry.minutes"
	ConfigCaptchaMaxAttempts  = "captcha.max.attempts"
	ConfigPasswordMinLength   = "login.password.minLength"
	ConfigPasswordMaxLength   = "login.password.maxLength"
	ConfigPasswordMinStrength = "login.password.minStrength"
	ConfigUsernameMinLength   = "login.username.minLength"
	ConfigUsernameMaxLength   = "login.username.maxLength"
	ConfigLoginMaxRetry       = "login.password.maxRetry"
	ConfigLoginLockTime       = "login.password.lockTime"
	ConfigIPBlacklist         = "security.ip.blacklist"

	// Per-address request budgets for the public endpoints, counted over the configured window.
	ConfigRateLimitLogin    = "ratelimit.login.maxRequests"
	ConfigRateLimitRegister = "ratelimit.register.maxRequests"
	ConfigRateLimitCaptcha  = "ratelimit.captcha.maxRequests"
)

// ConfigEntry is a runtime-mutable policy row from sys_config.
type ConfigEntry struct {
	Key         string
	Value       string
	DisplayName string
	Description string
	ValueType   string
	Module      string
	Editable    bool
	UpdatedAt   time.Time
}
