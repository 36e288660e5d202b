package domain

import "time"

// CaptchaChallenge is an ephemeral human-verification code. It is never persisted durably.
type CaptchaChallenge struct {
	ID        string
	Code      string
	Attempts  int
	CreatedAt time.Time
	ExpiresAt time.Time
}

// CaptchaResult is the outcome of consuming a challenge.
type CaptchaResult string

const (
	CaptchaValid    CaptchaResult = "valid"
	CaptchaNotFound CaptchaResult = "not_found"
	CaptchaExpired  CaptchaResult = "expired"
	CaptchaMismatch CaptchaResult = "mismatch"
)
