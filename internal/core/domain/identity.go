package domain

import "time"

// UserStatus enumerates possible account states.
type UserStatus string

const (
	UserStatusActive   UserStatus = "active"
	UserStatusDisabled UserStatus = "disabled"
)

// User mirrors the persisted representation in the users table.
type User struct {
	ID            string
	Username      string
	Email         string
	PasswordHash  string
	Nickname      string
	Status        UserStatus
	LastLoginTime *time.Time
	LastLoginIP   *string
	LoginCount    int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Profile returns the sanitized projection of the user; the password hash never leaves the core.
func (u User) Profile() UserProfile {
	profile := UserProfile{
		ID:            u.ID,
		Username:      u.Username,
		Email:         u.Email,
		Nickname:      u.Nickname,
		Status:        u.Status,
		LastLoginTime: u.LastLoginTime,
		LoginCount:    u.LoginCount,
		CreatedAt:     u.CreatedAt,
	}
	if u.LastLoginIP != nil {
		ip := *u.LastLoginIP
		profile.LastLoginIP = &ip
	}
	return profile
}

// UserProfile is the caller-facing view of a user.
type UserProfile struct {
	ID            string
	Username      string
	Email         string
	Nickname      string
	Status        UserStatus
	LastLoginTime *time.Time
	LastLoginIP   *string
	LoginCount    int64
	CreatedAt     time.Time
}

// LoginOutcome enumerates the result of a login attempt.
type LoginOutcome string

const (
	LoginOutcomeSuccess LoginOutcome = "success"
	LoginOutcomeFailure LoginOutcome = "failure"
)

// Failure reasons recorded in the audit log.
const (
	FailureReasonUnknownUser     = "unknown user"
	FailureReasonBadPassword     = "bad password"
	FailureReasonAccountDisabled = "account disabled"
	FailureReasonTooManyAttempts = "too many attempts"
)

// LoginAttempt records a single authentication attempt. Rows are append-only.
type LoginAttempt struct {
	ID            string
	UserID        *string
	Username      string
	IPAddress     string
	UserAgent     string
	Outcome       LoginOutcome
	FailureReason string
	CreatedAt     time.Time
}
