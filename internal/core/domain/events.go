package domain

import "time"

// UserRegisteredEvent represents the payload for gateway.user.registered messages.
type UserRegisteredEvent struct {
	EventID      string
	UserID       string
	Username     string
	Email        *string
	RegisteredAt time.Time
	IPAddress    string
}

// LoginAttemptedEvent represents the payload for gateway.login.attempted messages.
type LoginAttemptedEvent struct {
	EventID       string
	UserID        *string
	Username      string
	IPAddress     string
	Outcome       LoginOutcome
	FailureReason string
	AttemptedAt   time.Time
}

// ConfigChangedEvent represents the payload for gateway.config.changed messages.
type ConfigChangedEvent struct {
	EventID   string
	Key       string
	Value     string
	Action    string
	ChangedBy string
	ChangedAt time.Time
}
