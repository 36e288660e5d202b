package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/arklim/access-gateway/internal/core/domain"
	"github.com/arklim/access-gateway/internal/transport/http/middleware"
)

// Envelope is the uniform response body of every API endpoint.
type Envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
	TraceID string `json:"traceId,omitempty"`
}

func respondOK(c *gin.Context, status int, message string, data any) {
	c.JSON(status, Envelope{
		Success: true,
		Message: message,
		Data:    data,
		TraceID: middleware.GetTraceID(c),
	})
}

func respondError(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, middleware.NewErrorEnvelope(c, message))
}

// LoginRequest defines the payload for the login endpoint.
type LoginRequest struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	CaptchaID   string `json:"captchaId"`
	CaptchaCode string `json:"captchaCode"`
}

// LoginResponse is returned for a successful login.
type LoginResponse struct {
	Token     string      `json:"token"`
	TokenType string      `json:"tokenType"`
	ExpiresAt time.Time   `json:"expiresAt"`
	ExpiresIn int         `json:"expiresIn"`
	User      UserPayload `json:"user"`
}

// RegisterRequest defines the account registration payload.
type RegisterRequest struct {
	Username    string `json:"username"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	Nickname    string `json:"nickname"`
	CaptchaID   string `json:"captchaId"`
	CaptchaCode string `json:"captchaCode"`
}

// PasswordChangeRequest captures a password change request body.
type PasswordChangeRequest struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required"`
}

// UserPayload is the sanitized user profile. It never carries the password hash.
type UserPayload struct {
	ID            string            `json:"id"`
	Username      string            `json:"username"`
	Email         string            `json:"email,omitempty"`
	Nickname      string            `json:"nickname,omitempty"`
	Status        domain.UserStatus `json:"status"`
	LastLoginTime *time.Time        `json:"lastLoginTime,omitempty"`
	LastLoginIP   *string           `json:"lastLoginIp,omitempty"`
	LoginCount    int64             `json:"loginCount"`
	CreatedAt     time.Time         `json:"createdAt"`
}

func newUserPayload(p domain.UserProfile) UserPayload {
	return UserPayload{
		ID:            p.ID,
		Username:      p.Username,
		Email:         p.Email,
		Nickname:      p.Nickname,
		Status:        p.Status,
		LastLoginTime: p.LastLoginTime,
		LastLoginIP:   p.LastLoginIP,
		LoginCount:    p.LoginCount,
		CreatedAt:     p.CreatedAt,
	}
}

// UserStatusRequest switches an account between "active" and "disabled".
type UserStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// CaptchaResponse describes an issued challenge. Code is only set outside production.
type CaptchaResponse struct {
	CaptchaID      string    `json:"captchaId"`
	ExpiresAt      time.Time `json:"expiresAt"`
	CaptchaEnabled bool      `json:"captchaEnabled"`
	Code           string    `json:"code,omitempty"`
}

// ConfigUpdateRequest changes the value of an editable key.
type ConfigUpdateRequest struct {
	Value *string `json:"value" binding:"required"`
}

// ConfigCreateRequest adds a new policy key.
type ConfigCreateRequest struct {
	Key         string `json:"key" binding:"required"`
	Value       string `json:"value"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Type        string `json:"type"`
	Module      string `json:"module"`
	Editable    *bool  `json:"editable"`
}

// ConfigEntryPayload exposes a policy row with its metadata.
type ConfigEntryPayload struct {
	Key         string    `json:"key"`
	Value       string    `json:"value"`
	Name        string    `json:"name,omitempty"`
	Description string    `json:"description,omitempty"`
	Type        string    `json:"type"`
	Module      string    `json:"module,omitempty"`
	Editable    bool      `json:"editable"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func newConfigEntryPayload(e domain.ConfigEntry) ConfigEntryPayload {
	return ConfigEntryPayload{
		Key:         e.Key,
		Value:       e.Value,
		Name:        e.DisplayName,
		Description: e.Description,
		Type:        e.ValueType,
		Module:      e.Module,
		Editable:    e.Editable,
		UpdatedAt:   e.UpdatedAt,
	}
}

// LoginAttemptPayload is one audit row.
type LoginAttemptPayload struct {
	ID            string    `json:"id"`
	UserID        *string   `json:"userId,omitempty"`
	Username      string    `json:"username"`
	IPAddress     string    `json:"ipAddress"`
	UserAgent     string    `json:"userAgent,omitempty"`
	Outcome       string    `json:"outcome"`
	FailureReason string    `json:"failureReason,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

// LoginAttemptListResponse pages through the audit log.
type LoginAttemptListResponse struct {
	Items  []LoginAttemptPayload `json:"items"`
	Total  int                   `json:"total"`
	Limit  int                   `json:"limit"`
	Offset int                   `json:"offset"`
}

// HealthResponse describes the service health payload.
type HealthResponse struct {
	Status    string            `json:"status"`
	StartedAt time.Time         `json:"startedAt"`
	Checks    map[string]string `json:"checks,omitempty"`
}
