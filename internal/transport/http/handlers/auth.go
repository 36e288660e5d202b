package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/arklim/access-gateway/internal/core/domain"
	"github.com/arklim/access-gateway/internal/transport/http/middleware"
	"github.com/arklim/access-gateway/internal/usecase"
)

// AuthFlows is the slice of usecase.AuthService the auth endpoints need.
type AuthFlows interface {
	Login(ctx context.Context, req usecase.LoginRequest) (*usecase.LoginResult, error)
	Register(ctx context.Context, req usecase.RegisterRequest) (*domain.UserProfile, error)
	Profile(ctx context.Context, userID string) (*domain.UserProfile, error)
	ChangePassword(ctx context.Context, userID, current, next string) error
}

// AuthHandler exposes authentication endpoints.
type AuthHandler struct {
	auth AuthFlows
	now  func() time.Time
}

func NewAuthHandler(auth AuthFlows) *AuthHandler {
	return &AuthHandler{auth: auth, now: time.Now}
}

// RegisterRoutes binds the auth group. loginChain and registerChain run ahead of the public handlers.
func (h *AuthHandler) RegisterRoutes(r *gin.RouterGroup, requireAuth gin.HandlerFunc, loginChain, registerChain []gin.HandlerFunc) {
	r.POST("/login", append(append([]gin.HandlerFunc{}, loginChain...), h.login)...)
	r.POST("/register", append(append([]gin.HandlerFunc{}, registerChain...), h.register)...)

	r.POST("/logout", requireAuth, h.logout)
	r.GET("/profile", requireAuth, h.profile)
	r.POST("/password", requireAuth, h.changePassword)
}

func (h *AuthHandler) login(c *gin.Context) {
	// An undecodable body counts as empty so the address gate still answers first.
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		req = LoginRequest{}
	}

	reqCtx := middleware.GetRequestContext(c)
	result, err := h.auth.Login(c.Request.Context(), usecase.LoginRequest{
		Username:    strings.TrimSpace(req.Username),
		Password:    req.Password,
		CaptchaID:   strings.TrimSpace(req.CaptchaID),
		CaptchaCode: strings.TrimSpace(req.CaptchaCode),
		IPAddress:   reqCtx.IP,
		UserAgent:   reqCtx.UserAgent,
	})
	if err != nil {
		respondMapped(c, err)
		return
	}

	expiresIn := int(result.ExpiresAt.Sub(h.now()).Seconds())
	if expiresIn < 0 {
		expiresIn = 0
	}

	respondOK(c, http.StatusOK, "login successful", LoginResponse{
		Token:     result.Token,
		TokenType: "Bearer",
		ExpiresAt: result.ExpiresAt.UTC(),
		ExpiresIn: expiresIn,
		User:      newUserPayload(result.Profile),
	})
}

func (h *AuthHandler) register(c *gin.Context) {
	// An undecodable body counts as empty so the address gate still answers first.
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		req = RegisterRequest{}
	}

	reqCtx := middleware.GetRequestContext(c)
	profile, err := h.auth.Register(c.Request.Context(), usecase.RegisterRequest{
		Username:    req.Username,
		Email:       req.Email,
		Password:    req.Password,
		Nickname:    req.Nickname,
		CaptchaID:   strings.TrimSpace(req.CaptchaID),
		CaptchaCode: strings.TrimSpace(req.CaptchaCode),
		IPAddress:   reqCtx.IP,
		UserAgent:   reqCtx.UserAgent,
	})
	if err != nil {
		respondMapped(c, err)
		return
	}

	respondOK(c, http.StatusOK, "registration successful", newUserPayload(*profile))
}

// logout only acknowledges: session tokens are stateless and expire on their own.
func (h *AuthHandler) logout(c *gin.Context) {
	respondOK(c, http.StatusOK, "logged out", nil)
}

func (h *AuthHandler) profile(c *gin.Context) {
	userID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "authentication required")
		return
	}

	profile, err := h.auth.Profile(c.Request.Context(), userID)
	if err != nil {
		respondMapped(c, err)
		return
	}

	respondOK(c, http.StatusOK, "ok", newUserPayload(*profile))
}

func (h *AuthHandler) changePassword(c *gin.Context) {
	userID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "authentication required")
		return
	}

	var req PasswordChangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "current and new password are required")
		return
	}

	if err := h.auth.ChangePassword(c.Request.Context(), userID, req.CurrentPassword, req.NewPassword); err != nil {
		respondMapped(c, err)
		return
	}

	respondOK(c, http.StatusOK, "password changed", nil)
}
