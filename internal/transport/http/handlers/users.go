package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/arklim/access-gateway/internal/core/domain"
	"github.com/arklim/access-gateway/internal/transport/http/middleware"
)

// UserAdmin is the account management slice of usecase.AuthService.
type UserAdmin interface {
	SetUserStatus(ctx context.Context, actorID, userID string, status domain.UserStatus) (*domain.UserProfile, error)
}

// UserHandler lets authenticated operators soft-disable and re-enable accounts.
type UserHandler struct {
	users UserAdmin
}

func NewUserHandler(users UserAdmin) *UserHandler {
	return &UserHandler{users: users}
}

// RegisterRoutes binds the users group; callers attach authentication to r.
func (h *UserHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.PUT("/:id/status", h.setStatus)
}

func (h *UserHandler) setStatus(c *gin.Context) {
	actorID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "authentication required")
		return
	}

	var req UserStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "status is required")
		return
	}

	status := domain.UserStatus(strings.ToLower(strings.TrimSpace(req.Status)))
	profile, err := h.users.SetUserStatus(c.Request.Context(), actorID, c.Param("id"), status)
	if err != nil {
		respondMapped(c, err)
		return
	}

	respondOK(c, http.StatusOK, "user status updated", newUserPayload(*profile))
}
