package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/arklim/access-gateway/internal/core/domain"
)

// CaptchaIssuer is the slice of usecase.CaptchaService the endpoint needs.
type CaptchaIssuer interface {
	Required(ctx context.Context) bool
	Issue(ctx context.Context) (domain.CaptchaChallenge, error)
}

// CaptchaHandler issues challenges. The code itself only leaves the process when exposeCode is set,
// which is the case outside production where no rendering service exists.
type CaptchaHandler struct {
	captcha    CaptchaIssuer
	exposeCode bool
}

func NewCaptchaHandler(captcha CaptchaIssuer, exposeCode bool) *CaptchaHandler {
	return &CaptchaHandler{captcha: captcha, exposeCode: exposeCode}
}

func (h *CaptchaHandler) RegisterRoutes(r *gin.RouterGroup, chain ...gin.HandlerFunc) {
	r.GET("/captcha", append(append([]gin.HandlerFunc{}, chain...), h.issue)...)
}

func (h *CaptchaHandler) issue(c *gin.Context) {
	ctx := c.Request.Context()

	challenge, err := h.captcha.Issue(ctx)
	if err != nil {
		respondMapped(c, err)
		return
	}

	resp := CaptchaResponse{
		CaptchaID:      challenge.ID,
		ExpiresAt:      challenge.ExpiresAt.UTC(),
		CaptchaEnabled: h.captcha.Required(ctx),
	}
	if h.exposeCode {
		resp.Code = challenge.Code
	}

	respondOK(c, http.StatusOK, "captcha issued", resp)
}
