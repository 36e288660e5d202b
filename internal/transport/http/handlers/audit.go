package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/arklim/access-gateway/internal/core/domain"
	"github.com/arklim/access-gateway/internal/core/port"
)

const (
	defaultAuditLimit = 50
	maxAuditLimit     = 200
)

// AuditReader is the slice of usecase.AuditLog the query endpoint needs.
type AuditReader interface {
	List(ctx context.Context, filter port.LoginAttemptFilter) ([]domain.LoginAttempt, int, error)
}

// AuditHandler serves the login-attempt history.
type AuditHandler struct {
	audit AuditReader
}

func NewAuditHandler(audit AuditReader) *AuditHandler {
	return &AuditHandler{audit: audit}
}

func (h *AuditHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/logins", h.logins)
}

// logins accepts userId, username, outcome, since (RFC 3339), limit and offset query parameters.
func (h *AuditHandler) logins(c *gin.Context) {
	filter, err := parseAttemptFilter(c)
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	attempts, total, err := h.audit.List(c.Request.Context(), filter)
	if err != nil {
		respondMapped(c, err)
		return
	}

	items := make([]LoginAttemptPayload, 0, len(attempts))
	for _, a := range attempts {
		items = append(items, LoginAttemptPayload{
			ID:            a.ID,
			UserID:        a.UserID,
			Username:      a.Username,
			IPAddress:     a.IPAddress,
			UserAgent:     a.UserAgent,
			Outcome:       string(a.Outcome),
			FailureReason: a.FailureReason,
			CreatedAt:     a.CreatedAt.UTC(),
		})
	}

	respondOK(c, http.StatusOK, "ok", LoginAttemptListResponse{
		Items:  items,
		Total:  total,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	})
}

type queryError string

func (e queryError) Error() string { return string(e) }

func parseAttemptFilter(c *gin.Context) (port.LoginAttemptFilter, error) {
	filter := port.LoginAttemptFilter{
		UserID:   strings.TrimSpace(c.Query("userId")),
		Username: strings.TrimSpace(c.Query("username")),
		Limit:    defaultAuditLimit,
	}

	if filter.UserID != "" {
		if _, err := uuid.Parse(filter.UserID); err != nil {
			return filter, queryError("userId must be a UUID")
		}
	}

	switch outcome := domain.LoginOutcome(strings.ToLower(strings.TrimSpace(c.Query("outcome")))); outcome {
	case "":
	case domain.LoginOutcomeSuccess, domain.LoginOutcomeFailure:
		filter.Outcome = outcome
	default:
		return filter, queryError("outcome must be success or failure")
	}

	if raw := strings.TrimSpace(c.Query("since")); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, queryError("since must be an RFC 3339 timestamp")
		}
		filter.Since = &since
	}

	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			return filter, queryError("limit must be a positive integer")
		}
		filter.Limit = min(limit, maxAuditLimit)
	}

	if raw := c.Query("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return filter, queryError("offset must be a non-negative integer")
		}
		filter.Offset = offset
	}

	return filter, nil
}
