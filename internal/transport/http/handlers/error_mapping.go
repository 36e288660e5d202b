package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/arklim/access-gateway/internal/infra/logger"
	"github.com/arklim/access-gateway/internal/infra/security"
	"github.com/arklim/access-gateway/internal/usecase"
)

// ErrorCase maps a sentinel error to an HTTP status code and response message.
// An empty Message reuses the sentinel's own text, never the text of whatever wrapped it.
type ErrorCase struct {
	Err     error
	Status  int
	Message string
}

// apiErrorCases is shared by every handler. Order matters only for errors wrapping several sentinels.
var apiErrorCases = []ErrorCase{
	{Err: usecase.ErrIPBlocked, Status: http.StatusForbidden, Message: "access denied"},
	{Err: usecase.ErrRegistrationDisabled, Status: http.StatusForbidden},
	{Err: usecase.ErrConfigReadOnly, Status: http.StatusForbidden},
	{Err: usecase.ErrCaptchaRequired, Status: http.StatusBadRequest},
	{Err: usecase.ErrCaptchaInvalid, Status: http.StatusBadRequest},
	{Err: usecase.ErrInvalidInput, Status: http.StatusBadRequest},
	{Err: usecase.ErrAlreadyExists, Status: http.StatusBadRequest},
	{Err: usecase.ErrConfigConflict, Status: http.StatusBadRequest},
	{Err: usecase.ErrInvalidCredentials, Status: http.StatusUnauthorized},
	{Err: usecase.ErrAccountDisabled, Status: http.StatusUnauthorized},
	{Err: usecase.ErrTooManyAttempts, Status: http.StatusTooManyRequests},
	{Err: usecase.ErrUserNotFound, Status: http.StatusNotFound},
	{Err: usecase.ErrConfigNotFound, Status: http.StatusNotFound},
}

// RespondWithMappedError resolves the provided error against known cases or falls back to a generic response.
// Fallback errors are logged because their text never reaches the caller.
func RespondWithMappedError(c *gin.Context, err error, cases []ErrorCase, fallbackStatus int, fallbackMessage string) {
	if err == nil {
		c.Status(http.StatusOK)
		return
	}

	var validation *security.CredentialValidationError
	if errors.As(err, &validation) {
		respondError(c, http.StatusBadRequest, validation.Message)
		return
	}
	var input *usecase.InputError
	if errors.As(err, &input) {
		respondError(c, http.StatusBadRequest, input.Message)
		return
	}
	var captcha *usecase.CaptchaError
	if errors.As(err, &captcha) {
		respondError(c, http.StatusBadRequest, captcha.Error())
		return
	}

	for _, cs := range cases {
		if cs.Err == nil {
			continue
		}
		if errors.Is(err, cs.Err) {
			message := cs.Message
			if message == "" {
				message = cs.Err.Error()
			}
			respondError(c, cs.Status, message)
			return
		}
	}

	logger.WithContext(c.Request.Context()).Error("request failed",
		zap.String("path", c.FullPath()),
		zap.String("client_ip", logger.MaskIP(c.ClientIP())),
		zap.Error(err),
	)
	_ = c.Error(err)
	respondError(c, fallbackStatus, fallbackMessage)
}

func respondMapped(c *gin.Context, err error) {
	RespondWithMappedError(c, err, apiErrorCases, http.StatusInternalServerError, "internal server error")
}
