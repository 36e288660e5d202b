package usecase

import (
	"errors"
	"fmt"

	"github.com/arklim/access-gateway/internal/core/domain"
)

var (
	// ErrIPBlocked indicates the caller's address matched the blacklist or the blacklist could not be read.
	ErrIPBlocked = errors.New("access denied for this address")
	// ErrRegistrationDisabled indicates login.register.enabled is not "true".
	ErrRegistrationDisabled = errors.New("registration is disabled")
	// ErrCaptchaRequired indicates captcha is enforced but no id or code was supplied.
	ErrCaptchaRequired = errors.New("captcha is required")
	// ErrCaptchaInvalid is matched by every *CaptchaError.
	ErrCaptchaInvalid = errors.New("captcha is invalid")
	// ErrInvalidCredentials is returned for both unknown users and wrong passwords.
	ErrInvalidCredentials = errors.New("invalid username or password")
	// ErrAccountDisabled indicates the credentials were correct but the account is disabled.
	ErrAccountDisabled = errors.New("account is disabled")
	// ErrTooManyAttempts indicates the username is locked out after repeated failures.
	ErrTooManyAttempts = errors.New("too many failed login attempts, try again later")
	// ErrAlreadyExists indicates the username or email is already registered.
	ErrAlreadyExists = errors.New("username or email already registered")
	// ErrUserNotFound indicates the referenced account does not exist.
	ErrUserNotFound = errors.New("user not found")
	// ErrConfigNotFound indicates the policy key does not exist.
	ErrConfigNotFound = errors.New("config key not found")
	// ErrConfigReadOnly indicates the policy key is not editable.
	ErrConfigReadOnly = errors.New("config key is read-only")
	// ErrConfigConflict indicates the policy key already exists.
	ErrConfigConflict = errors.New("config key already exists")
	// ErrInvalidInput indicates a required field is missing or malformed.
	ErrInvalidInput = errors.New("invalid input")
)

// CaptchaError reports why a captcha answer was rejected.
type CaptchaError struct {
	Reason domain.CaptchaResult
}

func (e *CaptchaError) Error() string {
	switch e.Reason {
	case domain.CaptchaExpired:
		return "captcha has expired"
	case domain.CaptchaMismatch:
		return "captcha code is incorrect"
	default:
		return "captcha not found or already used"
	}
}

// Is lets errors.Is(err, ErrCaptchaInvalid) match any captcha rejection.
func (e *CaptchaError) Is(target error) bool {
	return target == ErrCaptchaInvalid
}

// InputError carries a caller-safe description of a rejected request field.
type InputError struct {
	Message string
}

func (e *InputError) Error() string {
	return ErrInvalidInput.Error() + ": " + e.Message
}

// Is lets errors.Is(err, ErrInvalidInput) match any *InputError.
func (e *InputError) Is(target error) bool {
	return target == ErrInvalidInput
}

func invalidInput(format string, args ...any) error {
	return &InputError{Message: fmt.Sprintf(format, args...)}
}
