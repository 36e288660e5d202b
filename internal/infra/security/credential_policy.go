package security

import (
	"fmt"
	"unicode"

	zxcvbn "github.com/nbutton23/zxcvbn-go"
)

// Credential fields checked by the policy rules.
const (
	FieldUsername = "username"
	FieldPassword = "password"
	FieldEmail    = "email"
)

// CredentialValidationError represents a single credential policy violation.
type CredentialValidationError struct {
	Field   string
	Code    string
	Message string
}

// Error implements error for CredentialValidationError.
func (e *CredentialValidationError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

// CredentialRule validates a value according to a specific policy rule.
type CredentialRule interface {
	Validate(value string) error
}

// CredentialRuleFunc adapts a function to be used as a CredentialRule.
type CredentialRuleFunc func(value string) error

// Validate executes the underlying rule function.
func (f CredentialRuleFunc) Validate(value string) error {
	return f(value)
}

// CredentialValidator applies a sequence of rules and stops at the first violation.
type CredentialValidator struct {
	rules []CredentialRule
}

// NewCredentialValidator constructs a validator with the provided rules.
func NewCredentialValidator(rules ...CredentialRule) *CredentialValidator {
	copied := make([]CredentialRule, len(rules))
	copy(copied, rules)
	return &CredentialValidator{rules: copied}
}

// Validate executes all rules and returns the first encountered violation.
func (v *CredentialValidator) Validate(value string) error {
	if v == nil {
		return fmt.Errorf("credential validator not configured")
	}
	for _, rule := range v.rules {
		if err := rule.Validate(value); err != nil {
			return err
		}
	}
	return nil
}

// LengthBounds carries the policy-driven length limits for a field.
type LengthBounds struct {
	Min int
	Max int
}

// UsernameValidator enforces length bounds, the [A-Za-z0-9_] charset and a leading letter.
func UsernameValidator(bounds LengthBounds) *CredentialValidator {
	return NewCredentialValidator(
		LengthRule(FieldUsername, bounds),
		StartsWithLetterRule(FieldUsername),
		UsernameCharsetRule(),
	)
}

// PasswordValidator enforces length bounds, letter and digit presence, no whitespace and an optional
// zxcvbn floor.
func PasswordValidator(bounds LengthBounds, minStrength int, userInputs ...string) *CredentialValidator {
	return NewCredentialValidator(
		LengthRule(FieldPassword, bounds),
		NoWhitespaceRule(FieldPassword),
		RequireLetterRule(),
		RequireDigitRule(),
		RequireStrengthRule(minStrength, userInputs...),
	)
}

// LengthRule ensures the value length in runes falls within bounds. A zero Max means unbounded.
func LengthRule(field string, bounds LengthBounds) CredentialRule {
	return CredentialRuleFunc(func(value string) error {
		n := len([]rune(value))
		if n < bounds.Min {
			return &CredentialValidationError{
				Field:   field,
				Code:    "min_length",
				Message: fmt.Sprintf("%s must be at least %d characters long", field, bounds.Min),
			}
		}
		if bounds.Max > 0 && n > bounds.Max {
			return &CredentialValidationError{
				Field:   field,
				Code:    "max_length",
				Message: fmt.Sprintf("%s must be at most %d characters long", field, bounds.Max),
			}
		}
		return nil
	})
}

// StartsWithLetterRule requires an ASCII letter in the first position.
func StartsWithLetterRule(field string) CredentialRule {
	return CredentialRuleFunc(func(value string) error {
		if value != "" && isASCIILetter(rune(value[0])) {
			return nil
		}
		return &CredentialValidationError{
			Field:   field,
			Code:    "leading_letter",
			Message: fmt.Sprintf("%s must start with a letter", field),
		}
	})
}

// UsernameCharsetRule limits usernames to ASCII letters, digits and underscore.
func UsernameCharsetRule() CredentialRule {
	return CredentialRuleFunc(func(value string) error {
		for _, r := range value {
			if isASCIILetter(r) || (r >= '0' && r <= '9') || r == '_' {
				continue
			}
			return &CredentialValidationError{
				Field:   FieldUsername,
				Code:    "charset",
				Message: "username may only contain letters, digits and underscores",
			}
		}
		return nil
	})
}

// NoWhitespaceRule rejects any unicode whitespace.
func NoWhitespaceRule(field string) CredentialRule {
	return CredentialRuleFunc(func(value string) error {
		for _, r := range value {
			if unicode.IsSpace(r) {
				return &CredentialValidationError{
					Field:   field,
					Code:    "whitespace",
					Message: fmt.Sprintf("%s must not contain whitespace", field),
				}
			}
		}
		return nil
	})
}

// RequireLetterRule ensures the password contains at least one unicode letter.
func RequireLetterRule() CredentialRule {
	return CredentialRuleFunc(func(password string) error {
		for _, r := range password {
			if unicode.IsLetter(r) {
				return nil
			}
		}
		return &CredentialValidationError{
			Field:   FieldPassword,
			Code:    "letter",
			Message: "password must include at least one letter",
		}
	})
}

// RequireDigitRule ensures the password contains at least one digit.
func RequireDigitRule() CredentialRule {
	return CredentialRuleFunc(func(password string) error {
		for _, r := range password {
			if unicode.IsDigit(r) {
				return nil
			}
		}
		return &CredentialValidationError{
			Field:   FieldPassword,
			Code:    "digit",
			Message: "password must include at least one digit",
		}
	})
}

// RequireDifferentFrom ensures the new password differs from the provided comparator.
func RequireDifferentFrom(comparator string) CredentialRule {
	return CredentialRuleFunc(func(password string) error {
		if password == comparator {
			return &CredentialValidationError{
				Field:   FieldPassword,
				Code:    "different",
				Message: "new password must be different from current password",
			}
		}
		return nil
	})
}

// RequireStrengthRule enforces a minimum zxcvbn score. A non-positive score disables the check.
func RequireStrengthRule(minScore int, userInputs ...string) CredentialRule {
	if minScore > 4 {
		minScore = 4
	}
	return CredentialRuleFunc(func(password string) error {
		if minScore <= 0 {
			return nil
		}

		result := zxcvbn.PasswordStrength(password, userInputs)
		if result.Score >= minScore {
			return nil
		}

		return &CredentialValidationError{
			Field:   FieldPassword,
			Code:    "weak_password",
			Message: "password is too weak; choose a more complex value",
		}
	})
}

func isASCIILetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}
