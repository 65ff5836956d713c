package cryptox

import (
	"errors"
	"unicode"
)

// ErrWeakPassword is returned wherever a password is accepted from a user:
// registration, password change, and invitation acceptance all share this
// exact message.
var ErrWeakPassword = errors.New(
	"password must be at least 8 characters and contain an uppercase letter, a lowercase letter and a digit",
)

// ValidatePasswordStrength enforces the account password policy: minimum 8
// characters with at least one uppercase letter, one lowercase letter and one
// digit. There is no partial acceptance.
func ValidatePasswordStrength(password string) error {
	if len(password) < 8 {
		return ErrWeakPassword
	}

	var hasUpper, hasLower, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}

	if !hasUpper || !hasLower || !hasDigit {
		return ErrWeakPassword
	}
	return nil
}
