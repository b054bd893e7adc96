package validation

import (
	"errors"
	"regexp"
)

// Field rules for registration input. Violations are user-correctable and
// safe to show; none of the messages echo the submitted value.
var (
	ErrUsernameLength   = errors.New("username must be between 3 and 50 characters")
	ErrUsernameCharset  = errors.New("username can only contain letters, numbers, and underscores")
	ErrEmailRequired    = errors.New("a valid email address is required")
	ErrEmailTooLong     = errors.New("email cannot exceed 100 characters")
	ErrPasswordLength   = errors.New("password must be between 8 and 100 characters")
	ErrPasswordStrength = errors.New("password must contain at least one uppercase letter, one lowercase letter, one number, and one special character")
	ErrPasswordMismatch = errors.New("passwords do not match")
)

var (
	usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)
	emailPattern    = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

	passwordCharset = regexp.MustCompile(`^[A-Za-z\d@$!%*?&]+$`)
	hasLower        = regexp.MustCompile(`[a-z]`)
	hasUpper        = regexp.MustCompile(`[A-Z]`)
	hasDigit        = regexp.MustCompile(`\d`)
	hasSpecial      = regexp.MustCompile(`[@$!%*?&]`)
)

// ValidateUsername enforces the 3-50 character alphanumeric/underscore rule.
func ValidateUsername(username string) error {
	if len(username) < 3 || len(username) > 50 {
		return ErrUsernameLength
	}
	if !usernamePattern.MatchString(username) {
		return ErrUsernameCharset
	}
	return nil
}

// ValidateEmail enforces length and a simple address shape. Deliverability
// is not checked.
func ValidateEmail(email string) error {
	if len(email) > 100 {
		return ErrEmailTooLong
	}
	if !emailPattern.MatchString(email) {
		return ErrEmailRequired
	}
	return nil
}

// ValidatePassword enforces the complexity policy: 8-100 characters drawn
// from letters, digits and @$!%*?&, with at least one of each required class.
func ValidatePassword(password string) error {
	if len(password) < 8 || len(password) > 100 {
		return ErrPasswordLength
	}
	if !passwordCharset.MatchString(password) ||
		!hasLower.MatchString(password) ||
		!hasUpper.MatchString(password) ||
		!hasDigit.MatchString(password) ||
		!hasSpecial.MatchString(password) {
		return ErrPasswordStrength
	}
	return nil
}
