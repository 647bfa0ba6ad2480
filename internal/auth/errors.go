package auth

import "errors"

var (
	// ErrInvalidToken indicates the session token is invalid
	ErrInvalidToken = errors.New("invalid token")
	// ErrTokenExpired indicates the session token has expired
	ErrTokenExpired = errors.New("token expired")
	// ErrInvalidCredentials indicates the email or password was wrong; which
	// one is deliberately not distinguished
	ErrInvalidCredentials = errors.New("email or password incorrect")
	// ErrAccountLocked indicates too many failed logins for the account
	ErrAccountLocked = errors.New("account temporarily locked")
)

// Password policy violations, ordered by the rule that is checked first
var (
	ErrPasswordTooShort = errors.New("password must be at least 8 characters")
	ErrPasswordNoUpper  = errors.New("password must contain an uppercase letter")
	ErrPasswordNoLower  = errors.New("password must contain a lowercase letter")
	ErrPasswordNoDigit  = errors.New("password must contain a digit")
)

// IsPolicyViolation reports whether err is a password policy violation
func IsPolicyViolation(err error) bool {
	return errors.Is(err, ErrPasswordTooShort) ||
		errors.Is(err, ErrPasswordNoUpper) ||
		errors.Is(err, ErrPasswordNoLower) ||
		errors.Is(err, ErrPasswordNoDigit)
}
