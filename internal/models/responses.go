package models

// SessionResponse represents the response to a successful login or registration
type SessionResponse struct {
	Token string `json:"token"`
	User  *User  `json:"user"`
}

// CSRFTokenResponse carries a freshly issued CSRF token
type CSRFTokenResponse struct {
	CSRFToken string `json:"csrfToken"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
	// RetryAfterSeconds is set on rate limit rejections
	RetryAfterSeconds int `json:"retryAfterSeconds,omitempty"`
	// AttemptsRemaining is set on failed logins before the lockout threshold
	AttemptsRemaining *int `json:"attemptsRemaining,omitempty"`
	// Locked is set when the account is locked out
	Locked bool `json:"locked,omitempty"`
	// LockedForMinutes is the remaining lockout time, rounded up
	LockedForMinutes int `json:"lockedForMinutes,omitempty"`
}

// SuccessResponse represents a success response
type SuccessResponse struct {
	Message string `json:"message"`
}
