package models

// RegisterRequest represents a registration request
type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email,max=254"`
	Password string `json:"password" binding:"required"`
	Name     string `json:"name" binding:"omitempty,max=100,nospaces"`
}

// LoginRequest represents a login request
type LoginRequest struct {
	Email    string `json:"email" binding:"required,max=254"`
	Password string `json:"password" binding:"required"`
}

// ChangePasswordRequest represents a password change for an authenticated user
type ChangePasswordRequest struct {
	NewPassword string `json:"new_password" binding:"required,max=72"`
}

// ForgotPasswordRequest represents a request to start a password reset
type ForgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// ResetPasswordRequest represents the request to complete a password reset
type ResetPasswordRequest struct {
	Token       string `json:"token" binding:"required"`
	NewPassword string `json:"new_password" binding:"required,max=72"`
}
