package handlers

import (
	"errors"
	"fmt"
	"guestbooklet/internal/auth"
	"guestbooklet/internal/config"
	"guestbooklet/internal/models"
	"guestbooklet/internal/repository"
	"guestbooklet/internal/security"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// genericResetMessage is returned by the forgot-password route whether or not
// the email exists
const genericResetMessage = "if the email exists, a reset link will be sent"

// AuthHandler handles HTTP requests for registration, login and the password
// reset flow
type AuthHandler struct {
	authService *auth.Service
	userRepo    repository.UserRepository
	auditRepo   repository.AuditLogRepository
	csrfStore   *security.CSRFTokenStore
	config      *config.Config
}

// NewAuthHandler creates a new authentication handler with the given dependencies
func NewAuthHandler(
	authService *auth.Service,
	userRepo repository.UserRepository,
	auditRepo repository.AuditLogRepository,
	csrfStore *security.CSRFTokenStore,
	cfg *config.Config,
) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		userRepo:    userRepo,
		auditRepo:   auditRepo,
		csrfStore:   csrfStore,
		config:      cfg,
	}
}

// audit records a security event, logging but never failing the request when
// the write fails
func (h *AuthHandler) audit(c *gin.Context, action models.AuditAction, userID *uuid.UUID, description string) {
	entry := &models.CreateAuditLogRequest{
		UserID:      userID,
		Action:      action,
		Description: description,
		IPAddress:   c.ClientIP(),
		Route:       c.FullPath(),
		UserAgent:   c.GetHeader("User-Agent"),
	}
	if err := h.auditRepo.Create(c.Request.Context(), entry); err != nil {
		log.Printf("Failed to create audit log: %v", err)
	}
}

// Register godoc
// @Summary Register new user
// @Description Register a new account, create its trial subscription and issue a session token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body models.RegisterRequest true "Registration details"
// @Success 201 {object} models.SessionResponse "Account created"
// @Failure 400 {object} models.ErrorResponse "Invalid request, weak password or email already registered"
// @Failure 403 {object} models.ErrorResponse "CSRF token missing or invalid"
// @Failure 429 {object} models.ErrorResponse "Rate limit exceeded"
// @Failure 500 {object} models.ErrorResponse "Internal server error"
// @Router /auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}

	result, err := h.authService.Register(c.Request.Context(), req)
	if err != nil {
		switch {
		case auth.IsPolicyViolation(err):
			c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		case errors.Is(err, repository.ErrEmailExists):
			c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "email already registered"})
		default:
			c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to process registration"})
		}
		return
	}

	h.audit(c, models.ActionUserRegistered, &result.User.ID,
		fmt.Sprintf("User %s registered successfully", result.User.Email))

	c.JSON(http.StatusCreated, models.SessionResponse{
		Token: result.Token,
		User:  result.User,
	})
}

// Login godoc
// @Summary User login
// @Description Authenticate a user and return a session token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body models.LoginRequest true "Login credentials"
// @Success 200 {object} models.SessionResponse "Login successful"
// @Failure 400 {object} models.ErrorResponse "Invalid request format"
// @Failure 401 {object} models.ErrorResponse "Invalid credentials"
// @Failure 423 {object} models.ErrorResponse "Account locked"
// @Failure 429 {object} models.ErrorResponse "Rate limit exceeded"
// @Failure 500 {object} models.ErrorResponse "Internal server error"
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}

	result, err := h.authService.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrAccountLocked):
			h.audit(c, models.ActionLockoutHit, nil,
				fmt.Sprintf("Login rejected for locked account, %d minutes remaining", result.LockedForMinutes))
			c.JSON(http.StatusLocked, models.ErrorResponse{
				Error:            "account temporarily locked, try again later",
				Locked:           true,
				LockedForMinutes: result.LockedForMinutes,
			})
		case errors.Is(err, auth.ErrInvalidCredentials):
			if result.Locked {
				h.audit(c, models.ActionAccountLocked, nil,
					fmt.Sprintf("Account locked after repeated failures, %d minutes", result.LockedForMinutes))
			} else {
				h.audit(c, models.ActionLoginFailed, nil, "Login failed")
			}
			attempts := result.AttemptsRemaining
			c.JSON(http.StatusUnauthorized, models.ErrorResponse{
				Error:             "email or password incorrect",
				AttemptsRemaining: &attempts,
				Locked:            result.Locked,
				LockedForMinutes:  result.LockedForMinutes,
			})
		default:
			c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to process login"})
		}
		return
	}

	h.audit(c, models.ActionLoginSuccess, &result.User.ID,
		fmt.Sprintf("User %s logged in successfully", result.User.Email))

	c.JSON(http.StatusOK, models.SessionResponse{
		Token: result.Token,
		User:  result.User,
	})
}

// Me godoc
// @Summary Current identity
// @Description Return the identity behind the presented session token
// @Tags auth
// @Produce json
// @Success 200 {object} models.User
// @Failure 401 {object} models.ErrorResponse "Missing or invalid session token"
// @Failure 404 {object} models.ErrorResponse "User no longer exists"
// @Security BearerAuth
// @Router /auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	user := auth.GetUserFromContext(c)
	if user == nil {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "user not found"})
		return
	}
	c.JSON(http.StatusOK, user)
}

// ChangePassword godoc
// @Summary Change password
// @Description Change the authenticated user's password. Session token possession is treated as proof of intent; no CSRF token is required here.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body models.ChangePasswordRequest true "New password"
// @Success 200 {object} models.SuccessResponse
// @Failure 400 {object} models.ErrorResponse "Weak password"
// @Failure 401 {object} models.ErrorResponse "Missing or invalid session token"
// @Failure 500 {object} models.ErrorResponse "Internal server error"
// @Security BearerAuth
// @Router /auth/password [put]
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	user := auth.GetUserFromContext(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "authentication required"})
		return
	}

	var req models.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}

	if err := h.authService.ChangePassword(c.Request.Context(), user.ID, req.NewPassword); err != nil {
		if auth.IsPolicyViolation(err) {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to change password"})
		return
	}

	h.audit(c, models.ActionPasswordChange, &user.ID,
		fmt.Sprintf("User %s changed password", user.Email))

	c.JSON(http.StatusOK, models.SuccessResponse{Message: "password changed"})
}

// ForgotPassword godoc
// @Summary Request password reset
// @Description Start the password reset flow. Always returns the same generic message whether or not the email exists.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body models.ForgotPasswordRequest true "User's email"
// @Success 200 {object} models.SuccessResponse "Generic message, independent of account existence"
// @Failure 400 {object} models.ErrorResponse "Invalid request format"
// @Failure 403 {object} models.ErrorResponse "CSRF token missing or invalid"
// @Failure 429 {object} models.ErrorResponse "Too many reset requests"
// @Router /auth/forgot-password [post]
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req models.ForgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}

	if err := h.authService.RequestPasswordReset(c.Request.Context(), req.Email); err != nil {
		if errors.Is(err, security.ErrTooManyResetRequests) {
			c.JSON(http.StatusTooManyRequests, models.ErrorResponse{Error: "too many reset requests"})
			return
		}
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to process request"})
		return
	}

	h.audit(c, models.ActionResetRequested, nil, "Password reset requested")

	c.JSON(http.StatusOK, models.SuccessResponse{Message: genericResetMessage})
}

// ResetPassword godoc
// @Summary Complete password reset
// @Description Consume a reset token and set a new password. Token lifecycle errors are reported with one generic message so tokens cannot be probed.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body models.ResetPasswordRequest true "Reset completion details"
// @Success 200 {object} models.SuccessResponse "Password reset successfully"
// @Failure 400 {object} models.ErrorResponse "Invalid request, weak password, or invalid/expired/used token"
// @Failure 403 {object} models.ErrorResponse "CSRF token missing or invalid"
// @Failure 500 {object} models.ErrorResponse "Internal server error"
// @Router /auth/reset-password [post]
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req models.ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}

	err := h.authService.CompletePasswordReset(c.Request.Context(), req.Token, req.NewPassword)
	if err != nil {
		switch {
		case auth.IsPolicyViolation(err):
			c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		case errors.Is(err, security.ErrResetTokenNotFound),
			errors.Is(err, security.ErrResetTokenUsed),
			errors.Is(err, security.ErrResetTokenExpired):
			// Distinguished internally for audit, generic externally
			log.Printf("Password reset rejected from %s: %v", c.ClientIP(), err)
			c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid or expired reset token"})
		default:
			c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to reset password"})
		}
		return
	}

	h.audit(c, models.ActionResetCompleted, nil, "Password reset completed")

	c.JSON(http.StatusOK, models.SuccessResponse{Message: "password reset successfully"})
}

// CSRFToken godoc
// @Summary Issue CSRF token
// @Description Issue a fresh anti-CSRF token for the caller's session. Any previously issued token for the session becomes invalid.
// @Tags auth
// @Produce json
// @Success 200 {object} models.CSRFTokenResponse
// @Failure 500 {object} models.ErrorResponse "Internal server error"
// @Router /auth/csrf-token [get]
func (h *AuthHandler) CSRFToken(c *gin.Context) {
	token, err := h.csrfStore.Issue(sessionKeyFor(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to issue csrf token"})
		return
	}

	c.JSON(http.StatusOK, models.CSRFTokenResponse{CSRFToken: token})
}

// sessionKeyFor derives the CSRF session key the same way the middleware does
func sessionKeyFor(c *gin.Context) string {
	if user := auth.GetUserFromContext(c); user != nil {
		return security.UserSessionKey(user.ID.String())
	}
	return security.AnonSessionKey(c.ClientIP(), c.GetHeader("User-Agent"))
}
