// Package auth provides the credential service: registration, login, session
// token issuance and verification, and the password reset flow.
package auth

import (
	"context"
	"errors"
	"fmt"
	"guestbooklet/internal/config"
	"guestbooklet/internal/email"
	"guestbooklet/internal/models"
	"guestbooklet/internal/repository"
	"guestbooklet/internal/security"
	"log"
	"math"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Service orchestrates credential operations. It composes the lockout
// tracker and reset ledger and consults the identity store, but owns no
// identity lifecycle itself.
type Service struct {
	config  *config.Config
	users   repository.UserRepository
	subs    repository.SubscriptionRepository
	lockout *security.LockoutTracker
	resets  *security.ResetLedger
	email   email.Sender

	// sleep applies the fixed timing-equalization delay on not-found paths
	// so latency does not reveal whether an account exists. Injectable so
	// tests do not actually wait.
	sleep func(time.Duration)
}

// NewService creates a new credential service
func NewService(
	cfg *config.Config,
	users repository.UserRepository,
	subs repository.SubscriptionRepository,
	lockout *security.LockoutTracker,
	resets *security.ResetLedger,
	emailSender email.Sender,
) *Service {
	return &Service{
		config:  cfg,
		users:   users,
		subs:    subs,
		lockout: lockout,
		resets:  resets,
		email:   emailSender,
		sleep:   time.Sleep,
	}
}

// WithSleep replaces the timing-delay sleep function and returns the service.
// Tests use a no-op so the delay does not slow them down.
func (s *Service) WithSleep(fn func(time.Duration)) *Service {
	s.sleep = fn
	return s
}

// SessionClaims is the verified identity carried by a session token
type SessionClaims struct {
	UserID uuid.UUID
	Email  string
}

// LoginResult carries the outcome of a login attempt. On failure the lockout
// fields describe how the client should back off.
type LoginResult struct {
	Token             string
	User              *models.User
	AttemptsRemaining int
	Locked            bool
	LockedForMinutes  int
}

// Register validates the password policy, persists a new identity with a
// trial subscription and issues a session token. The welcome email is
// dispatched asynchronously and never fails or delays the response.
func (s *Service) Register(ctx context.Context, req models.RegisterRequest) (*LoginResult, error) {
	if err := ValidatePasswordPolicy(req.Password); err != nil {
		return nil, err
	}

	emailAddr := security.NormalizeEmail(req.Email)
	if !IsValidEmail(emailAddr) {
		return nil, fmt.Errorf("invalid email address")
	}

	if _, err := s.users.GetByEmail(ctx, emailAddr); err == nil {
		return nil, repository.ErrEmailExists
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return nil, err
	}

	hash, err := s.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Email:        emailAddr,
		PasswordHash: hash,
		Name:         req.Name,
		Role:         "user",
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	if _, err := s.subs.Create(ctx, user.ID, models.TierTrial); err != nil {
		return nil, fmt.Errorf("failed to create trial subscription: %w", err)
	}

	go func() {
		if err := s.email.SendWelcomeEmail(user.Email, user.Name); err != nil {
			log.Printf("Failed to send welcome email to %s: %v", user.Email, err)
		}
	}()

	token, err := s.GenerateToken(user)
	if err != nil {
		return nil, err
	}

	return &LoginResult{Token: token, User: user}, nil
}

// Login verifies credentials for an email. The lockout tracker is consulted
// first and updated for the submitted email string whether or not an account
// exists; the not-found path applies the timing-equalization delay instead of
// a hash comparison.
func (s *Service) Login(ctx context.Context, emailAddr, password string) (*LoginResult, error) {
	status := s.lockout.Status(emailAddr)
	if status.Locked {
		return &LoginResult{
			Locked:           true,
			LockedForMinutes: remainingMinutes(status.Remaining),
		}, ErrAccountLocked
	}

	user, err := s.users.GetByEmail(ctx, security.NormalizeEmail(emailAddr))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			status = s.lockout.RecordFailure(emailAddr)
			s.sleep(s.config.Security.TimingDelay)
			return failureResult(status), ErrInvalidCredentials
		}
		return nil, err
	}

	if err := s.ComparePasswords(user.PasswordHash, password); err != nil {
		status = s.lockout.RecordFailure(emailAddr)
		return failureResult(status), ErrInvalidCredentials
	}

	s.lockout.Clear(emailAddr)

	token, err := s.GenerateToken(user)
	if err != nil {
		return nil, err
	}

	return &LoginResult{Token: token, User: user}, nil
}

// ChangePassword re-validates the password policy and persists a new hash
func (s *Service) ChangePassword(ctx context.Context, userID uuid.UUID, newPassword string) error {
	if err := ValidatePasswordPolicy(newPassword); err != nil {
		return err
	}

	hash, err := s.HashPassword(newPassword)
	if err != nil {
		return err
	}

	return s.users.UpdatePassword(ctx, userID, hash)
}

// RequestPasswordReset starts the reset flow for an email. The not-found path
// applies the timing-equalization delay and reports success; only the request
// budget surfaces an error. The reset email is dispatched asynchronously.
func (s *Service) RequestPasswordReset(ctx context.Context, emailAddr string) error {
	user, err := s.users.GetByEmail(ctx, security.NormalizeEmail(emailAddr))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			s.sleep(s.config.Security.TimingDelay)
			return nil
		}
		return err
	}

	token, err := s.resets.Request(user.ID)
	if err != nil {
		return err
	}

	go func() {
		if err := s.email.SendPasswordResetEmail(user.Email, user.Name, token); err != nil {
			log.Printf("Failed to send password reset email to %s: %v", user.Email, err)
		}
	}()

	return nil
}

// CompletePasswordReset consumes a reset token and applies the new password
func (s *Service) CompletePasswordReset(ctx context.Context, token, newPassword string) error {
	if err := ValidatePasswordPolicy(newPassword); err != nil {
		return err
	}

	userID, err := s.resets.Consume(token)
	if err != nil {
		return err
	}

	hash, err := s.HashPassword(newPassword)
	if err != nil {
		return err
	}

	return s.users.UpdatePassword(ctx, userID, hash)
}

// GenerateToken generates a signed session token for a user
func (s *Service) GenerateToken(user *models.User) (string, error) {
	claims := jwt.MapClaims{
		"sub":   user.ID.String(),
		"email": user.Email,
		"exp":   time.Now().Add(s.config.Auth.SessionTTL).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.config.Auth.JWTSecret))
}

// VerifySession validates a session token's signature and expiry and returns
// its claims. This is a pure function with no mutable state.
func (s *Service) VerifySession(tokenString string) (*SessionClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(s.config.Auth.JWTSecret), nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	sub, ok := claims["sub"].(string)
	if !ok {
		return nil, ErrInvalidToken
	}
	userID, err := uuid.Parse(sub)
	if err != nil {
		return nil, ErrInvalidToken
	}

	emailClaim, _ := claims["email"].(string)
	return &SessionClaims{UserID: userID, Email: emailClaim}, nil
}

// HashPassword hashes a password using bcrypt at the configured cost
func (s *Service) HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), s.config.Auth.BcryptCost)
	return string(bytes), err
}

// ComparePasswords compares a hashed password with a plain text password
func (s *Service) ComparePasswords(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}

// GetUserFromContext retrieves the authenticated user from the gin context
func GetUserFromContext(c *gin.Context) *models.User {
	user, exists := c.Get("user")
	if !exists {
		return nil
	}
	if u, ok := user.(*models.User); ok {
		return u
	}
	return nil
}

func failureResult(status security.LockoutStatus) *LoginResult {
	return &LoginResult{
		AttemptsRemaining: status.AttemptsRemaining,
		Locked:            status.Locked,
		LockedForMinutes:  remainingMinutes(status.Remaining),
	}
}

func remainingMinutes(d time.Duration) int {
	return int(math.Ceil(d.Minutes()))
}
