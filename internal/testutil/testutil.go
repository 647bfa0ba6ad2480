// Package testutil provides utilities for testing
package testutil

import (
	"context"
	"guestbooklet/internal/api/handlers"
	"guestbooklet/internal/api/middleware"
	"guestbooklet/internal/auth"
	"guestbooklet/internal/config"
	"guestbooklet/internal/models"
	"guestbooklet/internal/repository/memory"
	"guestbooklet/internal/security"
	"guestbooklet/internal/validation"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// Clock is a controllable time source shared by the security stores in tests
type Clock struct {
	mu sync.Mutex
	t  time.Time
}

// NewClock creates a clock frozen at the given instant
func NewClock(start time.Time) *Clock {
	return &Clock{t: start}
}

// Now returns the clock's current instant
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

// Advance moves the clock forward
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// MockEmailSender records sent mail instead of dialing SMTP. Captured reset
// tokens double as the test backdoor for the reset flow.
type MockEmailSender struct {
	mu          sync.Mutex
	Welcomes    []string
	ResetTokens map[string]string // email -> most recent token
}

// NewMockEmailSender creates an empty mock sender
func NewMockEmailSender() *MockEmailSender {
	return &MockEmailSender{ResetTokens: make(map[string]string)}
}

func (s *MockEmailSender) SendWelcomeEmail(to, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Welcomes = append(s.Welcomes, to)
	return nil
}

func (s *MockEmailSender) SendPasswordResetEmail(to, name, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ResetTokens[to] = token
	return nil
}

// LastResetToken returns the most recent reset token mailed to an address
func (s *MockEmailSender) LastResetToken(to string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ResetTokens[to]
}

// TestConfig returns a configuration with production defaults, a test signing
// secret and the cheapest bcrypt cost
func TestConfig(t *testing.T) *config.Config {
	t.Helper()

	t.Setenv("JWT_SECRET", "test_secret_key")
	t.Setenv("BCRYPT_COST", "4")

	cfg := &config.Config{}
	require.NoError(t, cfg.LoadFromEnv())
	return cfg
}

// TestContext holds common test dependencies wired against the in-memory
// repositories and a controllable clock
type TestContext struct {
	T        *testing.T
	Config   *config.Config
	Clock    *Clock
	UserRepo *memory.UserRepository
	SubRepo  *memory.SubscriptionRepository
	Audit    *memory.AuditLogRepository

	Lockout     *security.LockoutTracker
	CSRFStore   *security.CSRFTokenStore
	ResetLedger *security.ResetLedger
	RouteLimits *security.RouteRateLimiter

	AuthService *auth.Service
	Email       *MockEmailSender
	AuthHandler *handlers.AuthHandler
	Router      *gin.Engine
}

// NewTestContext creates a new test context with all dependencies
func NewTestContext(t *testing.T) *TestContext {
	t.Helper()

	gin.SetMode(gin.TestMode)
	validation.Initialize()

	cfg := TestConfig(t)
	clock := NewClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))

	userRepo := memory.NewUserRepository()
	subRepo := memory.NewSubscriptionRepository()
	auditRepo := memory.NewAuditLogRepository()

	lockout := security.NewLockoutTracker(cfg.Security, clock.Now)
	csrfStore := security.NewCSRFTokenStore(cfg.Security, clock.Now)
	resetLedger := security.NewResetLedger(cfg.Security, clock.Now)
	routeLimits := security.NewRouteRateLimiter(cfg.Security, clock.Now)

	emailSender := NewMockEmailSender()
	authService := auth.NewService(cfg, userRepo, subRepo, lockout, resetLedger, emailSender).
		WithSleep(func(time.Duration) {})

	authMiddleware := middleware.NewAuthMiddleware(authService, userRepo)
	csrfMiddleware := middleware.NewCSRFMiddleware(csrfStore, auditRepo)
	routeLimiter := middleware.NewRouteLimiter(routeLimits, auditRepo)

	authHandler := handlers.NewAuthHandler(authService, userRepo, auditRepo, csrfStore, cfg)

	// Mirror the production route table
	router := gin.New()
	v1 := router.Group("/api/v1")
	authRoutes := v1.Group("/auth")
	authRoutes.POST("/login",
		routeLimiter.Limit(security.RouteLogin),
		authHandler.Login)
	authRoutes.POST("/register",
		routeLimiter.Limit(security.RouteRegister),
		csrfMiddleware.Require(),
		authHandler.Register)
	authRoutes.GET("/me",
		authMiddleware.AuthRequired(),
		authHandler.Me)
	authRoutes.PUT("/password",
		authMiddleware.AuthRequired(),
		authHandler.ChangePassword)
	authRoutes.POST("/forgot-password",
		routeLimiter.Limit(security.RouteGeneric),
		csrfMiddleware.Require(),
		authHandler.ForgotPassword)
	authRoutes.POST("/reset-password",
		routeLimiter.Limit(security.RouteGeneric),
		csrfMiddleware.Require(),
		authHandler.ResetPassword)
	authRoutes.GET("/csrf-token",
		routeLimiter.Limit(security.RouteGeneric),
		authHandler.CSRFToken)

	return &TestContext{
		T:           t,
		Config:      cfg,
		Clock:       clock,
		UserRepo:    userRepo,
		SubRepo:     subRepo,
		Audit:       auditRepo,
		Lockout:     lockout,
		CSRFStore:   csrfStore,
		ResetLedger: resetLedger,
		RouteLimits: routeLimits,
		AuthService: authService,
		Email:       emailSender,
		AuthHandler: authHandler,
		Router:      router,
	}
}

// CreateTestUser creates a user directly in the identity store and returns it
func (tc *TestContext) CreateTestUser(email, password, name string) *models.User {
	tc.T.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(tc.T, err)

	user := &models.User{
		Email:        email,
		PasswordHash: string(hash),
		Name:         name,
		Role:         "user",
	}
	require.NoError(tc.T, tc.UserRepo.Create(context.Background(), user))
	return user
}
