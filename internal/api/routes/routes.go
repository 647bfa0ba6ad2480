// Package routes handles the setup and configuration of API routes
package routes

import (
	"database/sql"
	_ "guestbooklet/docs" // Import swagger docs
	"guestbooklet/internal/api/handlers"
	"guestbooklet/internal/api/middleware"
	"guestbooklet/internal/auth"
	"guestbooklet/internal/config"
	"guestbooklet/internal/email"
	"guestbooklet/internal/repository"
	"guestbooklet/internal/repository/memory"
	"guestbooklet/internal/repository/postgres"
	"guestbooklet/internal/security"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// SetupRoutes configures all API routes and their handlers. A nil db wires
// the in-memory repositories for single-binary development. The returned
// sweeper is started and stopped by the caller.
func SetupRoutes(cfg *config.Config, db *sql.DB) (*gin.Engine, *security.Sweeper) {
	// Create router
	r := gin.Default()

	// Initialize health handler for basic routes
	healthHandler := handlers.NewHealthHandler(db)

	// Routes without rate limiting
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Apply the global rate limit to all other routes
	r.Use(middleware.NewRateLimiter(cfg).Middleware())

	// Initialize repositories
	var (
		userRepo  repository.UserRepository
		subRepo   repository.SubscriptionRepository
		auditRepo repository.AuditLogRepository
	)
	if db != nil {
		userRepo = postgres.NewUserRepository(db)
		subRepo = postgres.NewSubscriptionRepository(db)
		auditRepo = postgres.NewAuditLogRepository(db)
	} else {
		userRepo = memory.NewUserRepository()
		subRepo = memory.NewSubscriptionRepository()
		auditRepo = memory.NewAuditLogRepository()
	}

	// Initialize the ephemeral security stores
	lockout := security.NewLockoutTracker(cfg.Security, nil)
	csrfStore := security.NewCSRFTokenStore(cfg.Security, nil)
	resetLedger := security.NewResetLedger(cfg.Security, nil)
	routeLimits := security.NewRouteRateLimiter(cfg.Security, nil)

	sweeper := security.NewSweeper(cfg.Security.SweepSchedule)
	sweeper.Register("lockout", lockout)
	sweeper.Register("csrf", csrfStore)
	sweeper.Register("reset", resetLedger)
	sweeper.Register("ratelimit", routeLimits)

	// Initialize services
	emailService := email.NewService(cfg.Email)
	authService := auth.NewService(cfg, userRepo, subRepo, lockout, resetLedger, emailService)

	// Initialize middleware
	authMiddleware := middleware.NewAuthMiddleware(authService, userRepo)
	csrfMiddleware := middleware.NewCSRFMiddleware(csrfStore, auditRepo)
	routeLimiter := middleware.NewRouteLimiter(routeLimits, auditRepo)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService, userRepo, auditRepo, csrfStore, cfg)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		// Health check (no authentication required)
		v1.GET("/health", healthHandler.Health)

		// Auth routes
		authRoutes := v1.Group("/auth")
		{
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
		}
	}

	return r, sweeper
}
