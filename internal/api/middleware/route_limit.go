package middleware

import (
	"fmt"
	"guestbooklet/internal/models"
	"guestbooklet/internal/repository"
	"guestbooklet/internal/security"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
)

// RouteLimiter applies the per-route-class fixed-window budgets. Refundable
// classes (login, registration) get their unit back when the handler responds
// with a success status, so only failed outcomes consume the budget.
type RouteLimiter struct {
	limiter   *security.RouteRateLimiter
	auditRepo repository.AuditLogRepository
}

// NewRouteLimiter creates a new route-class rate limit middleware
func NewRouteLimiter(limiter *security.RouteRateLimiter, auditRepo repository.AuditLogRepository) *RouteLimiter {
	return &RouteLimiter{
		limiter:   limiter,
		auditRepo: auditRepo,
	}
}

// Limit enforces the budget for one route class
func (rl *RouteLimiter) Limit(class security.RouteClass) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()

		decision := rl.limiter.Check(class, ip)
		if !decision.Allowed {
			entry := &models.CreateAuditLogRequest{
				Action:      models.ActionRateLimited,
				Description: fmt.Sprintf("rate limit exceeded for %s route class", class),
				IPAddress:   ip,
				Route:       c.FullPath(),
				UserAgent:   c.GetHeader("User-Agent"),
			}
			if err := rl.auditRepo.Create(c.Request.Context(), entry); err != nil {
				log.Printf("Failed to create audit log: %v", err)
			}

			c.Header("Retry-After", fmt.Sprintf("%d", decision.RetryAfterSeconds))
			c.JSON(http.StatusTooManyRequests, models.ErrorResponse{
				Error:             "too many requests",
				RetryAfterSeconds: decision.RetryAfterSeconds,
			})
			c.Abort()
			return
		}

		c.Next()

		if c.Writer.Status() < http.StatusBadRequest {
			rl.limiter.Refund(class, ip)
		}
	}
}
