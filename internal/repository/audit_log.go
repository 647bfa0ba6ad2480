package repository

import (
	"context"
	"guestbooklet/internal/models"

	"github.com/google/uuid"
)

// AuditLogRepository defines the interface for audit log operations
type AuditLogRepository interface {
	Create(ctx context.Context, log *models.CreateAuditLogRequest) error
	List(ctx context.Context, filter AuditLogFilter) ([]models.AuditLog, error)
}

// AuditLogFilter defines the filter options for listing audit logs
type AuditLogFilter struct {
	UserID    *uuid.UUID           // Filter by user ID
	Actions   []models.AuditAction // Filter by actions
	IPAddress *string              // Filter by IP address
	Limit     *int                 // Limit results
}
