package models

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction identifies the kind of security event being recorded
type AuditAction string

// Audit actions recorded by the credential layer
const (
	ActionLoginSuccess   AuditAction = "login_success"
	ActionLoginFailed    AuditAction = "login_failed"
	ActionAccountLocked  AuditAction = "account_locked"
	ActionLockoutHit     AuditAction = "lockout_rejected"
	ActionUserRegistered AuditAction = "user_registered"
	ActionPasswordChange AuditAction = "password_changed"
	ActionResetRequested AuditAction = "password_reset_requested"
	ActionResetCompleted AuditAction = "password_reset_completed"
	ActionCSRFRejected   AuditAction = "csrf_rejected"
	ActionRateLimited    AuditAction = "rate_limited"
)

// AuditLog represents a recorded security event
type AuditLog struct {
	ID          uuid.UUID   `json:"id"`
	UserID      *uuid.UUID  `json:"user_id,omitempty"`
	Action      AuditAction `json:"action"`
	Description string      `json:"description"`
	IPAddress   string      `json:"ip_address"`
	Route       string      `json:"route"`
	UserAgent   string      `json:"user_agent"`
	CreatedAt   time.Time   `json:"created_at"`
}

// CreateAuditLogRequest represents the data needed to record a security event
type CreateAuditLogRequest struct {
	UserID      *uuid.UUID  `json:"user_id,omitempty"`
	Action      AuditAction `json:"action"`
	Description string      `json:"description"`
	IPAddress   string      `json:"ip_address"`
	Route       string      `json:"route"`
	UserAgent   string      `json:"user_agent"`
}
