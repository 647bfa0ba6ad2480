package repository

import (
	"context"
	"guestbooklet/internal/models"

	"github.com/google/uuid"
)

// UserRepository defines the interface for identity store operations
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	UpdatePassword(ctx context.Context, id uuid.UUID, hashedPassword string) error
}

// SubscriptionRepository defines the interface for plan associations
type SubscriptionRepository interface {
	Create(ctx context.Context, userID uuid.UUID, tier string) (*models.Subscription, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) (*models.Subscription, error)
}
