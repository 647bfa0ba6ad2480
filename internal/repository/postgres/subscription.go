package postgres

import (
	"context"
	"database/sql"
	"guestbooklet/internal/models"
	"guestbooklet/internal/repository"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type subscriptionRepository struct {
	repository.BaseRepository
}

// NewSubscriptionRepository creates a PostgreSQL-backed subscription repository
func NewSubscriptionRepository(db *sql.DB) repository.SubscriptionRepository {
	return &subscriptionRepository{
		BaseRepository: repository.NewBaseRepository(db),
	}
}

func (r *subscriptionRepository) Create(ctx context.Context, userID uuid.UUID, tier string) (*models.Subscription, error) {
	sub := &models.Subscription{
		ID:     uuid.New(),
		UserID: userID,
		Tier:   tier,
		Status: "active",
	}

	query := `
		INSERT INTO subscriptions (id, user_id, tier, status)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`

	err := r.DB().QueryRowContext(ctx, query, sub.ID, sub.UserID, sub.Tier, sub.Status).
		Scan(&sub.CreatedAt)

	if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
		return nil, repository.ErrSubscriptionExists
	}
	if err != nil {
		return nil, err
	}

	return sub, nil
}

func (r *subscriptionRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*models.Subscription, error) {
	sub := &models.Subscription{}
	query := `
		SELECT id, user_id, tier, status, created_at
		FROM subscriptions
		WHERE user_id = $1`

	err := r.DB().QueryRowContext(ctx, query, userID).Scan(
		&sub.ID,
		&sub.UserID,
		&sub.Tier,
		&sub.Status,
		&sub.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return sub, nil
}
