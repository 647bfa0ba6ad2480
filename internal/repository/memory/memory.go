// Package memory provides in-process repository implementations backed by
// mutex-guarded maps. They serve tests and single-binary development; the
// interface boundary is identical to the PostgreSQL implementations.
package memory

import (
	"context"
	"guestbooklet/internal/models"
	"guestbooklet/internal/repository"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// UserRepository is an in-memory implementation of repository.UserRepository
type UserRepository struct {
	mu      sync.RWMutex
	byID    map[uuid.UUID]*models.User
	byEmail map[string]uuid.UUID
}

// NewUserRepository creates an empty in-memory user repository
func NewUserRepository() *UserRepository {
	return &UserRepository{
		byID:    make(map[uuid.UUID]*models.User),
		byEmail: make(map[string]uuid.UUID),
	}
}

func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := strings.ToLower(user.Email)
	if _, exists := r.byEmail[key]; exists {
		return repository.ErrEmailExists
	}

	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	if user.Role == "" {
		user.Role = "user"
	}
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt

	stored := *user
	r.byID[user.ID] = &stored
	r.byEmail[key] = user.ID
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.byID[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	copied := *user
	return &copied, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	copied := *r.byID[id]
	return &copied, nil
}

func (r *UserRepository) UpdatePassword(ctx context.Context, id uuid.UUID, hashedPassword string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.byID[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	user.PasswordHash = hashedPassword
	user.UpdatedAt = time.Now()
	return nil
}

// SubscriptionRepository is an in-memory implementation of repository.SubscriptionRepository
type SubscriptionRepository struct {
	mu     sync.RWMutex
	byUser map[uuid.UUID]*models.Subscription
}

// NewSubscriptionRepository creates an empty in-memory subscription repository
func NewSubscriptionRepository() *SubscriptionRepository {
	return &SubscriptionRepository{
		byUser: make(map[uuid.UUID]*models.Subscription),
	}
}

func (r *SubscriptionRepository) Create(ctx context.Context, userID uuid.UUID, tier string) (*models.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byUser[userID]; exists {
		return nil, repository.ErrSubscriptionExists
	}

	sub := &models.Subscription{
		ID:        uuid.New(),
		UserID:    userID,
		Tier:      tier,
		Status:    "active",
		CreatedAt: time.Now(),
	}
	r.byUser[userID] = sub

	copied := *sub
	return &copied, nil
}

func (r *SubscriptionRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*models.Subscription, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sub, ok := r.byUser[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *sub
	return &copied, nil
}

// AuditLogRepository is an in-memory implementation of repository.AuditLogRepository
type AuditLogRepository struct {
	mu   sync.RWMutex
	logs []models.AuditLog
}

// NewAuditLogRepository creates an empty in-memory audit log repository
func NewAuditLogRepository() *AuditLogRepository {
	return &AuditLogRepository{}
}

func (r *AuditLogRepository) Create(ctx context.Context, log *models.CreateAuditLogRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.logs = append(r.logs, models.AuditLog{
		ID:          uuid.New(),
		UserID:      log.UserID,
		Action:      log.Action,
		Description: log.Description,
		IPAddress:   log.IPAddress,
		Route:       log.Route,
		UserAgent:   log.UserAgent,
		CreatedAt:   time.Now(),
	})
	return nil
}

func (r *AuditLogRepository) List(ctx context.Context, filter repository.AuditLogFilter) ([]models.AuditLog, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []models.AuditLog
	for i := len(r.logs) - 1; i >= 0; i-- {
		log := r.logs[i]
		if filter.UserID != nil && (log.UserID == nil || *log.UserID != *filter.UserID) {
			continue
		}
		if filter.IPAddress != nil && log.IPAddress != *filter.IPAddress {
			continue
		}
		if len(filter.Actions) > 0 {
			matched := false
			for _, action := range filter.Actions {
				if log.Action == action {
					matched = true
					break
				}
			}
			if !matched {
				continue
			}
		}
		out = append(out, log)
		if filter.Limit != nil && len(out) >= *filter.Limit {
			break
		}
	}
	return out, nil
}
