package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"guestbooklet/internal/models"
	"guestbooklet/internal/repository"
	"strings"

	"github.com/google/uuid"
)

type auditLogRepository struct {
	repository.BaseRepository
}

// NewAuditLogRepository creates a PostgreSQL-backed audit log repository
func NewAuditLogRepository(db *sql.DB) repository.AuditLogRepository {
	return &auditLogRepository{
		BaseRepository: repository.NewBaseRepository(db),
	}
}

func (r *auditLogRepository) Create(ctx context.Context, log *models.CreateAuditLogRequest) error {
	query := `
		INSERT INTO audit_logs (id, user_id, action, description, ip_address, route, user_agent)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.DB().ExecContext(ctx, query,
		uuid.New(),
		log.UserID,
		log.Action,
		log.Description,
		log.IPAddress,
		log.Route,
		log.UserAgent,
	)
	return err
}

func (r *auditLogRepository) List(ctx context.Context, filter repository.AuditLogFilter) ([]models.AuditLog, error) {
	query := `
		SELECT id, user_id, action, description, ip_address, route, user_agent, created_at
		FROM audit_logs`

	var conditions []string
	var args []interface{}

	if filter.UserID != nil {
		args = append(args, *filter.UserID)
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if len(filter.Actions) > 0 {
		placeholders := make([]string, 0, len(filter.Actions))
		for _, action := range filter.Actions {
			args = append(args, action)
			placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)))
		}
		conditions = append(conditions, fmt.Sprintf("action IN (%s)", strings.Join(placeholders, ", ")))
	}
	if filter.IPAddress != nil {
		args = append(args, *filter.IPAddress)
		conditions = append(conditions, fmt.Sprintf("ip_address = $%d", len(args)))
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit != nil {
		args = append(args, *filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []models.AuditLog
	for rows.Next() {
		var log models.AuditLog
		err := rows.Scan(
			&log.ID,
			&log.UserID,
			&log.Action,
			&log.Description,
			&log.IPAddress,
			&log.Route,
			&log.UserAgent,
			&log.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		logs = append(logs, log)
	}

	return logs, rows.Err()
}
