package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/ekaya-projects/pkg/database"
	"github.com/ekaya-inc/ekaya-projects/pkg/models"
)

// AuditRepository provides data access for the append-only audit log.
// There is deliberately no update or delete.
type AuditRepository interface {
	// Create inserts a new audit log entry.
	Create(ctx context.Context, entry *models.AuditLog) error

	// Recent returns the latest entries across the whole system, newest first.
	Recent(ctx context.Context, limit int) ([]*models.AuditLog, error)

	// ForUser returns entries performed by userID, newest first.
	ForUser(ctx context.Context, userID uuid.UUID, limit int) ([]*models.AuditLog, error)

	// ForEntity returns every entry about one record, newest first.
	ForEntity(ctx context.Context, entityType string, entityID uuid.UUID) ([]*models.AuditLog, error)

	// ByAction returns entries with the given action tag, newest first.
	ByAction(ctx context.Context, action string, limit int) ([]*models.AuditLog, error)

	// InPeriod returns entries with start <= timestamp <= end, newest first.
	InPeriod(ctx context.Context, start, end time.Time) ([]*models.AuditLog, error)
}

type auditRepository struct{}

// NewAuditRepository creates a new AuditRepository.
func NewAuditRepository() AuditRepository {
	return &auditRepository{}
}

var _ AuditRepository = (*auditRepository)(nil)

const auditColumns = `id, action, description, entity_type, entity_id, old_value, new_value, performed_by, ip_address, user_agent, created_at`

func (r *auditRepository) Create(ctx context.Context, entry *models.AuditLog) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return database.ErrNoScope
	}

	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	entry.Timestamp = time.Now()

	query := `
		INSERT INTO audit_logs (` + auditColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := scope.Conn.Exec(ctx, query,
		entry.ID,
		entry.Action,
		entry.Description,
		entry.EntityType,
		entry.EntityID,
		entry.OldValue,
		entry.NewValue,
		entry.PerformedBy,
		entry.IPAddress,
		entry.UserAgent,
		entry.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to create audit log entry: %w", err)
	}

	return nil
}

func (r *auditRepository) Recent(ctx context.Context, limit int) ([]*models.AuditLog, error) {
	query := `
		SELECT ` + auditColumns + `
		FROM audit_logs
		ORDER BY created_at DESC, id DESC
		LIMIT $1`

	return r.query(ctx, "recent", query, limit)
}

func (r *auditRepository) ForUser(ctx context.Context, userID uuid.UUID, limit int) ([]*models.AuditLog, error) {
	query := `
		SELECT ` + auditColumns + `
		FROM audit_logs
		WHERE performed_by = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`

	return r.query(ctx, "by user", query, userID, limit)
}

func (r *auditRepository) ForEntity(ctx context.Context, entityType string, entityID uuid.UUID) ([]*models.AuditLog, error) {
	query := `
		SELECT ` + auditColumns + `
		FROM audit_logs
		WHERE entity_type = $1 AND entity_id = $2
		ORDER BY created_at DESC, id DESC`

	return r.query(ctx, "by entity", query, entityType, entityID)
}

func (r *auditRepository) ByAction(ctx context.Context, action string, limit int) ([]*models.AuditLog, error) {
	query := `
		SELECT ` + auditColumns + `
		FROM audit_logs
		WHERE action = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`

	return r.query(ctx, "by action", query, action, limit)
}

func (r *auditRepository) InPeriod(ctx context.Context, start, end time.Time) ([]*models.AuditLog, error) {
	query := `
		SELECT ` + auditColumns + `
		FROM audit_logs
		WHERE created_at BETWEEN $1 AND $2
		ORDER BY created_at DESC, id DESC`

	return r.query(ctx, "by period", query, start, end)
}

func (r *auditRepository) query(ctx context.Context, what, query string, args ...any) ([]*models.AuditLog, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, database.ErrNoScope
	}

	rows, err := scope.Conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log %s: %w", what, err)
	}
	defer rows.Close()

	entries := make([]*models.AuditLog, 0)
	for rows.Next() {
		entry, err := scanAuditLog(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit log entries: %w", err)
	}

	return entries, nil
}

func scanAuditLog(row pgx.Row) (*models.AuditLog, error) {
	var entry models.AuditLog

	err := row.Scan(
		&entry.ID,
		&entry.Action,
		&entry.Description,
		&entry.EntityType,
		&entry.EntityID,
		&entry.OldValue,
		&entry.NewValue,
		&entry.PerformedBy,
		&entry.IPAddress,
		&entry.UserAgent,
		&entry.Timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan audit log entry: %w", err)
	}

	return &entry, nil
}
